package mail

import (
	"fmt"
	"strings"
)

// PurchaseConfirmation carries the rendered fields of a purchase
// confirmation mail.
type PurchaseConfirmation struct {
	Recipient   string
	UserName    string
	OrderID     string
	AmountTotal int64
	Currency    string
	PlanName    string
}

// SendPurchaseConfirmation renders and sends the purchase email.
func SendPurchaseConfirmation(p PurchaseConfirmation) error {
	subject := fmt.Sprintf("Your AppliTrack %s subscription is active", p.PlanName)
	body := fmt.Sprintf(
		"<h2>Thanks for your purchase, %s!</h2>"+
			"<p>Your <strong>%s</strong> plan is now active.</p>"+
			"<p>Order: %s<br>Amount: %s</p>"+
			"<p>You can manage your subscription any time from your account settings.</p>",
		p.UserName, p.PlanName, p.OrderID, FormatAmount(p.AmountTotal, p.Currency),
	)
	return SendMail(p.Recipient, subject, body)
}

// FormatAmount renders a minor-unit amount ("4999", "eur") as a
// human-readable price ("49.99 EUR").
func FormatAmount(amountMinor int64, currency string) string {
	cur := strings.ToUpper(strings.TrimSpace(currency))
	if cur == "" {
		cur = "EUR"
	}
	sign := ""
	if amountMinor < 0 {
		sign = "-"
		amountMinor = -amountMinor
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amountMinor/100, amountMinor%100, cur)
}
