package outbox

import (
	"context"
	"fmt"

	"github.com/applitrack/AppliTrack/app/models"
	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
	"github.com/applitrack/AppliTrack/internal/pkg/mail"
)

// Sender sends one rendered purchase confirmation. Satisfied by the
// SMTP mailer; tests substitute a recorder.
type Sender func(mail.PurchaseConfirmation) error

// EmailProcessor dispatches purchase-confirmation outbox items.
type EmailProcessor struct {
	send Sender
}

// NewEmailProcessor creates the mail dispatch processor. A nil sender
// uses the SMTP mailer.
func NewEmailProcessor(send Sender) *EmailProcessor {
	if send == nil {
		send = mail.SendPurchaseConfirmation
	}
	return &EmailProcessor{send: send}
}

func (p *EmailProcessor) Kind() string {
	return models.OutboxKindPurchaseEmail
}

func (p *EmailProcessor) Process(ctx context.Context, item *models.OutboxItem) error {
	_ = ctx
	var payload EmailPayload
	if err := decodePayload(item, &payload); err != nil {
		return fmt.Errorf("decode email payload: %w", err)
	}
	if payload.Recipient == "" {
		return fmt.Errorf("email payload of item %s has no recipient", item.ID)
	}

	if err := p.send(mail.PurchaseConfirmation{
		Recipient:   payload.Recipient,
		UserName:    payload.UserName,
		OrderID:     payload.OrderID,
		AmountTotal: payload.AmountTotal,
		Currency:    payload.Currency,
		PlanName:    payload.PlanName,
	}); err != nil {
		return fmt.Errorf("%w: %v", webhook.ErrDispatchFailure, err)
	}
	return nil
}
