package mail

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{amount: 4999, currency: "eur", want: "49.99 EUR"},
		{amount: 4999, currency: "USD", want: "49.99 USD"},
		{amount: 100, currency: "eur", want: "1.00 EUR"},
		{amount: 5, currency: "eur", want: "0.05 EUR"},
		{amount: 0, currency: "", want: "0.00 EUR"},
		{amount: -4999, currency: "eur", want: "-49.99 EUR"},
	}

	for _, tt := range tests {
		if got := FormatAmount(tt.amount, tt.currency); got != tt.want {
			t.Fatalf("FormatAmount(%d, %q) = %q, want %q", tt.amount, tt.currency, got, tt.want)
		}
	}
}
