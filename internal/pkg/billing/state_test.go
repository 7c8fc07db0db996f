package billing

import (
	"testing"

	"github.com/applitrack/AppliTrack/app/models"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "trialing", want: models.SubscriptionStatusActive},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "unpaid", want: models.SubscriptionStatusPastDue},
		{in: "canceled", want: models.SubscriptionStatusCanceled},
		{in: "cancelled", want: models.SubscriptionStatusCanceled},
		{in: "incomplete_expired", want: models.SubscriptionStatusCanceled},
		{in: "incomplete", want: models.SubscriptionStatusIncomplete},
		{in: "ACTIVE ", want: models.SubscriptionStatusActive},
		{in: "something_new", want: models.SubscriptionStatusIncomplete},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.in); got != tt.want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCanTransition(t *testing.T) {
	allowed := [][2]string{
		{models.SubscriptionStatusActive, models.SubscriptionStatusPastDue},
		{models.SubscriptionStatusActive, models.SubscriptionStatusCanceled},
		{models.SubscriptionStatusPastDue, models.SubscriptionStatusActive},
		{models.SubscriptionStatusPastDue, models.SubscriptionStatusCanceled},
		{models.SubscriptionStatusIncomplete, models.SubscriptionStatusActive},
		{models.SubscriptionStatusIncomplete, models.SubscriptionStatusCanceled},
		{models.SubscriptionStatusActive, models.SubscriptionStatusActive},
	}
	for _, pair := range allowed {
		if !CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %q -> %q to be allowed", pair[0], pair[1])
		}
	}

	denied := [][2]string{
		{models.SubscriptionStatusCanceled, models.SubscriptionStatusActive},
		{models.SubscriptionStatusCanceled, models.SubscriptionStatusPastDue},
		{models.SubscriptionStatusActive, models.SubscriptionStatusIncomplete},
		{models.SubscriptionStatusPastDue, models.SubscriptionStatusIncomplete},
	}
	for _, pair := range denied {
		if CanTransition(pair[0], pair[1]) {
			t.Fatalf("expected %q -> %q to be denied", pair[0], pair[1])
		}
	}
}
