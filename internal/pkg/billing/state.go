package billing

import (
	"strings"

	"github.com/applitrack/AppliTrack/app/models"
)

// NormalizeStatus maps provider status strings onto the internal
// subscription status set. Unrecognized values land on incomplete.
func NormalizeStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "trialing":
		return models.SubscriptionStatusActive
	case "past_due", "unpaid":
		return models.SubscriptionStatusPastDue
	case "canceled", "cancelled", "incomplete_expired":
		return models.SubscriptionStatusCanceled
	case "incomplete":
		return models.SubscriptionStatusIncomplete
	default:
		return models.SubscriptionStatusIncomplete
	}
}

// CanTransition reports whether moving a subscription from one status
// to another is a legal lifecycle step. Canceled is terminal here;
// reactivation surfaces as a new subscription. Same-status updates are
// allowed so period-end refreshes flow through.
func CanTransition(from, to string) bool {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))

	if from == to {
		return true
	}
	if to == models.SubscriptionStatusCanceled {
		return true
	}

	switch from {
	case models.SubscriptionStatusActive:
		return to == models.SubscriptionStatusPastDue
	case models.SubscriptionStatusPastDue:
		return to == models.SubscriptionStatusActive
	case models.SubscriptionStatusIncomplete:
		return to == models.SubscriptionStatusActive
	case models.SubscriptionStatusCanceled:
		return false
	default:
		return to == models.SubscriptionStatusActive
	}
}
