package models

import "time"

const (
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
)

// Subscription mirrors the payment provider's subscription state for a
// user. It is mutated exclusively by the webhook reconciler; status and
// current_period_end reflect the most recently *applied* provider
// event, tracked via LastEventAt (the provider's own event ordering
// field), not the most recently received one.
type Subscription struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            uint       `gorm:"not null;index" json:"user_id"`
	CustomerID        string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_subscriptions_customer" json:"customer_id"`
	SubscriptionID    string     `gorm:"type:varchar(191);not null;index" json:"subscription_id"`
	PlanName          string     `gorm:"type:varchar(100);not null;default:''" json:"plan_name"`
	Status            string     `gorm:"type:varchar(32);not null;default:'incomplete';index" json:"status"`
	CurrentPeriodEnd  *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd bool       `gorm:"default:false" json:"cancel_at_period_end"`
	// LastEventAt is the unix timestamp of the provider event whose
	// state this row currently reflects. Events with an older or equal
	// timestamp are acknowledged but never applied.
	LastEventAt    int64     `gorm:"not null;default:0" json:"last_event_at"`
	RawPayloadJSON string    `gorm:"type:longtext" json:"raw_payload_json"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
