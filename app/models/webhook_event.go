package models

import "time"

// Webhook event sources.
const (
	WebhookSourcePayment     = "payment"
	WebhookSourceApplication = "application"
)

// Processing outcomes for a webhook event. A row stays pending while a
// handler is working on it; applied and skipped are terminal, failed
// rows are eligible for reprocessing on redelivery.
const (
	WebhookOutcomePending = "pending"
	WebhookOutcomeApplied = "applied"
	WebhookOutcomeSkipped = "skipped"
	WebhookOutcomeFailed  = "failed"
)

// WebhookEvent stores each inbound webhook delivery with deduplication
// metadata. The unique (source, event_id) index is what makes the
// idempotency gate's insert-if-absent atomic under concurrent
// redelivery.
type WebhookEvent struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	Source          string     `gorm:"type:varchar(20);not null;index:ux_webhook_events_source_event,unique,priority:1;index" json:"source"`
	EventID         string     `gorm:"type:varchar(191);not null;default:'';index:ux_webhook_events_source_event,unique,priority:2" json:"event_id"`
	EventType       string     `gorm:"type:varchar(100);not null;index" json:"event_type"`
	PayloadJSON     string     `gorm:"type:longtext;not null" json:"payload_json"`
	SignatureValid  bool       `gorm:"default:false;index" json:"signature_valid"`
	Outcome         string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"outcome"`
	ProcessedAt     *time.Time `gorm:"type:timestamp;default:null" json:"processed_at,omitempty"`
	ProcessingError string     `gorm:"type:text" json:"processing_error"`
	CreatedAt       time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// Terminal reports whether the event's outcome settles redelivery: a
// duplicate of a terminal event is answered from this row without
// re-running the pipeline.
func (e *WebhookEvent) Terminal() bool {
	return e.Outcome == WebhookOutcomeApplied || e.Outcome == WebhookOutcomeSkipped
}
