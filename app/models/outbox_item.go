package models

import "time"

// Outbox item kinds.
const (
	OutboxKindPurchaseEmail      = "purchase_email"
	OutboxKindForwardApplication = "forward_application"
)

// Outbox item statuses.
const (
	OutboxStatusPending    = "pending"
	OutboxStatusProcessing = "processing"
	OutboxStatusCompleted  = "completed"
	OutboxStatusFailed     = "failed"
)

const OutboxDefaultMaxAttempts = 5

// OutboxItem is a durable pending side effect. Rows are written in the
// same transaction as the state change that produced them; a worker
// dispatches and retries them independently of the inbound request, so
// a slow notification provider cannot stall or fail the webhook ack.
type OutboxItem struct {
	ID            string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Kind          string     `gorm:"type:varchar(50);not null;index:ux_outbox_items_kind_event,unique,priority:1" json:"kind"`
	EventID       string     `gorm:"type:varchar(191);not null;index:ux_outbox_items_kind_event,unique,priority:2" json:"event_id"`
	PayloadJSON   string     `gorm:"type:longtext;not null" json:"payload_json"`
	Status        string     `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	Attempts      int        `gorm:"not null;default:0" json:"attempts"`
	MaxAttempts   int        `gorm:"not null;default:5" json:"max_attempts"`
	LastError     string     `gorm:"type:text" json:"last_error"`
	NextAttemptAt *time.Time `gorm:"type:timestamp;default:null;index" json:"next_attempt_at,omitempty"`
	DispatchedAt  *time.Time `gorm:"type:timestamp;default:null" json:"dispatched_at,omitempty"`
	CreatedAt     time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
