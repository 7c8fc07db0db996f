package outbox

import (
	"encoding/json"
	"time"

	"github.com/applitrack/AppliTrack/app/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EmailPayload is the stored payload of a purchase-confirmation item.
type EmailPayload struct {
	Recipient   string `json:"recipient"`
	UserName    string `json:"user_name"`
	OrderID     string `json:"order_id"`
	AmountTotal int64  `json:"amount_total"`
	Currency    string `json:"currency"`
	PlanName    string `json:"plan_name"`
}

// ForwardPayload is the stored payload of a snapshot-forward item.
type ForwardPayload struct {
	ChangeType  string          `json:"change_type"`
	Application json.RawMessage `json:"application"`
}

// EnqueueEmail writes a purchase-confirmation outbox row inside tx.
// The (kind, event_id) unique index guarantees at most one mail row
// per provider event, no matter how often the event is redelivered.
func EnqueueEmail(tx *gorm.DB, eventID string, p EmailPayload) (*models.OutboxItem, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return enqueue(tx, models.OutboxKindPurchaseEmail, eventID, raw)
}

// EnqueueForward writes a snapshot-forward outbox row inside tx.
func EnqueueForward(tx *gorm.DB, eventID string, p ForwardPayload) (*models.OutboxItem, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return enqueue(tx, models.OutboxKindForwardApplication, eventID, raw)
}

func enqueue(tx *gorm.DB, kind, eventID string, payload []byte) (*models.OutboxItem, error) {
	now := time.Now()
	item := &models.OutboxItem{
		ID:            uuid.New().String(),
		Kind:          kind,
		EventID:       eventID,
		PayloadJSON:   string(payload),
		Status:        models.OutboxStatusPending,
		MaxAttempts:   models.OutboxDefaultMaxAttempts,
		NextAttemptAt: &now,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "kind"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(item)
	if res.Error != nil {
		return nil, res.Error
	}
	return item, nil
}
