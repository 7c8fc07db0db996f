package billing

import (
	"time"

	"github.com/applitrack/AppliTrack/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the webhook pipeline.
type Repository interface {
	// InsertEventIfAbsent persists a webhook event unless one with the
	// same (source, event_id) exists. Returns created=false plus the
	// stored row for duplicates. The insert is a single atomic
	// insert-if-absent so concurrent deliveries of the same event id
	// cannot both pass the gate.
	InsertEventIfAbsent(event *models.WebhookEvent) (created bool, stored *models.WebhookEvent, err error)

	// ClaimEventForRetry flips a failed or stale-pending row back to
	// pending and reports whether this caller won the claim.
	ClaimEventForRetry(id uint, staleBefore time.Time) (bool, error)

	// RecordOutcome finalizes an event row after processing.
	RecordOutcome(id uint, outcome string, processingErr error) error

	GetUserByID(id uint) (*models.User, error)
	GetSubscriptionByCustomerID(customerID string) (*models.Subscription, error)

	// Transaction runs fn inside a DB transaction; the state mutation,
	// the gate outcome and the outbox rows commit together.
	Transaction(fn func(tx *gorm.DB) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a webhook repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) InsertEventIfAbsent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "source"},
			{Name: "event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("source = ? AND event_id = ?", event.Source, event.EventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) ClaimEventForRetry(id uint, staleBefore time.Time) (bool, error) {
	tx := r.db.Model(&models.WebhookEvent{}).
		Where("id = ? AND (outcome = ? OR (outcome = ? AND updated_at < ?))",
			id, models.WebhookOutcomeFailed, models.WebhookOutcomePending, staleBefore).
		Updates(map[string]interface{}{
			"outcome":          models.WebhookOutcomePending,
			"processing_error": "",
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) RecordOutcome(id uint, outcome string, processingErr error) error {
	return recordOutcome(r.db, id, outcome, processingErr)
}

func recordOutcome(db *gorm.DB, id uint, outcome string, processingErr error) error {
	now := time.Now()
	updates := map[string]interface{}{
		"outcome":      outcome,
		"processed_at": &now,
	}
	if processingErr != nil {
		updates["processing_error"] = processingErr.Error()
	}
	return db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}

func (r *gormRepository) GetUserByID(id uint) (*models.User, error) {
	return models.FindUserByID(r.db, id)
}

func (r *gormRepository) GetSubscriptionByCustomerID(customerID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("customer_id = ?", customerID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) Transaction(fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(fn)
}

// upsertSubscription writes subscription state inside tx. The
// last_event_at predicate makes concurrent writers converge on the
// newest applied event regardless of arrival order: a stale writer's
// UPDATE matches zero rows.
func upsertSubscription(tx *gorm.DB, sub *models.Subscription) (applied bool, err error) {
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "customer_id"}},
		DoNothing: true,
	}).Create(sub)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	res = tx.Model(&models.Subscription{}).
		Where("customer_id = ? AND last_event_at < ?", sub.CustomerID, sub.LastEventAt).
		Updates(map[string]interface{}{
			"user_id":              sub.UserID,
			"subscription_id":      sub.SubscriptionID,
			"plan_name":            sub.PlanName,
			"status":               sub.Status,
			"current_period_end":   sub.CurrentPeriodEnd,
			"cancel_at_period_end": sub.CancelAtPeriodEnd,
			"last_event_at":        sub.LastEventAt,
			"raw_payload_json":     sub.RawPayloadJSON,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
