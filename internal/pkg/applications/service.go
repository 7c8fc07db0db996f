package applications

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/applitrack/AppliTrack/app/models"
	"github.com/applitrack/AppliTrack/internal/pkg/billing"
	"github.com/applitrack/AppliTrack/internal/pkg/outbox"
	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// ChangeEvent is a decoded application-change delivery from the
// database triggers: the row snapshot plus the change type.
type ChangeEvent struct {
	ID          string
	ChangeType  string
	RecordID    uint
	RawSnapshot json.RawMessage
}

// Service handles application-change webhooks: authenticate, gate,
// enrich the snapshot with documents/interviews/reminders and queue
// the downstream forward. There is no state to reconcile, only
// fan-out.
type Service struct {
	db     *gorm.DB
	repo   billing.Repository
	secret string

	// Wake nudges the outbox dispatcher after the commit.
	Wake func(itemIDs ...string)
}

// NewService creates an application-change service.
func NewService(db *gorm.DB, secret string) *Service {
	return &Service{
		db:     db,
		repo:   billing.NewRepository(db),
		secret: secret,
	}
}

// ParseChangeEvent decodes an application-change payload. Deliveries
// carry no provider event id, so the event id is a payload hash —
// redelivery of the identical change dedupes on it.
func ParseChangeEvent(raw []byte) (*ChangeEvent, error) {
	var envelope struct {
		Type   string          `json:"type"`
		Record json.RawMessage `json:"record"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", webhook.ErrMalformedPayload, err)
	}
	changeType := strings.ToUpper(strings.TrimSpace(envelope.Type))
	switch changeType {
	case "INSERT", "UPDATE", "DELETE":
	case "":
		return nil, fmt.Errorf("%w: change type missing", webhook.ErrMalformedPayload)
	default:
		return nil, fmt.Errorf("%w: unknown change type %q", webhook.ErrMalformedPayload, envelope.Type)
	}
	if len(envelope.Record) == 0 {
		return nil, fmt.Errorf("%w: record missing", webhook.ErrMalformedPayload)
	}

	var record struct {
		ID uint `json:"id"`
	}
	if err := json.Unmarshal(envelope.Record, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", webhook.ErrMalformedPayload, err)
	}
	if record.ID == 0 {
		return nil, fmt.Errorf("%w: record id missing", webhook.ErrMalformedPayload)
	}

	sum := sha256.Sum256(raw)
	return &ChangeEvent{
		ID:          "hash:" + hex.EncodeToString(sum[:]),
		ChangeType:  changeType,
		RecordID:    record.ID,
		RawSnapshot: envelope.Record,
	}, nil
}

// ProcessChangeEvent runs the pipeline for one application-change
// delivery.
func (s *Service) ProcessChangeEvent(ctx context.Context, rawBody []byte, signatureHeader string) (*billing.Result, error) {
	if err := webhook.VerifySignature(rawBody, signatureHeader, s.secret); err != nil {
		return nil, err
	}

	ev, err := ParseChangeEvent(rawBody)
	if err != nil {
		return nil, err
	}

	created, stored, err := s.repo.InsertEventIfAbsent(&models.WebhookEvent{
		Source:         models.WebhookSourceApplication,
		EventID:        ev.ID,
		EventType:      "application." + strings.ToLower(ev.ChangeType),
		PayloadJSON:    string(rawBody),
		SignatureValid: true,
		Outcome:        models.WebhookOutcomePending,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, err)
	}
	if !created {
		if stored.Terminal() {
			return &billing.Result{Outcome: stored.Outcome, Duplicate: true}, nil
		}
		// Identical payload previously failed or stranded in flight.
		claimed, err := s.repo.ClaimEventForRetry(stored.ID, time.Now().Add(-billing.PendingStaleAfter))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, err)
		}
		if !claimed {
			return &billing.Result{Outcome: models.WebhookOutcomePending, Duplicate: true}, nil
		}
	}

	snapshot, err := s.enrich(ev)
	if err != nil {
		if rerr := s.repo.RecordOutcome(stored.ID, models.WebhookOutcomeFailed, err); rerr != nil {
			log.Errorf("[AppWebhook] Failed to record outcome for %s: %v", stored.EventID, rerr)
		}
		return nil, err
	}

	var itemID string
	txErr := s.repo.Transaction(func(tx *gorm.DB) error {
		item, err := outbox.EnqueueForward(tx, ev.ID, outbox.ForwardPayload{
			ChangeType:  ev.ChangeType,
			Application: snapshot,
		})
		if err != nil {
			return err
		}
		itemID = item.ID
		return s.recordApplied(tx, stored.ID)
	})
	if txErr != nil {
		return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, txErr)
	}

	if s.Wake != nil {
		s.Wake(itemID)
	}
	return &billing.Result{Outcome: models.WebhookOutcomeApplied}, nil
}

// enrich builds the snapshot forwarded downstream: the stored row with
// its children for live records, the posted snapshot for deletes (the
// row is already gone).
func (s *Service) enrich(ev *ChangeEvent) (json.RawMessage, error) {
	if ev.ChangeType == "DELETE" {
		return ev.RawSnapshot, nil
	}

	app, err := models.FindApplicationWithChildren(s.db, ev.RecordID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: application %d", webhook.ErrReferenceNotFound, ev.RecordID)
		}
		return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, err)
	}

	raw, err := json.Marshal(app)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (s *Service) recordApplied(tx *gorm.DB, rowID uint) error {
	return billing.NewRepository(tx).RecordOutcome(rowID, models.WebhookOutcomeApplied, nil)
}
