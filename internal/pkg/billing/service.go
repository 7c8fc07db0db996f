package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/applitrack/AppliTrack/app/models"
	"github.com/applitrack/AppliTrack/internal/pkg/outbox"
	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"
)

// PendingStaleAfter is how long a pending gate row may sit before a
// redelivery is allowed to reclaim it. Covers a crash between the
// state write and the outcome write.
const PendingStaleAfter = 5 * time.Minute

// referenceMissEscalation is the bounded-miss threshold after which
// repeated lookup misses for the same customer are escalated in the
// logs instead of silently retried forever.
const referenceMissEscalation = 10

// Result is the pipeline outcome for one delivery, used by the HTTP
// layer to encode the acknowledgment.
type Result struct {
	Outcome   string
	Duplicate bool
}

// Service runs the payment-provider webhook pipeline: verify, decode,
// gate, reconcile, enqueue side effects. One instance is constructed
// at startup and shared by all requests.
type Service struct {
	repo   Repository
	secret string

	// Wake nudges the outbox dispatcher after the commit. Optional;
	// the dispatcher's poller picks rows up regardless.
	Wake func(itemIDs ...string)

	missMu sync.Mutex
	misses map[string]int
}

// NewService creates the pipeline service.
func NewService(repo Repository, secret string) *Service {
	return &Service{
		repo:   repo,
		secret: secret,
		misses: make(map[string]int),
	}
}

// NewServiceFromDB creates the pipeline service from a GORM handle.
func NewServiceFromDB(db *gorm.DB, secret string) *Service {
	return NewService(NewRepository(db), secret)
}

// ProcessPaymentEvent runs the full pipeline for one inbound payment
// webhook delivery. Verification precedes everything: a payload with a
// bad signature never touches the store.
func (s *Service) ProcessPaymentEvent(ctx context.Context, rawBody []byte, signatureHeader string) (*Result, error) {
	if err := webhook.VerifySignature(rawBody, signatureHeader, s.secret); err != nil {
		return nil, err
	}

	ev, err := ParseEvent(rawBody)
	if err != nil {
		return nil, err
	}

	row, res, err := s.passGate(&models.WebhookEvent{
		Source:         models.WebhookSourcePayment,
		EventID:        ev.ID,
		EventType:      ev.RawKind,
		PayloadJSON:    string(rawBody),
		SignatureValid: true,
		Outcome:        models.WebhookOutcomePending,
	})
	if err != nil {
		return nil, err
	}
	if res != nil {
		return res, nil
	}

	return s.reconcile(ctx, row, ev, rawBody)
}

// passGate inserts the event row if absent. A non-nil Result means the
// delivery short-circuits (terminal duplicate or in-flight duplicate).
func (s *Service) passGate(event *models.WebhookEvent) (*models.WebhookEvent, *Result, error) {
	created, stored, err := s.repo.InsertEventIfAbsent(event)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, err)
	}
	if created {
		return stored, nil, nil
	}

	if stored.Terminal() {
		log.Infof("[Webhook] Duplicate delivery of %s/%s answered from cache (outcome=%s)",
			stored.Source, stored.EventID, stored.Outcome)
		return nil, &Result{Outcome: stored.Outcome, Duplicate: true}, nil
	}

	claimed, err := s.repo.ClaimEventForRetry(stored.ID, time.Now().Add(-PendingStaleAfter))
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, err)
	}
	if !claimed {
		// Another handler is working on this event right now; the
		// delivery is acknowledged and the winner records the outcome.
		return nil, &Result{Outcome: models.WebhookOutcomePending, Duplicate: true}, nil
	}
	return stored, nil, nil
}

func (s *Service) reconcile(ctx context.Context, row *models.WebhookEvent, ev *Event, rawBody []byte) (*Result, error) {
	var (
		res *Result
		err error
	)
	switch ev.Kind {
	case KindCheckoutCompleted:
		res, err = s.reconcileCheckout(ctx, row, ev, rawBody)
	case KindSubscriptionUpdated:
		res, err = s.reconcileSubscription(ctx, row, ev, rawBody, false)
	case KindSubscriptionDeleted:
		res, err = s.reconcileSubscription(ctx, row, ev, rawBody, true)
	default:
		log.Infof("[Webhook] Skipping unhandled event kind %q (%s)", ev.RawKind, ev.ID)
		if rerr := s.repo.RecordOutcome(row.ID, models.WebhookOutcomeSkipped, nil); rerr != nil {
			return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, rerr)
		}
		return &Result{Outcome: models.WebhookOutcomeSkipped}, nil
	}

	if err != nil {
		if rerr := s.repo.RecordOutcome(row.ID, models.WebhookOutcomeFailed, err); rerr != nil {
			log.Errorf("[Webhook] Failed to record outcome for %s: %v", row.EventID, rerr)
		}
		return nil, err
	}
	return res, nil
}

// reconcileCheckout activates the subscription referenced by a
// completed checkout and queues exactly one confirmation email.
func (s *Service) reconcileCheckout(ctx context.Context, row *models.WebhookEvent, ev *Event, rawBody []byte) (*Result, error) {
	_ = ctx
	checkout := ev.Checkout

	userID, err := parseAccountRef(checkout.ClientReferenceID)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.noteReferenceMiss("user:" + checkout.ClientReferenceID)
			return nil, fmt.Errorf("%w: account %d", webhook.ErrReferenceNotFound, userID)
		}
		return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, err)
	}

	customerID := checkout.CustomerID
	if customerID == "" {
		customerID = "user:" + strconv.FormatUint(uint64(userID), 10)
	}

	var (
		applied bool
		itemID  string
	)
	txErr := s.repo.Transaction(func(tx *gorm.DB) error {
		var err error
		applied, err = upsertSubscription(tx, &models.Subscription{
			UserID:         userID,
			CustomerID:     customerID,
			SubscriptionID: checkout.SubscriptionID,
			PlanName:       checkout.PlanName,
			Status:         models.SubscriptionStatusActive,
			LastEventAt:    ev.Created,
			RawPayloadJSON: string(rawBody),
		})
		if err != nil {
			return err
		}

		outcome := models.WebhookOutcomeApplied
		if applied {
			item, err := outbox.EnqueueEmail(tx, ev.ID, outbox.EmailPayload{
				Recipient:   user.Email,
				UserName:    user.Name,
				OrderID:     checkout.SessionID,
				AmountTotal: checkout.AmountTotal,
				Currency:    checkout.Currency,
				PlanName:    checkout.PlanName,
			})
			if err != nil {
				return err
			}
			itemID = item.ID
		} else {
			outcome = models.WebhookOutcomeSkipped
		}
		return recordOutcome(tx, row.ID, outcome, nil)
	})
	if txErr != nil {
		return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, txErr)
	}

	if !applied {
		log.Infof("[Webhook] Checkout %s is older than applied state for %s; skipped", ev.ID, customerID)
		return &Result{Outcome: models.WebhookOutcomeSkipped}, nil
	}
	s.wake(itemID)
	return &Result{Outcome: models.WebhookOutcomeApplied}, nil
}

// reconcileSubscription applies a subscription lifecycle event under
// the last-applied-wins rule: events older than the stored state are
// acknowledged but never overwrite newer state.
func (s *Service) reconcileSubscription(ctx context.Context, row *models.WebhookEvent, ev *Event, rawBody []byte, deleted bool) (*Result, error) {
	_ = ctx
	state := ev.Sub

	sub, err := s.repo.GetSubscriptionByCustomerID(state.CustomerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.noteReferenceMiss("customer:" + state.CustomerID)
			return nil, fmt.Errorf("%w: customer %s", webhook.ErrReferenceNotFound, state.CustomerID)
		}
		return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, err)
	}

	skip := func(reason string) (*Result, error) {
		log.Infof("[Webhook] Event %s for %s skipped: %s", ev.ID, state.CustomerID, reason)
		if rerr := s.repo.RecordOutcome(row.ID, models.WebhookOutcomeSkipped, nil); rerr != nil {
			return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, rerr)
		}
		return &Result{Outcome: models.WebhookOutcomeSkipped}, nil
	}

	if ev.Created <= sub.LastEventAt {
		return skip("stale revision marker")
	}

	newStatus := NormalizeStatus(state.Status)
	if deleted {
		newStatus = models.SubscriptionStatusCanceled
	}
	if !CanTransition(sub.Status, newStatus) {
		return skip(fmt.Sprintf("illegal transition %s -> %s", sub.Status, newStatus))
	}

	planName := state.PlanName
	if planName == "" {
		planName = sub.PlanName
	}
	subscriptionID := state.SubscriptionID
	if subscriptionID == "" {
		subscriptionID = sub.SubscriptionID
	}

	var applied bool
	txErr := s.repo.Transaction(func(tx *gorm.DB) error {
		var err error
		applied, err = upsertSubscription(tx, &models.Subscription{
			UserID:            sub.UserID,
			CustomerID:        sub.CustomerID,
			SubscriptionID:    subscriptionID,
			PlanName:          planName,
			Status:            newStatus,
			CurrentPeriodEnd:  state.CurrentPeriodEnd,
			CancelAtPeriodEnd: state.CancelAtPeriodEnd,
			LastEventAt:       ev.Created,
			RawPayloadJSON:    string(rawBody),
		})
		if err != nil {
			return err
		}
		outcome := models.WebhookOutcomeApplied
		if !applied {
			outcome = models.WebhookOutcomeSkipped
		}
		return recordOutcome(tx, row.ID, outcome, nil)
	})
	if txErr != nil {
		return nil, fmt.Errorf("%w: %v", webhook.ErrTransientStore, txErr)
	}

	if !applied {
		// A concurrent handler applied a newer event between our read
		// and the guarded update.
		return &Result{Outcome: models.WebhookOutcomeSkipped}, nil
	}
	return &Result{Outcome: models.WebhookOutcomeApplied}, nil
}

func (s *Service) wake(itemIDs ...string) {
	if s.Wake == nil || len(itemIDs) == 0 {
		return
	}
	s.Wake(itemIDs...)
}

// noteReferenceMiss counts repeated lookup misses so operators get an
// escalation instead of an endlessly retried 400.
func (s *Service) noteReferenceMiss(key string) {
	s.missMu.Lock()
	s.misses[key]++
	n := s.misses[key]
	s.missMu.Unlock()

	if n == referenceMissEscalation {
		log.Errorf("[Webhook] Reference %s missed %d times; check provider linkage", key, n)
	} else {
		log.Warnf("[Webhook] Reference %s not found (miss %d)", key, n)
	}
}

// parseAccountRef extracts the numeric account id from a checkout
// client reference such as "acct_42" or "42".
func parseAccountRef(ref string) (uint, error) {
	v := strings.TrimPrefix(strings.TrimSpace(ref), "acct_")
	id, err := strconv.ParseUint(v, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: bad client reference %q", webhook.ErrMalformedPayload, ref)
	}
	return uint(id), nil
}
