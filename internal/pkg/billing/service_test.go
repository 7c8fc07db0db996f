package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/applitrack/AppliTrack/app/models"
	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
	"gorm.io/gorm"
)

const testSecret = "test-webhook-secret"

// fakeRepository records pipeline calls so tests can assert ordering
// and short-circuits without a database.
type fakeRepository struct {
	insertCalls int
	claimCalls  int
	outcomes    []string

	insertCreated bool
	insertStored  *models.WebhookEvent
	claimOK       bool

	user    *models.User
	userErr error
	sub     *models.Subscription
	subErr  error

	txErr   error
	txCalls int
}

func (f *fakeRepository) InsertEventIfAbsent(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	f.insertCalls++
	if f.insertStored != nil {
		return f.insertCreated, f.insertStored, nil
	}
	stored := *event
	stored.ID = 1
	return f.insertCreated, &stored, nil
}

func (f *fakeRepository) ClaimEventForRetry(id uint, staleBefore time.Time) (bool, error) {
	f.claimCalls++
	return f.claimOK, nil
}

func (f *fakeRepository) RecordOutcome(id uint, outcome string, processingErr error) error {
	f.outcomes = append(f.outcomes, outcome)
	return nil
}

func (f *fakeRepository) GetUserByID(id uint) (*models.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user, nil
}

func (f *fakeRepository) GetSubscriptionByCustomerID(customerID string) (*models.Subscription, error) {
	if f.subErr != nil {
		return nil, f.subErr
	}
	return f.sub, nil
}

func (f *fakeRepository) Transaction(fn func(tx *gorm.DB) error) error {
	f.txCalls++
	return f.txErr
}

func signedPayload(body string) ([]byte, string) {
	raw := []byte(body)
	return raw, webhook.SignPayload(raw, testSecret)
}

func subscriptionEventBody(eventID string, created int64, status string) string {
	return fmt.Sprintf(`{
		"id": %q,
		"type": "customer.subscription.updated",
		"created": %d,
		"data": {"object": {"id": "sub_7", "customer": "cus_9", "status": %q}}
	}`, eventID, created, status)
}

func TestProcessPaymentEvent_BadSignatureNeverStored(t *testing.T) {
	repo := &fakeRepository{}
	svc := NewService(repo, testSecret)

	raw := []byte(`{"id":"evt_1","type":"checkout.session.completed","created":1,"data":{"object":{"client_reference_id":"acct_42"}}}`)
	_, err := svc.ProcessPaymentEvent(context.Background(), raw, "sha256=deadbeef")
	if !errors.Is(err, webhook.ErrAuthenticationFailed) {
		t.Fatalf("expected authentication failure, got %v", err)
	}
	if repo.insertCalls != 0 {
		t.Fatalf("rejected payload must not reach the store, saw %d inserts", repo.insertCalls)
	}
}

func TestProcessPaymentEvent_TerminalDuplicateAnsweredFromCache(t *testing.T) {
	repo := &fakeRepository{
		insertCreated: false,
		insertStored: &models.WebhookEvent{
			ID:      7,
			Source:  models.WebhookSourcePayment,
			EventID: "evt_dup",
			Outcome: models.WebhookOutcomeApplied,
		},
	}
	svc := NewService(repo, testSecret)

	raw, sig := signedPayload(subscriptionEventBody("evt_dup", 100, "active"))
	res, err := svc.ProcessPaymentEvent(context.Background(), raw, sig)
	if err != nil {
		t.Fatalf("duplicate delivery must succeed, got %v", err)
	}
	if !res.Duplicate || res.Outcome != models.WebhookOutcomeApplied {
		t.Fatalf("expected cached applied outcome, got %+v", res)
	}
	if repo.claimCalls != 0 {
		t.Fatalf("terminal duplicate must not attempt a claim")
	}
	if repo.txCalls != 0 {
		t.Fatalf("terminal duplicate must not touch subscription state")
	}
}

func TestProcessPaymentEvent_InFlightDuplicateAcknowledged(t *testing.T) {
	repo := &fakeRepository{
		insertCreated: false,
		insertStored: &models.WebhookEvent{
			ID:      8,
			Source:  models.WebhookSourcePayment,
			EventID: "evt_racing",
			Outcome: models.WebhookOutcomePending,
		},
		claimOK: false,
	}
	svc := NewService(repo, testSecret)

	raw, sig := signedPayload(subscriptionEventBody("evt_racing", 100, "active"))
	res, err := svc.ProcessPaymentEvent(context.Background(), raw, sig)
	if err != nil {
		t.Fatalf("in-flight duplicate must be acknowledged, got %v", err)
	}
	if !res.Duplicate || res.Outcome != models.WebhookOutcomePending {
		t.Fatalf("expected pending duplicate ack, got %+v", res)
	}
	if repo.claimCalls != 1 {
		t.Fatalf("expected exactly one claim attempt, got %d", repo.claimCalls)
	}
	if repo.txCalls != 0 {
		t.Fatalf("losing handler must not reconcile")
	}
}

func TestProcessPaymentEvent_FailedRowReclaimedOnRedelivery(t *testing.T) {
	repo := &fakeRepository{
		insertCreated: false,
		insertStored: &models.WebhookEvent{
			ID:      9,
			Source:  models.WebhookSourcePayment,
			EventID: "evt_retry",
			Outcome: models.WebhookOutcomeFailed,
		},
		claimOK: true,
	}
	svc := NewService(repo, testSecret)

	// unhandled kind: the reclaimed row runs the pipeline again and
	// settles as skipped
	raw, sig := signedPayload(`{"id":"evt_retry","type":"invoice.paid","created":5,"data":{"object":{}}}`)
	res, err := svc.ProcessPaymentEvent(context.Background(), raw, sig)
	if err != nil {
		t.Fatalf("reclaimed redelivery must process, got %v", err)
	}
	if res.Duplicate {
		t.Fatalf("reclaimed row is reprocessed, not answered as duplicate")
	}
	if res.Outcome != models.WebhookOutcomeSkipped {
		t.Fatalf("expected skipped outcome, got %q", res.Outcome)
	}
	if len(repo.outcomes) != 1 || repo.outcomes[0] != models.WebhookOutcomeSkipped {
		t.Fatalf("expected one recorded skipped outcome, got %v", repo.outcomes)
	}
}

func TestProcessPaymentEvent_UnhandledKindSkipped(t *testing.T) {
	repo := &fakeRepository{insertCreated: true}
	svc := NewService(repo, testSecret)

	raw, sig := signedPayload(`{"id":"evt_u","type":"invoice.paid","created":5,"data":{"object":{}}}`)
	res, err := svc.ProcessPaymentEvent(context.Background(), raw, sig)
	if err != nil {
		t.Fatalf("unhandled kind must be acknowledged, got %v", err)
	}
	if res.Outcome != models.WebhookOutcomeSkipped || res.Duplicate {
		t.Fatalf("expected fresh skipped outcome, got %+v", res)
	}
}

func TestProcessPaymentEvent_StaleEventSkipped(t *testing.T) {
	repo := &fakeRepository{
		insertCreated: true,
		sub: &models.Subscription{
			UserID:      42,
			CustomerID:  "cus_9",
			Status:      models.SubscriptionStatusActive,
			LastEventAt: 1000,
		},
	}
	svc := NewService(repo, testSecret)

	// created=900 is older than the applied state at 1000
	raw, sig := signedPayload(subscriptionEventBody("evt_old", 900, "canceled"))
	res, err := svc.ProcessPaymentEvent(context.Background(), raw, sig)
	if err != nil {
		t.Fatalf("stale event must be acknowledged, got %v", err)
	}
	if res.Outcome != models.WebhookOutcomeSkipped {
		t.Fatalf("expected skipped outcome for stale event, got %q", res.Outcome)
	}
	if repo.txCalls != 0 {
		t.Fatalf("stale event must not open a transaction")
	}
	if len(repo.outcomes) != 1 || repo.outcomes[0] != models.WebhookOutcomeSkipped {
		t.Fatalf("expected recorded skipped outcome, got %v", repo.outcomes)
	}
}

func TestProcessPaymentEvent_IllegalTransitionSkipped(t *testing.T) {
	repo := &fakeRepository{
		insertCreated: true,
		sub: &models.Subscription{
			UserID:      42,
			CustomerID:  "cus_9",
			Status:      models.SubscriptionStatusCanceled,
			LastEventAt: 100,
		},
	}
	svc := NewService(repo, testSecret)

	raw, sig := signedPayload(subscriptionEventBody("evt_revive", 200, "active"))
	res, err := svc.ProcessPaymentEvent(context.Background(), raw, sig)
	if err != nil {
		t.Fatalf("illegal transition must be acknowledged, got %v", err)
	}
	if res.Outcome != models.WebhookOutcomeSkipped {
		t.Fatalf("canceled is terminal; expected skipped, got %q", res.Outcome)
	}
	if repo.txCalls != 0 {
		t.Fatalf("denied transition must not open a transaction")
	}
}

func TestProcessPaymentEvent_UnknownCustomerFailsAsReferenceNotFound(t *testing.T) {
	repo := &fakeRepository{
		insertCreated: true,
		subErr:        gorm.ErrRecordNotFound,
	}
	svc := NewService(repo, testSecret)

	raw, sig := signedPayload(subscriptionEventBody("evt_nocus", 100, "active"))
	_, err := svc.ProcessPaymentEvent(context.Background(), raw, sig)
	if !errors.Is(err, webhook.ErrReferenceNotFound) {
		t.Fatalf("expected reference-not-found, got %v", err)
	}
	if len(repo.outcomes) != 1 || repo.outcomes[0] != models.WebhookOutcomeFailed {
		t.Fatalf("expected recorded failed outcome, got %v", repo.outcomes)
	}
}

func TestProcessPaymentEvent_UnknownAccountOnCheckout(t *testing.T) {
	repo := &fakeRepository{
		insertCreated: true,
		userErr:       gorm.ErrRecordNotFound,
	}
	svc := NewService(repo, testSecret)

	raw, sig := signedPayload(`{
		"id": "evt_noacct",
		"type": "checkout.session.completed",
		"created": 100,
		"data": {"object": {"id": "cs_1", "client_reference_id": "acct_42", "customer": "cus_9"}}
	}`)
	_, err := svc.ProcessPaymentEvent(context.Background(), raw, sig)
	if !errors.Is(err, webhook.ErrReferenceNotFound) {
		t.Fatalf("expected reference-not-found, got %v", err)
	}
}

func TestProcessPaymentEvent_TransientStoreOnTxFailure(t *testing.T) {
	repo := &fakeRepository{
		insertCreated: true,
		sub: &models.Subscription{
			UserID:      42,
			CustomerID:  "cus_9",
			Status:      models.SubscriptionStatusActive,
			LastEventAt: 100,
		},
		txErr: errors.New("deadlock"),
	}
	svc := NewService(repo, testSecret)

	raw, sig := signedPayload(subscriptionEventBody("evt_tx", 200, "past_due"))
	_, err := svc.ProcessPaymentEvent(context.Background(), raw, sig)
	if !errors.Is(err, webhook.ErrTransientStore) {
		t.Fatalf("expected transient store error, got %v", err)
	}
	if len(repo.outcomes) != 1 || repo.outcomes[0] != models.WebhookOutcomeFailed {
		t.Fatalf("expected recorded failed outcome, got %v", repo.outcomes)
	}
}

func TestParseAccountRef(t *testing.T) {
	tests := []struct {
		in      string
		want    uint
		wantErr bool
	}{
		{in: "acct_42", want: 42},
		{in: "42", want: 42},
		{in: " acct_7 ", want: 7},
		{in: "acct_0", wantErr: true},
		{in: "acct_abc", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parseAccountRef(tt.in)
		if tt.wantErr {
			if !errors.Is(err, webhook.ErrMalformedPayload) {
				t.Fatalf("parseAccountRef(%q): expected malformed payload error, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("parseAccountRef(%q) = %d, %v; want %d", tt.in, got, err, tt.want)
		}
	}
}
