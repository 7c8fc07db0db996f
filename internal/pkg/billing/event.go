package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
)

// EventKind is the recognized set of provider event types. Unknown
// types decode into KindUnhandled so the pipeline can acknowledge
// receipt (and stop the sender's retry storm) while skipping them.
type EventKind string

const (
	KindCheckoutCompleted   EventKind = "checkout.session.completed"
	KindSubscriptionUpdated EventKind = "customer.subscription.updated"
	KindSubscriptionDeleted EventKind = "customer.subscription.deleted"
	KindUnhandled           EventKind = "unhandled"
)

// Event is the decoded envelope of a provider webhook delivery.
// Created is the provider's own event ordering field and serves as the
// revision marker for staleness checks.
type Event struct {
	ID       string
	Kind     EventKind
	RawKind  string
	Created  int64
	Checkout *CheckoutSession
	Sub      *SubscriptionState
}

// CheckoutSession is the payload of a completed checkout.
type CheckoutSession struct {
	SessionID         string
	ClientReferenceID string
	CustomerID        string
	SubscriptionID    string
	AmountTotal       int64
	Currency          string
	PlanName          string
}

// SubscriptionState is the payload of a subscription lifecycle event.
type SubscriptionState struct {
	SubscriptionID    string
	CustomerID        string
	Status            string
	CurrentPeriodEnd  *time.Time
	CancelAtPeriodEnd bool
	PlanName          string
}

// ParseEvent decodes verified raw bytes into a typed envelope.
// Malformed structure fails with webhook.ErrMalformedPayload; unknown kinds
// succeed as KindUnhandled.
func ParseEvent(raw []byte) (*Event, error) {
	type rawEnvelope struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Created int64  `json:"created"`
		Data    struct {
			Object json.RawMessage `json:"object"`
		} `json:"data"`
	}

	var envelope rawEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", webhook.ErrMalformedPayload, err)
	}
	if strings.TrimSpace(envelope.ID) == "" {
		return nil, fmt.Errorf("%w: event id missing", webhook.ErrMalformedPayload)
	}

	ev := &Event{
		ID:      strings.TrimSpace(envelope.ID),
		RawKind: strings.TrimSpace(envelope.Type),
		Created: envelope.Created,
	}

	switch EventKind(ev.RawKind) {
	case KindCheckoutCompleted:
		ev.Kind = KindCheckoutCompleted
		checkout, err := parseCheckoutSession(envelope.Data.Object)
		if err != nil {
			return nil, err
		}
		ev.Checkout = checkout
	case KindSubscriptionUpdated, KindSubscriptionDeleted:
		ev.Kind = EventKind(ev.RawKind)
		sub, err := parseSubscriptionState(envelope.Data.Object)
		if err != nil {
			return nil, err
		}
		ev.Sub = sub
	default:
		ev.Kind = KindUnhandled
	}
	return ev, nil
}

func parseCheckoutSession(object json.RawMessage) (*CheckoutSession, error) {
	type rawSession struct {
		ID                string `json:"id"`
		ClientReferenceID string `json:"client_reference_id"`
		Customer          string `json:"customer"`
		Subscription      string `json:"subscription"`
		AmountTotal       int64  `json:"amount_total"`
		Currency          string `json:"currency"`
		Metadata          struct {
			PlanName string `json:"plan_name"`
		} `json:"metadata"`
	}

	var raw rawSession
	if err := json.Unmarshal(object, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", webhook.ErrMalformedPayload, err)
	}
	if strings.TrimSpace(raw.ClientReferenceID) == "" {
		return nil, fmt.Errorf("%w: checkout session missing client_reference_id", webhook.ErrMalformedPayload)
	}

	return &CheckoutSession{
		SessionID:         strings.TrimSpace(raw.ID),
		ClientReferenceID: strings.TrimSpace(raw.ClientReferenceID),
		CustomerID:        strings.TrimSpace(raw.Customer),
		SubscriptionID:    strings.TrimSpace(raw.Subscription),
		AmountTotal:       raw.AmountTotal,
		Currency:          strings.ToLower(strings.TrimSpace(raw.Currency)),
		PlanName:          strings.TrimSpace(raw.Metadata.PlanName),
	}, nil
}

func parseSubscriptionState(object json.RawMessage) (*SubscriptionState, error) {
	type rawSubscription struct {
		ID                string `json:"id"`
		Customer          string `json:"customer"`
		Status            string `json:"status"`
		CurrentPeriodEnd  int64  `json:"current_period_end"`
		CancelAtPeriodEnd bool   `json:"cancel_at_period_end"`
		Plan              struct {
			Nickname string `json:"nickname"`
		} `json:"plan"`
	}

	var raw rawSubscription
	if err := json.Unmarshal(object, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", webhook.ErrMalformedPayload, err)
	}
	if strings.TrimSpace(raw.Customer) == "" {
		return nil, fmt.Errorf("%w: subscription event missing customer", webhook.ErrMalformedPayload)
	}

	out := &SubscriptionState{
		SubscriptionID:    strings.TrimSpace(raw.ID),
		CustomerID:        strings.TrimSpace(raw.Customer),
		Status:            strings.ToLower(strings.TrimSpace(raw.Status)),
		CancelAtPeriodEnd: raw.CancelAtPeriodEnd,
		PlanName:          strings.TrimSpace(raw.Plan.Nickname),
	}
	if raw.CurrentPeriodEnd > 0 {
		t := time.Unix(raw.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &t
	}
	return out, nil
}
