package billing

import (
	"errors"
	"testing"

	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
)

func TestParseEvent_CheckoutCompleted(t *testing.T) {
	raw := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"created": 1755000000,
		"data": {"object": {
			"id": "cs_test_1",
			"client_reference_id": "acct_42",
			"customer": "cus_9",
			"subscription": "sub_7",
			"amount_total": 4999,
			"currency": "EUR",
			"metadata": {"plan_name": "Pro"}
		}}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	if ev.Kind != KindCheckoutCompleted {
		t.Fatalf("expected kind %q, got %q", KindCheckoutCompleted, ev.Kind)
	}
	if ev.ID != "evt_1" || ev.Created != 1755000000 {
		t.Fatalf("unexpected envelope: id=%q created=%d", ev.ID, ev.Created)
	}
	if ev.Checkout == nil {
		t.Fatalf("expected checkout payload")
	}
	if ev.Checkout.ClientReferenceID != "acct_42" {
		t.Fatalf("expected client reference acct_42, got %q", ev.Checkout.ClientReferenceID)
	}
	if ev.Checkout.Currency != "eur" {
		t.Fatalf("expected lowercased currency, got %q", ev.Checkout.Currency)
	}
	if ev.Checkout.AmountTotal != 4999 || ev.Checkout.PlanName != "Pro" {
		t.Fatalf("unexpected checkout payload: %+v", ev.Checkout)
	}
}

func TestParseEvent_SubscriptionUpdated(t *testing.T) {
	raw := []byte(`{
		"id": "evt_2",
		"type": "customer.subscription.updated",
		"created": 1755000500,
		"data": {"object": {
			"id": "sub_7",
			"customer": "cus_9",
			"status": "PAST_DUE",
			"current_period_end": 1757592000,
			"cancel_at_period_end": true,
			"plan": {"nickname": "Pro"}
		}}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("ParseEvent failed: %v", err)
	}
	if ev.Kind != KindSubscriptionUpdated || ev.Sub == nil {
		t.Fatalf("expected subscription payload, got %+v", ev)
	}
	if ev.Sub.Status != "past_due" {
		t.Fatalf("expected lowercased status, got %q", ev.Sub.Status)
	}
	if !ev.Sub.CancelAtPeriodEnd {
		t.Fatalf("expected cancel_at_period_end to carry through")
	}
	if ev.Sub.CurrentPeriodEnd == nil || ev.Sub.CurrentPeriodEnd.Unix() != 1757592000 {
		t.Fatalf("unexpected current_period_end: %v", ev.Sub.CurrentPeriodEnd)
	}
}

func TestParseEvent_UnknownTypeIsUnhandled(t *testing.T) {
	raw := []byte(`{"id":"evt_3","type":"invoice.paid","created":1,"data":{"object":{}}}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unknown type must decode, got %v", err)
	}
	if ev.Kind != KindUnhandled {
		t.Fatalf("expected unhandled kind, got %q", ev.Kind)
	}
	if ev.RawKind != "invoice.paid" {
		t.Fatalf("expected raw kind to be preserved, got %q", ev.RawKind)
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"id":`},
		{name: "missing id", raw: `{"type":"checkout.session.completed","created":1,"data":{"object":{}}}`},
		{name: "checkout without client reference", raw: `{"id":"evt_4","type":"checkout.session.completed","created":1,"data":{"object":{"customer":"cus_9"}}}`},
		{name: "subscription without customer", raw: `{"id":"evt_5","type":"customer.subscription.updated","created":1,"data":{"object":{"id":"sub_7"}}}`},
	}

	for _, tt := range tests {
		if _, err := ParseEvent([]byte(tt.raw)); !errors.Is(err, webhook.ErrMalformedPayload) {
			t.Fatalf("%s: expected malformed payload error, got %v", tt.name, err)
		}
	}
}
