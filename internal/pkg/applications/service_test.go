package applications

import (
	"errors"
	"testing"

	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
)

func TestParseChangeEvent(t *testing.T) {
	raw := []byte(`{"type":"update","record":{"id":12,"company":"Acme","position":"Engineer"}}`)

	ev, err := ParseChangeEvent(raw)
	if err != nil {
		t.Fatalf("ParseChangeEvent failed: %v", err)
	}
	if ev.ChangeType != "UPDATE" {
		t.Fatalf("expected normalized change type UPDATE, got %q", ev.ChangeType)
	}
	if ev.RecordID != 12 {
		t.Fatalf("expected record id 12, got %d", ev.RecordID)
	}
	if len(ev.RawSnapshot) == 0 {
		t.Fatalf("expected raw snapshot to be kept")
	}
}

func TestParseChangeEvent_IDIsPayloadHash(t *testing.T) {
	raw := []byte(`{"type":"INSERT","record":{"id":3}}`)

	a, err := ParseChangeEvent(raw)
	if err != nil {
		t.Fatalf("ParseChangeEvent failed: %v", err)
	}
	b, err := ParseChangeEvent(raw)
	if err != nil {
		t.Fatalf("ParseChangeEvent failed: %v", err)
	}
	if a.ID != b.ID {
		t.Fatalf("identical payloads must hash to the same event id: %q vs %q", a.ID, b.ID)
	}

	other, err := ParseChangeEvent([]byte(`{"type":"INSERT","record":{"id":4}}`))
	if err != nil {
		t.Fatalf("ParseChangeEvent failed: %v", err)
	}
	if a.ID == other.ID {
		t.Fatalf("different payloads must not collide on event id")
	}
}

func TestParseChangeEvent_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "not json", raw: `{"type":`},
		{name: "missing type", raw: `{"record":{"id":1}}`},
		{name: "unknown type", raw: `{"type":"TRUNCATE","record":{"id":1}}`},
		{name: "missing record", raw: `{"type":"INSERT"}`},
		{name: "record without id", raw: `{"type":"INSERT","record":{"company":"Acme"}}`},
	}

	for _, tt := range tests {
		if _, err := ParseChangeEvent([]byte(tt.raw)); !errors.Is(err, webhook.ErrMalformedPayload) {
			t.Fatalf("%s: expected malformed payload error, got %v", tt.name, err)
		}
	}
}
