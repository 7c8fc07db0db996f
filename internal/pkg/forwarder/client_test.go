package forwarder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
)

func TestForward_Success(t *testing.T) {
	var got ForwardRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body is not valid JSON: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	snapshot := json.RawMessage(`{"id":12,"company":"Acme"}`)

	if err := client.Forward(context.Background(), "UPDATE", snapshot); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}
	if got.Type != "UPDATE" {
		t.Fatalf("expected forwarded type UPDATE, got %q", got.Type)
	}
	if string(got.Application) != string(snapshot) {
		t.Fatalf("snapshot not forwarded verbatim: %s", got.Application)
	}
	if got.Timestamp == "" {
		t.Fatalf("expected a timestamp on the forward")
	}
}

func TestForward_Non2xxIsDispatchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "downstream broken", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	err := client.Forward(context.Background(), "INSERT", json.RawMessage(`{"id":1}`))
	if !errors.Is(err, webhook.ErrDispatchFailure) {
		t.Fatalf("expected dispatch failure, got %v", err)
	}
}

func TestForward_TransportErrorIsDispatchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused from here on

	client := NewClient(server.URL)
	err := client.Forward(context.Background(), "INSERT", json.RawMessage(`{"id":1}`))
	if !errors.Is(err, webhook.ErrDispatchFailure) {
		t.Fatalf("expected dispatch failure, got %v", err)
	}
}

func TestForward_MissingURLIsConfigurationError(t *testing.T) {
	client := NewClient("")
	err := client.Forward(context.Background(), "INSERT", json.RawMessage(`{"id":1}`))
	if !errors.Is(err, webhook.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
