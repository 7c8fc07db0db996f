package forwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/applitrack/AppliTrack/internal/pkg/webhook"
)

// Client posts enriched application snapshots to the downstream
// automation endpoint. One immutably-configured instance is built at
// startup and shared by all dispatch workers.
type Client struct {
	EndpointURL string
	HTTPClient  *http.Client
}

// ForwardRequest is the wire shape of a downstream forward.
type ForwardRequest struct {
	Type        string          `json:"type"`
	Application json.RawMessage `json:"application"`
	Timestamp   string          `json:"timestamp"`
}

// NewClient creates a forwarder for the given endpoint.
func NewClient(endpointURL string) *Client {
	return &Client{
		EndpointURL: strings.TrimSpace(endpointURL),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Forward delivers one snapshot. A non-2xx response or transport
// failure is a dispatch failure; the caller retries.
func (c *Client) Forward(ctx context.Context, changeType string, application json.RawMessage) error {
	if c.EndpointURL == "" {
		return fmt.Errorf("%w: forward URL is not set", webhook.ErrConfiguration)
	}

	body, err := json.Marshal(ForwardRequest{
		Type:        changeType,
		Application: application,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.EndpointURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", webhook.ErrDispatchFailure, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: downstream returned status=%d body=%s",
			webhook.ErrDispatchFailure, resp.StatusCode, string(respBody))
	}
	return nil
}
