package outbox

import (
	"context"
	"fmt"

	"github.com/applitrack/AppliTrack/app/models"
	"github.com/applitrack/AppliTrack/internal/pkg/forwarder"
)

// ForwardProcessor dispatches application-snapshot outbox items to the
// downstream automation endpoint.
type ForwardProcessor struct {
	client *forwarder.Client
}

// NewForwardProcessor creates the snapshot dispatch processor.
func NewForwardProcessor(client *forwarder.Client) *ForwardProcessor {
	return &ForwardProcessor{client: client}
}

func (p *ForwardProcessor) Kind() string {
	return models.OutboxKindForwardApplication
}

func (p *ForwardProcessor) Process(ctx context.Context, item *models.OutboxItem) error {
	var payload ForwardPayload
	if err := decodePayload(item, &payload); err != nil {
		return fmt.Errorf("decode forward payload: %w", err)
	}
	return p.client.Forward(ctx, payload.ChangeType, payload.Application)
}
