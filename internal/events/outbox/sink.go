package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"rollcall/internal/events"
)

// Sink writes events to the outbox instead of the broker. A Worker relays
// them later, so a broker outage delays events rather than losing them.
type Sink struct {
	store Store
}

func NewSink(store Store) *Sink {
	return &Sink{store: store}
}

func (s *Sink) Append(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	entry := NewEntry(string(event.Type), event.Key, payload, event.OccurredAt)
	if err := s.store.Append(ctx, entry); err != nil {
		return fmt.Errorf("append %s to outbox: %w", event.Type, err)
	}
	return nil
}
