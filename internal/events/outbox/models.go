package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a domain event waiting in the outbox table for relay to Kafka.
type Entry struct {
	ID          uuid.UUID
	EventType   string
	Key         string
	Payload     []byte // JSON-encoded events.Event
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func (e *Entry) IsPending() bool {
	return e.ProcessedAt == nil
}

func NewEntry(eventType, key string, payload []byte, createdAt time.Time) *Entry {
	return &Entry{
		ID:        uuid.New(),
		EventType: eventType,
		Key:       key,
		Payload:   payload,
		CreatedAt: createdAt,
	}
}
