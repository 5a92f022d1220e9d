package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/events/outbox"
	"rollcall/pkg/platform/sentinel"
)

// InMemoryStore is an outbox kept in a map. It backs tests and single-process runs.
type InMemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*outbox.Entry
}

func New() *InMemoryStore {
	return &InMemoryStore{entries: make(map[uuid.UUID]*outbox.Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry *outbox.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	cp.Payload = slices.Clone(entry.Payload)
	s.entries[entry.ID] = &cp
	return nil
}

func (s *InMemoryStore) FetchUnprocessed(_ context.Context, limit int) ([]*outbox.Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := make([]*outbox.Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if e.IsPending() {
			cp := *e
			pending = append(pending, &cp)
		}
	}
	slices.SortFunc(pending, func(a, b *outbox.Entry) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return slices.Compare(a.ID[:], b.ID[:])
	})
	if len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, id uuid.UUID, processedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || !e.IsPending() {
		return sentinel.ErrNotFound
	}
	e.ProcessedAt = &processedAt
	return nil
}

func (s *InMemoryStore) CountPending(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, e := range s.entries {
		if e.IsPending() {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, e := range s.entries {
		if e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(s.entries, id)
			n++
		}
	}
	return n, nil
}
