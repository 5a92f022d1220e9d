package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"rollcall/internal/attendance/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

type recordKey struct {
	claimant id.ClaimantID
	session  id.SessionID
}

// InMemoryStore stores attendance records in memory for tests and single-node
// development. The mutex makes the existence check and insert one step.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[recordKey]*models.Record
	ids     map[id.RecordID]struct{}
}

// New constructs an empty in-memory attendance store.
func New() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[recordKey]*models.Record),
		ids:     make(map[id.RecordID]struct{}),
	}
}

func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("attendance record is required")
	}
	key := recordKey{claimant: record.ClaimantID, session: record.SessionID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[key]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.ids[record.ID]; exists {
		return sentinel.ErrConflict
	}
	s.records[key] = copyRecord(record)
	s.ids[record.ID] = struct{}{}
	return nil
}

func (s *InMemoryStore) FindByClaimantAndSession(_ context.Context, claimantID id.ClaimantID, sessionID id.SessionID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[recordKey{claimant: claimantID, session: sessionID}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copyRecord(record), nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID id.SessionID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for key, record := range s.records {
		if key.session == sessionID {
			out = append(out, copyRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListByClaimant(_ context.Context, claimantID id.ClaimantID) ([]*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Record
	for key, record := range s.records {
		if key.claimant == claimantID {
			out = append(out, copyRecord(record))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
