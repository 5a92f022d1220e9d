package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rollcall/internal/otp/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// InMemoryStore keeps sessions in process memory for tests and single-node development.
// A single mutex serializes the lease check and insert, which is what makes codes unique.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]*models.Session
	latest   map[string]id.SessionID // code -> most recently issued session
	leases   map[string]time.Time    // code -> lease expiry
}

// New constructs an empty in-memory session store.
func New() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[id.SessionID]*models.Session),
		latest:   make(map[string]id.SessionID),
		leases:   make(map[string]time.Time),
	}
}

func (s *InMemoryStore) Create(_ context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return sentinel.ErrConflict
	}
	if leaseExpiry, ok := s.leases[session.Code]; ok && leaseExpiry.After(session.IssuedAt) {
		return sentinel.ErrConflict
	}
	s.sessions[session.ID] = copySession(session)
	s.latest[session.Code] = session.ID
	s.leases[session.Code] = session.ExpiresAt
	return nil
}

func (s *InMemoryStore) FindByCode(_ context.Context, code string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessionID, ok := s.latest[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySession(s.sessions[sessionID]), nil
}

func (s *InMemoryStore) FindByID(_ context.Context, sessionID id.SessionID) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return copySession(session), nil
}

// DeleteExpiredLeases releases leases whose sessions have expired. Session
// history is retained so expired codes still resolve as expired.
func (s *InMemoryStore) DeleteExpiredLeases(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for code, expiresAt := range s.leases {
		if !expiresAt.After(now) {
			delete(s.leases, code)
			deleted++
		}
	}
	return deleted, nil
}
