package store

import (
	"context"
	"time"

	"rollcall/internal/otp/models"
	id "rollcall/pkg/domain"
)

// Store persists verification sessions and the code leases that keep live codes unique.
//
// Error Contract:
//   - Create returns sentinel.ErrConflict when the code is leased by a session that is
//     still live at session.IssuedAt
//   - FindByCode and FindByID return sentinel.ErrNotFound when nothing matches
//   - FindByCode returns the most recently issued session for a recycled code
//   - Other failures are wrapped infrastructure errors
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByCode(ctx context.Context, code string) (*models.Session, error)
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	DeleteExpiredLeases(ctx context.Context, now time.Time) (int, error)
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*RedisStore)(nil)
)

func copySession(s *models.Session) *models.Session {
	c := *s
	c.Classification = s.Classification.Clone()
	return &c
}
