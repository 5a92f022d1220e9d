package store

import (
	"context"

	"rollcall/internal/attendance/models"
	id "rollcall/pkg/domain"
)

// Store persists attendance records. Records are append-only.
//
// Error Contract:
//   - Create returns sentinel.ErrConflict when a record already exists for
//     (ClaimantID, SessionID); the existing record is left untouched
//   - FindByClaimantAndSession returns sentinel.ErrNotFound when no record exists
//   - ListBySession orders by CreatedAt ascending, ListByClaimant descending
//   - Other failures are wrapped infrastructure errors
type Store interface {
	Create(ctx context.Context, record *models.Record) error
	FindByClaimantAndSession(ctx context.Context, claimantID id.ClaimantID, sessionID id.SessionID) (*models.Record, error)
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]*models.Record, error)
	ListByClaimant(ctx context.Context, claimantID id.ClaimantID) ([]*models.Record, error)
}

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func copyRecord(r *models.Record) *models.Record {
	c := *r
	c.Classification = r.Classification.Clone()
	return &c
}
