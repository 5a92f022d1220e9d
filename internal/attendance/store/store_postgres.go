package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"rollcall/internal/attendance/decision"
	"rollcall/internal/attendance/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// PostgresStore persists attendance records in PostgreSQL. The
// UNIQUE (claimant_id, session_id) constraint is the final arbiter of
// duplicate claims.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed attendance store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed attendance store bound to a transaction.
func NewPostgresTx(tx *sql.Tx) *PostgresStore {
	return &PostgresStore{tx: tx}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer() dbExecutor {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const recordColumns = `id, claimant_id, session_id, session_code, claimant_latitude, claimant_longitude,
		reported_accuracy, distance_meters, effective_threshold, status, classification, created_at`

func (s *PostgresStore) Create(ctx context.Context, record *models.Record) error {
	if record == nil {
		return fmt.Errorf("attendance record is required")
	}
	classification, err := json.Marshal(record.Classification)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	query := `
		INSERT INTO attendance_records (` + recordColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.execer().ExecContext(ctx, query,
		uuid.UUID(record.ID),
		uuid.UUID(record.ClaimantID),
		uuid.UUID(record.SessionID),
		record.SessionCode,
		record.ClaimantPoint.Latitude,
		record.ClaimantPoint.Longitude,
		record.ReportedAccuracy,
		record.DistanceMeters,
		record.EffectiveThreshold,
		string(record.Status),
		classification,
		record.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save attendance record: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByClaimantAndSession(ctx context.Context, claimantID id.ClaimantID, sessionID id.SessionID) (*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE claimant_id = $1 AND session_id = $2`
	record, err := scanRecord(s.execer().QueryRowContext(ctx, query, uuid.UUID(claimantID), uuid.UUID(sessionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find attendance record: %w", err)
	}
	return record, nil
}

func (s *PostgresStore) ListBySession(ctx context.Context, sessionID id.SessionID) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE session_id = $1 ORDER BY created_at ASC, id ASC`
	return s.list(ctx, query, uuid.UUID(sessionID))
}

func (s *PostgresStore) ListByClaimant(ctx context.Context, claimantID id.ClaimantID) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM attendance_records WHERE claimant_id = $1 ORDER BY created_at DESC, id DESC`
	return s.list(ctx, query, uuid.UUID(claimantID))
}

func (s *PostgresStore) list(ctx context.Context, query string, arg any) ([]*models.Record, error) {
	rows, err := s.execer().QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	defer rows.Close()

	var records []*models.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var (
		record         models.Record
		recordID       uuid.UUID
		claimantID     uuid.UUID
		sessionID      uuid.UUID
		status         string
		classification []byte
	)
	if err := row.Scan(&recordID, &claimantID, &sessionID, &record.SessionCode,
		&record.ClaimantPoint.Latitude, &record.ClaimantPoint.Longitude,
		&record.ReportedAccuracy, &record.DistanceMeters, &record.EffectiveThreshold,
		&status, &classification, &record.CreatedAt); err != nil {
		return nil, err
	}
	record.ID = id.RecordID(recordID)
	record.ClaimantID = id.ClaimantID(claimantID)
	record.SessionID = id.SessionID(sessionID)
	record.Status = decision.Status(status)
	if len(classification) > 0 {
		if err := json.Unmarshal(classification, &record.Classification); err != nil {
			return nil, fmt.Errorf("unmarshal classification: %w", err)
		}
	}
	return &record, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
