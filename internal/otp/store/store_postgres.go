package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rollcall/internal/geo"
	"rollcall/internal/otp/models"
	id "rollcall/pkg/domain"
	"rollcall/pkg/platform/sentinel"
)

// PostgresStore persists sessions in PostgreSQL.
//
// Live-code uniqueness is enforced by otp_code_leases: one row per code, which an
// insert may only take over once the previous holder's expires_at has passed.
// Session rows in otp_sessions are never deleted.
type PostgresStore struct {
	db *sql.DB
	tx *sql.Tx
}

// NewPostgres constructs a PostgreSQL-backed session store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// NewPostgresTx constructs a PostgreSQL-backed session store bound to a transaction.
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

func (s *PostgresStore) Create(ctx context.Context, session *models.Session) error {
	if session == nil {
		return fmt.Errorf("session is required")
	}
	if s.tx != nil {
		return createSession(ctx, s.tx, session)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create session tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := createSession(ctx, tx, session); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create session: %w", err)
	}
	return nil
}

func createSession(ctx context.Context, exec dbExecutor, session *models.Session) error {
	leaseQuery := `
		INSERT INTO otp_code_leases (code, session_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (code) DO UPDATE
		SET session_id = EXCLUDED.session_id, expires_at = EXCLUDED.expires_at
		WHERE otp_code_leases.expires_at <= $4
		RETURNING session_id
	`
	var leasedTo uuid.UUID
	err := exec.QueryRowContext(ctx, leaseQuery,
		session.Code,
		uuid.UUID(session.ID),
		session.ExpiresAt,
		session.IssuedAt,
	).Scan(&leasedTo)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("lease session code: %w", err)
	}

	classification, err := json.Marshal(session.Classification)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}
	insertQuery := `
		INSERT INTO otp_sessions (id, code, anchor_latitude, anchor_longitude, classification, issuer_id, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`
	var storedID uuid.UUID
	err = exec.QueryRowContext(ctx, insertQuery,
		uuid.UUID(session.ID),
		session.Code,
		session.Anchor.Latitude,
		session.Anchor.Longitude,
		classification,
		uuid.UUID(session.IssuerID),
		session.IssuedAt,
		session.ExpiresAt,
	).Scan(&storedID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByCode(ctx context.Context, code string) (*models.Session, error) {
	query := `
		SELECT id, code, anchor_latitude, anchor_longitude, classification, issuer_id, issued_at, expires_at
		FROM otp_sessions
		WHERE code = $1
		ORDER BY issued_at DESC
		LIMIT 1
	`
	session, err := scanSession(s.execer().QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session by code: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	query := `
		SELECT id, code, anchor_latitude, anchor_longitude, classification, issuer_id, issued_at, expires_at
		FROM otp_sessions
		WHERE id = $1
	`
	session, err := scanSession(s.execer().QueryRowContext(ctx, query, uuid.UUID(sessionID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find session by id: %w", err)
	}
	return session, nil
}

func (s *PostgresStore) DeleteExpiredLeases(ctx context.Context, now time.Time) (int, error) {
	res, err := s.execer().ExecContext(ctx, `DELETE FROM otp_code_leases WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired leases: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired leases rows: %w", err)
	}
	return int(rows), nil
}

type sessionRow interface {
	Scan(dest ...any) error
}

func scanSession(row sessionRow) (*models.Session, error) {
	var (
		session        models.Session
		sessionID      uuid.UUID
		issuerID       uuid.UUID
		classification []byte
		anchor         geo.Point
	)
	if err := row.Scan(&sessionID, &session.Code, &anchor.Latitude, &anchor.Longitude,
		&classification, &issuerID, &session.IssuedAt, &session.ExpiresAt); err != nil {
		return nil, err
	}
	session.ID = id.SessionID(sessionID)
	session.IssuerID = id.IssuerID(issuerID)
	session.Anchor = anchor
	if len(classification) > 0 {
		if err := json.Unmarshal(classification, &session.Classification); err != nil {
			return nil, fmt.Errorf("unmarshal classification: %w", err)
		}
	}
	return &session, nil
}
