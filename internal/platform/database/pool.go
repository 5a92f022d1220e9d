// Package database opens the Postgres pool shared by the session, attendance
// and outbox stores.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"rollcall/internal/platform/config"
)

const connectTimeout = 5 * time.Second

var errNotConfigured = errors.New("database not configured")

// Pool is a *sql.DB on the pgx driver. A nil *Pool means Postgres is
// disabled; its methods are safe to call.
type Pool struct {
	db *sql.DB
}

// New opens and pings the pool. It returns a nil Pool when cfg.URL is empty.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{db: db}, nil
}

// DB returns the underlying handle, or nil when Postgres is disabled.
func (p *Pool) DB() *sql.DB {
	if p == nil {
		return nil
	}
	return p.db
}

// Migrate applies the pending up-migrations found in fsys.
func (p *Pool) Migrate(ctx context.Context, fsys fs.FS) ([]Migration, error) {
	if p == nil {
		return nil, errNotConfigured
	}
	return Migrate(ctx, p.db, fsys)
}

func (p *Pool) Health(ctx context.Context) error {
	if p == nil {
		return errNotConfigured
	}
	return p.db.PingContext(ctx)
}

func (p *Pool) Stats() sql.DBStats {
	if p == nil {
		return sql.DBStats{}
	}
	return p.db.Stats()
}

func (p *Pool) Close() error {
	if p == nil {
		return nil
	}
	return p.db.Close()
}
