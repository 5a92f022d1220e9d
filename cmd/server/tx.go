package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	attendanceservice "rollcall/internal/attendance/service"
	attendancestore "rollcall/internal/attendance/store"
	"rollcall/internal/events"
	"rollcall/internal/events/outbox"
	outboxstore "rollcall/internal/events/outbox/store"
	otpservice "rollcall/internal/otp/service"
	otpstore "rollcall/internal/otp/store"
)

const defaultTxTimeout = 5 * time.Second

// postgresTx runs a write and its outbox entry in one transaction.
type postgresTx struct {
	db      *sql.DB
	timeout time.Duration
}

func newPostgresTx(db *sql.DB) *postgresTx {
	return &postgresTx{db: db}
}

func (t *postgresTx) run(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback() //nolint:errcheck // no-op after commit
	}()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func outboxSink(tx *sql.Tx) events.Sink {
	return outbox.NewSink(outboxstore.NewPostgresTx(tx))
}

// attendanceTx commits a record with its attendance.recorded outbox row.
type attendanceTx struct{ *postgresTx }

func (t attendanceTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store attendanceservice.Store, sink events.Sink) error) error {
	return t.run(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, attendancestore.NewPostgresTx(tx), outboxSink(tx))
	})
}

// sessionTx commits a session and its code lease with the otp.session_issued outbox row.
type sessionTx struct{ *postgresTx }

func (t sessionTx) RunInTx(ctx context.Context, fn func(ctx context.Context, store otpservice.Store, sink events.Sink) error) error {
	return t.run(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, otpstore.NewPostgresTx(tx), outboxSink(tx))
	})
}
