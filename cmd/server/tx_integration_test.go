//go:build integration

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"rollcall/internal/attendance/models"
	attendanceservice "rollcall/internal/attendance/service"
	attendancestore "rollcall/internal/attendance/store"
	"rollcall/internal/events"
	"rollcall/internal/geo"
	otpmodels "rollcall/internal/otp/models"
	otpservice "rollcall/internal/otp/service"
	otpstore "rollcall/internal/otp/store"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/requestcontext"
	"rollcall/pkg/testutil/containers"
)

type OutboxTxSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	sessions *otpservice.Service
	ledger   *attendanceservice.Service
	ctx      context.Context
}

func TestOutboxTxSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxTxSuite))
}

func (s *OutboxTxSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tx := newPostgresTx(s.postgres.DB)

	var err error
	s.sessions, err = otpservice.New(otpstore.NewPostgres(s.postgres.DB), otpservice.Config{},
		otpservice.WithLogger(logger),
		otpservice.WithTx(sessionTx{tx}),
	)
	s.Require().NoError(err)
	s.ledger, err = attendanceservice.New(attendancestore.NewPostgres(s.postgres.DB), s.sessions, attendanceservice.Config{},
		attendanceservice.WithLogger(logger),
		attendanceservice.WithTx(attendanceTx{tx}),
	)
	s.Require().NoError(err)
}

func (s *OutboxTxSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateAll(context.Background()))
	s.ctx = requestcontext.WithTime(context.Background(), time.Now().UTC().Truncate(time.Microsecond))
}

func (s *OutboxTxSuite) count(table string) int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func (s *OutboxTxSuite) countEvents(t events.Type) int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM event_outbox WHERE event_type = $1", string(t)).Scan(&n))
	return n
}

func (s *OutboxTxSuite) TestIssueAndClaimCommitWithTheirEvents() {
	anchor := geo.Point{Latitude: 12.9716, Longitude: 77.5946}
	session, err := s.sessions.Issue(s.ctx, otpmodels.IssueCommand{
		IssuerID:       id.IssuerID(uuid.New()),
		Anchor:         anchor,
		Classification: otpmodels.Classification{"cohort": "cs101"},
	})
	s.Require().NoError(err)
	s.Equal(1, s.count("otp_sessions"))
	s.Equal(1, s.countEvents(events.TypeSessionIssued))

	claim := models.ClaimCommand{
		ClaimantID:     id.ClaimantID(uuid.New()),
		Code:           session.Code,
		Point:          anchor,
		Classification: otpmodels.Classification{"cohort": "cs101"},
	}
	_, err = s.ledger.Claim(s.ctx, claim)
	s.Require().NoError(err)
	s.Equal(1, s.count("attendance_records"))
	s.Equal(1, s.countEvents(events.TypeAttendanceRecorded))

	_, err = s.ledger.Claim(s.ctx, claim)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	s.Equal(1, s.count("attendance_records"))
	s.Equal(1, s.countEvents(events.TypeAttendanceRecorded))
}

func (s *OutboxTxSuite) TestFailureRollsBackRowAndEvent() {
	session := &otpmodels.Session{
		ID:        id.NewSessionID(),
		Code:      "482913",
		IssuerID:  id.IssuerID(uuid.New()),
		IssuedAt:  requestcontext.Now(s.ctx),
		ExpiresAt: requestcontext.Now(s.ctx).Add(5 * time.Minute),
	}
	abort := errors.New("abort")

	err := sessionTx{newPostgresTx(s.postgres.DB)}.RunInTx(s.ctx,
		func(ctx context.Context, store otpservice.Store, sink events.Sink) error {
			if err := store.Create(ctx, session); err != nil {
				return err
			}
			if err := sink.Append(ctx, events.Event{Type: events.TypeSessionIssued, Key: session.ID.String(), OccurredAt: session.IssuedAt}); err != nil {
				return err
			}
			return abort
		})
	s.ErrorIs(err, abort)
	s.Zero(s.count("otp_sessions"))
	s.Zero(s.count("otp_code_leases"))
	s.Zero(s.count("event_outbox"))
}

func (s *OutboxTxSuite) TestCancelledContextNeverBegins() {
	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	called := false
	err := attendanceTx{newPostgresTx(s.postgres.DB)}.RunInTx(ctx,
		func(context.Context, attendanceservice.Store, events.Sink) error {
			called = true
			return nil
		})
	s.ErrorIs(err, context.Canceled)
	s.False(called)
}
