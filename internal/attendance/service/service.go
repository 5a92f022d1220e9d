package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rollcall/internal/attendance/decision"
	"rollcall/internal/attendance/metrics"
	"rollcall/internal/attendance/models"
	"rollcall/internal/events"
	"rollcall/internal/geo"
	otpmodels "rollcall/internal/otp/models"
	"rollcall/internal/platform/tracer"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// Store defines the persistence interface for attendance records.
// Error Contract:
//   - Create returns sentinel.ErrConflict when the (claimant, session) pair already has a record
//   - FindByClaimantAndSession returns sentinel.ErrNotFound when no record exists
type Store interface {
	Create(ctx context.Context, record *models.Record) error
	FindByClaimantAndSession(ctx context.Context, claimantID id.ClaimantID, sessionID id.SessionID) (*models.Record, error)
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]*models.Record, error)
	ListByClaimant(ctx context.Context, claimantID id.ClaimantID) ([]*models.Record, error)
}

// SessionResolver turns a claimant's code into its live session. Errors are
// already domain errors and are returned unchanged.
type SessionResolver interface {
	Resolve(ctx context.Context, code string) (*otpmodels.Session, error)
}

// SessionLookup finds one of an issuer's sessions regardless of expiry.
type SessionLookup interface {
	Get(ctx context.Context, issuerID id.IssuerID, code string) (*otpmodels.Session, error)
	GetByID(ctx context.Context, issuerID id.IssuerID, sessionID id.SessionID) (*otpmodels.Session, error)
}

type EventPublisher interface {
	Emit(ctx context.Context, event events.Event)
}

// TxRunner runs fn in one transaction. The store and sink handed to fn write
// through it, so a record and its event commit or roll back together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store, sink events.Sink) error) error
}

// Config holds the decision constants applied to every claim.
type Config struct {
	BaseThreshold float64
	Policy        decision.Policy
}

type Option func(*Service)

// Service records claims against verification sessions.
type Service struct {
	store     Store
	sessions  SessionResolver
	lookup    SessionLookup
	publisher EventPublisher
	tx        TxRunner
	tracer    tracer.Tracer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config
}

func New(store Store, sessions SessionResolver, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("attendance store is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("session resolver is required")
	}
	if cfg.BaseThreshold <= 0 {
		cfg.BaseThreshold = decision.DefaultBaseThreshold
	}
	if cfg.Policy == (decision.Policy{}) {
		cfg.Policy = decision.DefaultPolicy()
	}
	svc := &Service{
		store:    store,
		sessions: sessions,
		tracer:   tracer.NewNoop(),
		logger:   slog.Default(),
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

func WithPublisher(p EventPublisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithTx writes each record together with its attendance.recorded event.
// The publisher is not used for that event once a runner is set.
func WithTx(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithSessionLookup enables the issuer roster.
func WithSessionLookup(l SessionLookup) Option {
	return func(s *Service) {
		s.lookup = l
	}
}

// Claim resolves the code, checks the claimant belongs to the session's
// classification, and records a PRESENT or ABSENT outcome. A claimant gets one
// record per session; the store's uniqueness constraint settles races and the
// loser receives the same conflict as a sequential duplicate.
func (s *Service) Claim(ctx context.Context, cmd models.ClaimCommand) (_ *models.Record, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanClaim)
	defer func() {
		span.End(err)
		s.observeClaimLatency(time.Since(start))
		if err != nil {
			s.incrementRejection(rejectionReason(err))
		}
	}()

	if cmd.ClaimantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing claimant context")
	}

	session, err := s.sessions.Resolve(ctx, cmd.Code)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracer.String(tracer.AttrSessionID, session.ID.String()))

	claimant := cmd.Classification.Normalize()
	if !session.Classification.Matches(claimant) {
		return nil, dErrors.New(dErrors.CodeMismatch, fmt.Sprintf("This code is for %s, but you submitted %s",
			session.Classification.String(), session.Classification.Project(claimant).String()))
	}

	_, err = s.store.FindByClaimantAndSession(ctx, cmd.ClaimantID, session.ID)
	switch {
	case err == nil:
		return nil, dErrors.New(dErrors.CodeConflict, "Attendance already marked for this session")
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read attendance")
	}

	distance, method, err := geo.DistanceWithMethod(session.Anchor, cmd.Point)
	if err != nil {
		return nil, err
	}
	outcome := s.cfg.Policy.Decide(distance, cmd.ReportedAccuracy, s.cfg.BaseThreshold)
	span.SetAttributes(
		tracer.Float64(tracer.AttrDistanceMeters, distance),
		tracer.String(tracer.AttrDistanceMethod, string(method)),
		tracer.Float64(tracer.AttrEffectiveThresh, outcome.EffectiveThreshold),
		tracer.Bool(tracer.AttrLowConfidence, outcome.LowConfidence),
		tracer.String(tracer.AttrStatus, string(outcome.Status)),
	)

	record, err := models.NewRecord(id.NewRecordID(), cmd.ClaimantID, session, cmd.Point,
		cmd.ReportedAccuracy, distance, outcome, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, record); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "Attendance already marked for this session")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save attendance")
	}

	s.recordClaim(ctx, record, outcome)
	return record, nil
}

// ListBySession returns the roster for one of issuerID's sessions, oldest first.
func (s *Service) ListBySession(ctx context.Context, issuerID id.IssuerID, code string) ([]*models.Record, error) {
	if s.lookup == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "session lookup not configured")
	}
	session, err := s.lookup.Get(ctx, issuerID, code)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance")
	}
	return records, nil
}

// ListBySessionID is ListBySession for a session identified by ID, which stays
// reachable after its code has been reissued.
func (s *Service) ListBySessionID(ctx context.Context, issuerID id.IssuerID, sessionID id.SessionID) (*models.Roster, error) {
	if s.lookup == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "session lookup not configured")
	}
	session, err := s.lookup.GetByID(ctx, issuerID, sessionID)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance")
	}
	return &models.Roster{SessionID: session.ID, SessionCode: session.Code, Records: records}, nil
}

// ListByClaimant returns the claimant's own records, newest first.
func (s *Service) ListByClaimant(ctx context.Context, claimantID id.ClaimantID) ([]*models.Record, error) {
	if claimantID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing claimant context")
	}
	records, err := s.store.ListByClaimant(ctx, claimantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list attendance")
	}
	return records, nil
}

func (s *Service) save(ctx context.Context, record *models.Record) error {
	if s.tx == nil {
		return s.store.Create(ctx, record)
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context, store Store, sink events.Sink) error {
		if err := store.Create(ctx, record); err != nil {
			return err
		}
		return sink.Append(ctx, recordedEvent(record))
	})
}

func (s *Service) recordClaim(ctx context.Context, record *models.Record, outcome decision.Outcome) {
	if s.metrics != nil {
		s.metrics.IncrementClaim(string(record.Status))
		s.metrics.ObserveDistance(record.DistanceMeters)
		if outcome.LowConfidence {
			s.metrics.IncrementLowConfidence()
		}
	}
	s.logger.InfoContext(ctx, "attendance recorded",
		"request_id", requestcontext.RequestID(ctx),
		"session_code", record.SessionCode,
		"claimant_id", record.ClaimantID.String(),
		"status", string(record.Status),
		"distance_m", record.DistanceMeters,
		"effective_threshold_m", record.EffectiveThreshold,
		"low_confidence", outcome.LowConfidence,
	)
	if s.tx != nil || s.publisher == nil {
		return
	}
	s.publisher.Emit(ctx, recordedEvent(record))
}

func recordedEvent(record *models.Record) events.Event {
	return events.Event{
		Type:       events.TypeAttendanceRecorded,
		Key:        record.SessionID.String(),
		OccurredAt: record.CreatedAt,
		Payload: events.AttendanceRecorded{
			RecordID:           record.ID.String(),
			SessionID:          record.SessionID.String(),
			SessionCode:        record.SessionCode,
			ClaimantID:         record.ClaimantID.String(),
			Status:             string(record.Status),
			DistanceMeters:     record.DistanceMeters,
			ReportedAccuracy:   record.ReportedAccuracy,
			EffectiveThreshold: record.EffectiveThreshold,
			Classification:     record.Classification,
			CreatedAt:          record.CreatedAt,
		},
	}
}

// rejectionReason labels a failed claim by its domain code.
func rejectionReason(err error) string {
	return string(dErrors.CodeOf(err))
}

func (s *Service) observeClaimLatency(d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveClaimLatency(d.Seconds())
	}
}

func (s *Service) incrementRejection(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementRejection(reason)
	}
}
