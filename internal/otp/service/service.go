package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"rollcall/internal/events"
	"rollcall/internal/otp/metrics"
	"rollcall/internal/otp/models"
	"rollcall/internal/platform/tracer"
	id "rollcall/pkg/domain"
	dErrors "rollcall/pkg/domain-errors"
	"rollcall/pkg/platform/sentinel"
	"rollcall/pkg/requestcontext"
)

// Store defines the persistence interface for verification sessions.
// Error Contract:
//   - Create returns sentinel.ErrConflict when the code is held by a live session
//   - FindByCode returns sentinel.ErrNotFound when no session ever used the code
//   - FindByID returns sentinel.ErrNotFound for unknown IDs
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	FindByCode(ctx context.Context, code string) (*models.Session, error)
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
}

// EventPublisher receives domain events after a session is persisted.
type EventPublisher interface {
	Emit(ctx context.Context, event events.Event)
}

// TxRunner runs fn in one transaction whose store and sink share it, so a
// session and its otp.session_issued event commit together.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, store Store, sink events.Sink) error) error
}

// Config bounds session lifetimes and code generation.
type Config struct {
	DefaultTTL  time.Duration
	MinTTL      time.Duration
	MaxTTL      time.Duration
	CodeLength  int
	MaxAttempts int
}

const (
	defaultSessionTTL  = 5 * time.Minute
	defaultMinTTL      = 30 * time.Second
	defaultMaxTTL      = time.Hour
	defaultCodeLength  = 6
	defaultMaxAttempts = 10
)

func (c *Config) applyDefaults() {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultSessionTTL
	}
	if c.MinTTL <= 0 {
		c.MinTTL = defaultMinTTL
	}
	if c.MaxTTL <= 0 {
		c.MaxTTL = defaultMaxTTL
	}
	if c.CodeLength <= 0 {
		c.CodeLength = defaultCodeLength
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
}

type Option func(*Service)

// Service issues and resolves time-limited presence codes.
type Service struct {
	store     Store
	codes     CodeGenerator
	publisher EventPublisher
	tx        TxRunner
	tracer    tracer.Tracer
	metrics   *metrics.Metrics
	logger    *slog.Logger
	cfg       Config
}

func New(store Store, cfg Config, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	cfg.applyDefaults()
	if cfg.MinTTL > cfg.MaxTTL {
		return nil, fmt.Errorf("min ttl %s exceeds max ttl %s", cfg.MinTTL, cfg.MaxTTL)
	}
	svc := &Service{
		store:  store,
		codes:  RandomDigits{},
		tracer: tracer.NewNoop(),
		logger: slog.Default(),
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// WithMetrics sets the metrics instance for the service
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithLogger sets the logger instance for the service.
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

// WithTx issues sessions through tx. The publisher is skipped for the issue
// event once a runner is set.
func WithTx(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

// WithCodeGenerator replaces the crypto/rand generator.
func WithCodeGenerator(g CodeGenerator) Option {
	return func(s *Service) {
		if g != nil {
			s.codes = g
		}
	}
}

// Issue mints a session with a code no live session holds. Collisions are
// retried with a fresh code up to MaxAttempts, then reported as exhausted.
func (s *Service) Issue(ctx context.Context, cmd models.IssueCommand) (_ *models.Session, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, tracer.SpanIssue)
	defer func() {
		span.End(err)
		s.observeIssueLatency(time.Since(start))
	}()

	if cmd.IssuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing issuer context")
	}
	if err := cmd.Anchor.Validate(); err != nil {
		s.incrementIssueFailure("invalid_anchor")
		return nil, err
	}
	ttl, err := s.resolveTTL(cmd.TTL)
	if err != nil {
		s.incrementIssueFailure("invalid_ttl")
		return nil, err
	}

	now := requestcontext.Now(ctx)
	classification := cmd.Classification.Normalize()

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		code, err := s.codes.Generate(s.cfg.CodeLength)
		if err != nil {
			s.incrementIssueFailure("generator")
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate code")
		}
		session, err := models.NewSession(id.NewSessionID(), code, cmd.Anchor, classification, cmd.IssuerID, now, ttl)
		if err != nil {
			return nil, err
		}

		err = s.save(ctx, session)
		if err == nil {
			span.SetAttributes(
				tracer.String(tracer.AttrSessionID, session.ID.String()),
				tracer.Int64(tracer.AttrIssueAttempts, int64(attempt)),
			)
			s.recordIssued(ctx, session, attempt)
			return session, nil
		}
		if errors.Is(err, sentinel.ErrConflict) {
			s.incrementCodeCollisions()
			continue
		}
		s.incrementIssueFailure("store")
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session")
	}

	s.incrementIssueFailure("exhausted")
	s.logger.WarnContext(ctx, "otp code space exhausted",
		"request_id", requestcontext.RequestID(ctx),
		"issuer_id", cmd.IssuerID.String(),
		"attempts", s.cfg.MaxAttempts,
	)
	return nil, dErrors.New(dErrors.CodeExhausted, "could not allocate a unique code, try again")
}

// Resolve looks up the session a claimant's code refers to. It never writes.
func (s *Service) Resolve(ctx context.Context, code string) (_ *models.Session, err error) {
	ctx, span := s.tracer.Start(ctx, tracer.SpanResolve)
	defer func() { span.End(err) }()

	code = strings.TrimSpace(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "code is required")
	}
	session, err := s.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.incrementResolution("not_found")
			return nil, dErrors.New(dErrors.CodeNotFound, "Invalid OTP code")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read session")
	}
	span.SetAttributes(tracer.String(tracer.AttrSessionID, session.ID.String()))
	if !session.IsActive(requestcontext.Now(ctx)) {
		s.incrementResolution("expired")
		return nil, dErrors.New(dErrors.CodeExpired, "OTP has expired")
	}
	s.incrementResolution("active")
	return session, nil
}

// Get returns one of issuerID's sessions regardless of expiry. Sessions owned
// by other issuers are reported as not found.
func (s *Service) Get(ctx context.Context, issuerID id.IssuerID, code string) (*models.Session, error) {
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing issuer context")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "code is required")
	}
	session, err := s.store.FindByCode(ctx, code)
	return ownedBy(issuerID, session, err)
}

// GetByID is Get for a session identified by ID. Unlike a code, an ID keeps
// pointing at the same session after its code is reissued.
func (s *Service) GetByID(ctx context.Context, issuerID id.IssuerID, sessionID id.SessionID) (*models.Session, error) {
	if issuerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing issuer context")
	}
	session, err := s.store.FindByID(ctx, sessionID)
	return ownedBy(issuerID, session, err)
}

func ownedBy(issuerID id.IssuerID, session *models.Session, err error) (*models.Session, error) {
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read session")
	}
	if session.IssuerID != issuerID {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	return session, nil
}

func (s *Service) save(ctx context.Context, session *models.Session) error {
	if s.tx == nil {
		return s.store.Create(ctx, session)
	}
	return s.tx.RunInTx(ctx, func(ctx context.Context, store Store, sink events.Sink) error {
		if err := store.Create(ctx, session); err != nil {
			return err
		}
		return sink.Append(ctx, issuedEvent(session))
	})
}

func (s *Service) resolveTTL(requested time.Duration) (time.Duration, error) {
	if requested == 0 {
		return s.cfg.DefaultTTL, nil
	}
	if requested < s.cfg.MinTTL || requested > s.cfg.MaxTTL {
		return 0, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("ttl_seconds must be between %d and %d",
			int(s.cfg.MinTTL.Seconds()), int(s.cfg.MaxTTL.Seconds())))
	}
	return requested, nil
}

func (s *Service) recordIssued(ctx context.Context, session *models.Session, attempts int) {
	if s.metrics != nil {
		s.metrics.IncrementSessionsIssued()
		s.metrics.ObserveIssueAttempts(attempts)
	}
	s.logger.InfoContext(ctx, "otp session issued",
		"request_id", requestcontext.RequestID(ctx),
		"session_code", session.Code,
		"session_id", session.ID.String(),
		"issuer_id", session.IssuerID.String(),
		"expires_at", session.ExpiresAt,
		"attempts", attempts,
	)
	if s.tx != nil || s.publisher == nil {
		return
	}
	s.publisher.Emit(ctx, issuedEvent(session))
}

func issuedEvent(session *models.Session) events.Event {
	return events.Event{
		Type:       events.TypeSessionIssued,
		Key:        session.ID.String(),
		OccurredAt: session.IssuedAt,
		Payload: events.SessionIssued{
			SessionID:       session.ID.String(),
			Code:            session.Code,
			IssuerID:        session.IssuerID.String(),
			AnchorLatitude:  session.Anchor.Latitude,
			AnchorLongitude: session.Anchor.Longitude,
			Classification:  session.Classification,
			IssuedAt:        session.IssuedAt,
			ExpiresAt:       session.ExpiresAt,
		},
	}
}

func (s *Service) observeIssueLatency(d time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveIssueLatency(d.Seconds())
	}
}

func (s *Service) incrementCodeCollisions() {
	if s.metrics != nil {
		s.metrics.IncrementCodeCollisions()
	}
}

func (s *Service) incrementIssueFailure(reason string) {
	if s.metrics != nil {
		s.metrics.IncrementIssueFailure(reason)
	}
}

func (s *Service) incrementResolution(outcome string) {
	if s.metrics != nil {
		s.metrics.IncrementResolution(outcome)
	}
}
