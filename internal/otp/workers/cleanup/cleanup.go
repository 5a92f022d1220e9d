package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rollcall/internal/otp/metrics"
)

// LeaseStore exposes cleanup for expired code leases.
type LeaseStore interface {
	DeleteExpiredLeases(ctx context.Context, now time.Time) (int, error)
}

// CleanupResult summarizes the deletions performed by a cleanup run.
type CleanupResult struct {
	ReleasedLeases int
}

// CleanupService periodically releases code leases held by expired sessions.
// Session history is untouched; only the uniqueness index shrinks.
type CleanupService struct {
	leases   LeaseStore
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// CleanupOption configures CleanupService.
type CleanupOption func(*CleanupService)

// WithCleanupInterval overrides the cleanup interval when greater than zero.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithCleanupLogger overrides the logger used for cleanup errors.
func WithCleanupLogger(logger *slog.Logger) CleanupOption {
	return func(s *CleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithCleanupMetrics(m *metrics.Metrics) CleanupOption {
	return func(s *CleanupService) {
		s.metrics = m
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CleanupOption {
	return func(s *CleanupService) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a CleanupService with the required store and options applied.
func New(leases LeaseStore, opts ...CleanupOption) (*CleanupService, error) {
	if leases == nil {
		return nil, fmt.Errorf("lease store is required")
	}
	svc := &CleanupService{
		leases:   leases,
		interval: time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs cleanup periodically until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.ErrorContext(ctx, "otp lease cleanup failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single cleanup pass.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	released, err := s.leases.DeleteExpiredLeases(ctx, s.now())
	if err != nil {
		return CleanupResult{}, fmt.Errorf("delete expired leases: %w", err)
	}
	if released > 0 {
		s.logger.DebugContext(ctx, "released expired otp leases", "count", released)
		if s.metrics != nil {
			s.metrics.AddLeasesReleased(released)
		}
	}
	return CleanupResult{ReleasedLeases: released}, nil
}
