package events

import (
	"context"
	"log/slog"

	"rollcall/pkg/platform/circuit"
)

// FallbackSink sends events to primary and degrades to fallback while the
// breaker is open, so a broker outage does not cost a delivery timeout per event.
type FallbackSink struct {
	primary  Sink
	fallback Sink
	breaker  *circuit.Breaker
	logger   *slog.Logger
}

func NewFallbackSink(primary, fallback Sink, breaker *circuit.Breaker, logger *slog.Logger) *FallbackSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackSink{primary: primary, fallback: fallback, breaker: breaker, logger: logger}
}

func (s *FallbackSink) Append(ctx context.Context, event Event) error {
	if !s.breaker.Allow() {
		return s.fallback.Append(ctx, event)
	}
	err := s.primary.Append(ctx, event)
	if err == nil {
		if s.breaker.RecordSuccess().Closed {
			s.logger.InfoContext(ctx, "event sink recovered", "breaker", s.breaker.Name())
		}
		return nil
	}
	if s.breaker.RecordFailure().Opened {
		s.logger.WarnContext(ctx, "event sink circuit opened, using fallback",
			"breaker", s.breaker.Name(),
			"error", err,
		)
	}
	if fbErr := s.fallback.Append(ctx, event); fbErr != nil {
		return fbErr
	}
	// the event reached the fallback; surface the primary failure for metrics
	return err
}
