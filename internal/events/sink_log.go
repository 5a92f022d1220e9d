package events

import (
	"context"
	"log/slog"
)

// LogSink writes events to the structured log. Used when no broker is configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Append(ctx context.Context, event Event) error {
	s.logger.InfoContext(ctx, "domain event",
		"event_type", string(event.Type),
		"key", event.Key,
		"request_id", event.RequestID,
		"occurred_at", event.OccurredAt,
		"payload", event.Payload,
	)
	return nil
}
