package main

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"rollcall/internal/events"
	"rollcall/internal/events/outbox"
	"rollcall/internal/platform/kafka/producer"
)

type discardProducer struct{}

func (discardProducer) Produce(context.Context, *producer.Message) error { return nil }

func TestNewEventDelivery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("no kafka logs events", func(t *testing.T) {
		d := newEventDelivery(new(sql.DB), nil, "rollcall.events", logger)
		assert.IsType(t, &events.LogSink{}, d.sink)
		assert.Nil(t, d.outbox)
	})

	t.Run("kafka without postgres uses the breaker fallback", func(t *testing.T) {
		d := newEventDelivery(nil, discardProducer{}, "rollcall.events", logger)
		assert.IsType(t, &events.FallbackSink{}, d.sink)
		assert.Nil(t, d.outbox)
	})

	t.Run("kafka with postgres goes through the outbox only", func(t *testing.T) {
		d := newEventDelivery(new(sql.DB), discardProducer{}, "rollcall.events", logger)
		assert.IsType(t, &outbox.Sink{}, d.sink)
		assert.NotNil(t, d.outbox)
	})
}
