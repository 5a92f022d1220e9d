package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/internal/events"
	"rollcall/internal/events/outbox"
	"rollcall/internal/events/outbox/metrics"
	outboxstore "rollcall/internal/events/outbox/store"
	"rollcall/internal/platform/kafka/producer"
)

type recordingProducer struct {
	mu       sync.Mutex
	messages []*producer.Message
	failKey  string
}

func (p *recordingProducer) Produce(_ context.Context, msg *producer.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failKey != "" && string(msg.Key) == p.failKey {
		return errors.New("broker unavailable")
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *recordingProducer) sent() []*producer.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*producer.Message(nil), p.messages...)
}

var base = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newWorker(t *testing.T, store outbox.Store, prod events.MessageProducer, opts ...Option) (*Worker, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	opts = append([]Option{
		WithMetrics(m),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return base }),
	}, opts...)
	w, err := New(store, prod, opts...)
	require.NoError(t, err)
	return w, m
}

func appendEvents(t *testing.T, store outbox.Store, keys ...string) {
	t.Helper()
	sink := outbox.NewSink(store)
	for i, key := range keys {
		require.NoError(t, sink.Append(context.Background(), events.Event{
			Type:       events.TypeAttendanceRecorded,
			Key:        key,
			OccurredAt: base.Add(time.Duration(i) * time.Second),
			Payload:    events.AttendanceRecorded{SessionID: key, Status: "PRESENT"},
		}))
	}
}

func TestRelayBatchPublishesInOrder(t *testing.T) {
	store := outboxstore.New()
	prod := &recordingProducer{}
	w, m := newWorker(t, store, prod, WithTopic("attendance.events"))
	appendEvents(t, store, "s-1", "s-2", "s-3")

	relayed := w.RelayBatch(context.Background())
	assert.Equal(t, 3, relayed)

	sent := prod.sent()
	require.Len(t, sent, 3)
	for i, key := range []string{"s-1", "s-2", "s-3"} {
		assert.Equal(t, key, string(sent[i].Key))
		assert.Equal(t, "attendance.events", sent[i].Topic)
		assert.Equal(t, string(events.TypeAttendanceRecorded), sent[i].Headers["event_type"])
		assert.NotEmpty(t, sent[i].Headers["event_id"])
	}

	var decoded events.Event
	require.NoError(t, json.Unmarshal(sent[0].Value, &decoded))
	assert.Equal(t, "s-1", decoded.Key)

	pending, err := store.CountPending(context.Background())
	require.NoError(t, err)
	assert.Zero(t, pending)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.PublishedTotal))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.PendingDepth))
}

func TestRelayBatchKeepsFailedEntriesPending(t *testing.T) {
	store := outboxstore.New()
	prod := &recordingProducer{failKey: "s-2"}
	w, m := newWorker(t, store, prod)
	appendEvents(t, store, "s-1", "s-2")

	assert.Equal(t, 1, w.RelayBatch(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PendingDepth))

	prod.failKey = ""
	assert.Equal(t, 1, w.RelayBatch(context.Background()))
	assert.Len(t, prod.sent(), 2)
}

func TestRelayBatchRespectsBatchSize(t *testing.T) {
	store := outboxstore.New()
	prod := &recordingProducer{}
	w, _ := newWorker(t, store, prod, WithBatchSize(2))
	appendEvents(t, store, "a", "b", "c", "d", "e")

	assert.Equal(t, 2, w.RelayBatch(context.Background()))
	assert.Equal(t, 2, w.RelayBatch(context.Background()))
	assert.Equal(t, 1, w.RelayBatch(context.Background()))
	assert.Zero(t, w.RelayBatch(context.Background()))
}

func TestPruneDeletesOnlyOldRelayedEntries(t *testing.T) {
	store := outboxstore.New()
	ctx := context.Background()

	old := outbox.NewEntry("attendance.recorded", "old", []byte(`{}`), base.Add(-48*time.Hour))
	fresh := outbox.NewEntry("attendance.recorded", "fresh", []byte(`{}`), base)
	pending := outbox.NewEntry("attendance.recorded", "pending", []byte(`{}`), base.Add(-72*time.Hour))
	for _, e := range []*outbox.Entry{old, fresh, pending} {
		require.NoError(t, store.Append(ctx, e))
	}
	require.NoError(t, store.MarkProcessed(ctx, old.ID, base.Add(-47*time.Hour)))
	require.NoError(t, store.MarkProcessed(ctx, fresh.ID, base.Add(-time.Hour)))

	w, m := newWorker(t, store, &recordingProducer{}, WithRetention(24*time.Hour))
	w.Prune(ctx)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PrunedTotal))
	count, err := store.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestStartDrainsOnCancel(t *testing.T) {
	store := outboxstore.New()
	prod := &recordingProducer{}
	w, _ := newWorker(t, store, prod, WithPollInterval(time.Hour))
	appendEvents(t, store, "late-1", "late-2")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := w.Start(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, prod.sent(), 2)
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(nil, &recordingProducer{})
	assert.Error(t, err)
	_, err = New(outboxstore.New(), nil)
	assert.Error(t, err)
}
