package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rollcall/internal/events"
	"rollcall/internal/events/outbox"
	"rollcall/internal/events/outbox/metrics"
	"rollcall/internal/platform/kafka/producer"
)

// Worker relays pending outbox entries to Kafka and prunes relayed ones.
type Worker struct {
	store        outbox.Store
	producer     events.MessageProducer
	topic        string
	batchSize    int
	pollInterval time.Duration
	retention    time.Duration
	pruneEvery   time.Duration
	drainTimeout time.Duration
	metrics      *metrics.Metrics
	logger       *slog.Logger
	now          func() time.Time
}

type Option func(*Worker)

func WithTopic(topic string) Option {
	return func(w *Worker) {
		if topic != "" {
			w.topic = topic
		}
	}
}

func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.pollInterval = interval
		}
	}
}

// WithRetention sets how long relayed entries are kept before pruning.
func WithRetention(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.retention = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Worker) {
		if now != nil {
			w.now = now
		}
	}
}

func New(store outbox.Store, prod events.MessageProducer, opts ...Option) (*Worker, error) {
	if store == nil {
		return nil, fmt.Errorf("outbox store is required")
	}
	if prod == nil {
		return nil, fmt.Errorf("producer is required")
	}
	w := &Worker{
		store:        store,
		producer:     prod,
		topic:        "rollcall.events",
		batchSize:    100,
		pollInterval: 250 * time.Millisecond,
		retention:    24 * time.Hour,
		pruneEvery:   time.Minute,
		drainTimeout: 10 * time.Second,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start polls until ctx is cancelled, then drains what it can and returns ctx.Err().
func (w *Worker) Start(ctx context.Context) error {
	poll := time.NewTicker(w.pollInterval)
	defer poll.Stop()
	prune := time.NewTicker(w.pruneEvery)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case <-poll.C:
			w.RelayBatch(ctx)
		case <-prune.C:
			w.Prune(ctx)
		}
	}
}

// RelayBatch publishes one batch of pending entries and returns how many were relayed.
// A failed entry stays pending and is retried on the next poll.
func (w *Worker) RelayBatch(ctx context.Context) int {
	entries, err := w.store.FetchUnprocessed(ctx, w.batchSize)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to fetch outbox entries", "error", err)
		w.metrics.IncPublishFailures()
		return 0
	}
	if len(entries) == 0 {
		w.metrics.SetPendingDepth(0)
		return 0
	}
	w.metrics.ObserveBatchSize(len(entries))

	relayed := 0
	for _, entry := range entries {
		if err := w.publish(ctx, entry); err != nil {
			w.logger.ErrorContext(ctx, "failed to relay outbox entry",
				"id", entry.ID,
				"event_type", entry.EventType,
				"error", err,
			)
			w.metrics.IncPublishFailures()
			continue
		}
		if err := w.store.MarkProcessed(ctx, entry.ID, w.now()); err != nil {
			// relayed but unmarked entries are sent again; consumers dedupe on event_id
			w.logger.ErrorContext(ctx, "failed to mark outbox entry processed", "id", entry.ID, "error", err)
			continue
		}
		w.metrics.IncPublished()
		relayed++
	}

	if pending, err := w.store.CountPending(ctx); err == nil {
		w.metrics.SetPendingDepth(pending)
	}
	return relayed
}

// Prune deletes entries relayed longer ago than the retention.
func (w *Worker) Prune(ctx context.Context) {
	n, err := w.store.DeleteProcessedBefore(ctx, w.now().Add(-w.retention))
	if err != nil {
		w.logger.WarnContext(ctx, "failed to prune outbox", "error", err)
		return
	}
	if n > 0 {
		w.logger.DebugContext(ctx, "pruned relayed outbox entries", "count", n)
		w.metrics.AddPruned(n)
	}
}

func (w *Worker) publish(ctx context.Context, entry *outbox.Entry) error {
	start := time.Now()
	msg := &producer.Message{
		Topic: w.topic,
		Key:   []byte(entry.Key),
		Value: entry.Payload,
		Headers: map[string]string{
			"event_type": entry.EventType,
			"event_id":   entry.ID.String(),
		},
	}
	if err := w.producer.Produce(ctx, msg); err != nil {
		return err
	}
	w.metrics.ObservePublishDuration(time.Since(start).Seconds())
	return nil
}

func (w *Worker) drain() {
	w.logger.Info("draining outbox worker")
	ctx, cancel := context.WithTimeout(context.Background(), w.drainTimeout)
	defer cancel()
	for ctx.Err() == nil {
		if w.RelayBatch(ctx) == 0 {
			return
		}
	}
}
