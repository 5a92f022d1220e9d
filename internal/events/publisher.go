package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"rollcall/internal/platform/metrics"
	"rollcall/pkg/requestcontext"
)

// Publisher hands domain events to a Sink. Publishing is best effort: the
// write it describes has already committed, so failures are logged and
// counted but never returned to the request.
type Publisher struct {
	sink    Sink
	events  chan Event
	wg      sync.WaitGroup
	logger  *slog.Logger
	metrics *metrics.Metrics
	async   bool
	timeout time.Duration
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async delivery with the specified buffer size.
// Events are queued and delivered by a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for delivery failures.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithPublisherMetrics counts delivered and failed events.
func WithPublisherMetrics(m *metrics.Metrics) PublisherOption {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithDeliveryTimeout bounds each async delivery.
func WithDeliveryTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func NewPublisher(sink Sink, opts ...PublisherOption) *Publisher {
	p := &Publisher{sink: sink, logger: slog.Default(), timeout: 10 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		p.deliver(ctx, event)
		cancel()
	}
}

// Close stops the async publisher and waits for queued events to drain.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

// Emit publishes event. In async mode a full buffer drops the event rather
// than blocking the caller.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if !p.async {
		p.deliver(ctx, event)
		return
	}
	select {
	case p.events <- event:
	default:
		p.logger.WarnContext(ctx, "event buffer full, event dropped",
			"event_type", event.Type,
			"key", event.Key,
		)
		p.countFailed(event.Type)
	}
}

func (p *Publisher) deliver(ctx context.Context, event Event) {
	if err := p.sink.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish event",
			"error", err,
			"event_type", event.Type,
			"key", event.Key,
		)
		p.countFailed(event.Type)
		return
	}
	if p.metrics != nil {
		p.metrics.IncEventPublished(string(event.Type))
	}
}

func (p *Publisher) countFailed(t Type) {
	if p.metrics != nil {
		p.metrics.IncEventFailed(string(t))
	}
}
