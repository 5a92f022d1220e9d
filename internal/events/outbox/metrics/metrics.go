package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the outbox relay.
type Metrics struct {
	PendingDepth    prometheus.Gauge
	PublishedTotal  prometheus.Counter
	PublishFailures prometheus.Counter
	PublishDuration prometheus.Histogram
	BatchSize       prometheus.Histogram
	PrunedTotal     prometheus.Counter
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg, so tests can use a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		PendingDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "rollcall_outbox_pending_total",
			Help: "Current number of outbox entries not yet relayed to Kafka",
		}),
		PublishedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_outbox_published_total",
			Help: "Total number of outbox entries relayed to Kafka",
		}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_outbox_publish_failures_total",
			Help: "Total number of outbox fetch or relay failures",
		}),
		PublishDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_outbox_publish_duration_seconds",
			Help:    "Time taken to relay one outbox entry",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_outbox_batch_size",
			Help:    "Number of entries fetched per poll",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),
		PrunedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_outbox_pruned_total",
			Help: "Total number of relayed entries deleted after retention",
		}),
	}
}

func (m *Metrics) SetPendingDepth(count int64) {
	if m == nil {
		return
	}
	m.PendingDepth.Set(float64(count))
}

func (m *Metrics) IncPublished() {
	if m == nil {
		return
	}
	m.PublishedTotal.Inc()
}

func (m *Metrics) IncPublishFailures() {
	if m == nil {
		return
	}
	m.PublishFailures.Inc()
}

func (m *Metrics) ObservePublishDuration(seconds float64) {
	if m == nil {
		return
	}
	m.PublishDuration.Observe(seconds)
}

func (m *Metrics) ObserveBatchSize(size int) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(size))
}

func (m *Metrics) AddPruned(n int64) {
	if m == nil {
		return
	}
	m.PrunedTotal.Add(float64(n))
}
