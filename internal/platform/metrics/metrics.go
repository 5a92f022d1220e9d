// Package metrics holds process-wide collectors: domain event publishing
// outcomes and the Postgres pool.
package metrics

import (
	"database/sql"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	reg             prometheus.Registerer
	EventsPublished *prometheus.CounterVec
	EventsFailed    *prometheus.CounterVec
}

// New registers with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers with reg; tests pass a fresh registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_events_published_total",
			Help: "Domain events handed to the broker",
		}, []string{"event_type"}),
		EventsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_events_failed_total",
			Help: "Domain events that could not be published",
		}, []string{"event_type"}),
	}
}

// WatchDB exports db's pool statistics, read at scrape time, as
// go_sql_* series labelled db_name.
func (m *Metrics) WatchDB(name string, db *sql.DB) error {
	return m.reg.Register(collectors.NewDBStatsCollector(db, name))
}

// Watch registers an additional collector, such as a client pool.
func (m *Metrics) Watch(c prometheus.Collector) error {
	return m.reg.Register(c)
}

func (m *Metrics) IncEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncEventFailed(eventType string) {
	m.EventsFailed.WithLabelValues(eventType).Inc()
}
