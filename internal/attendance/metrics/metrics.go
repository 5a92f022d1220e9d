package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for attendance claims.
type Metrics struct {
	Claims        *prometheus.CounterVec
	Rejections    *prometheus.CounterVec
	ClaimDistance prometheus.Histogram
	LowConfidence prometheus.Counter
	ClaimLatency  prometheus.Histogram
}

// New registers and returns attendance metrics collectors.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Claims: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_attendance_claims_total",
			Help: "Recorded claims, labeled by status",
		}, []string{"status"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_attendance_rejections_total",
			Help: "Claims that produced no record, labeled by reason",
		}, []string{"reason"}),
		ClaimDistance: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_attendance_claim_distance_meters",
			Help:    "Distance between claimant and session anchor",
			Buckets: []float64{1, 5, 10, 20, 30, 50, 100, 250, 1000, 10000},
		}),
		LowConfidence: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_attendance_low_confidence_total",
			Help: "Claims decided with the indoor floor because of poor reported accuracy",
		}),
		ClaimLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_attendance_claim_latency_seconds",
			Help:    "Latency of claim operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncrementClaim(status string) {
	m.Claims.WithLabelValues(status).Inc()
}

func (m *Metrics) IncrementRejection(reason string) {
	m.Rejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveDistance(meters float64) {
	m.ClaimDistance.Observe(meters)
}

func (m *Metrics) IncrementLowConfidence() {
	m.LowConfidence.Inc()
}

func (m *Metrics) ObserveClaimLatency(durationSeconds float64) {
	m.ClaimLatency.Observe(durationSeconds)
}
