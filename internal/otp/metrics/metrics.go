package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for OTP session operations.
type Metrics struct {
	SessionsIssued prometheus.Counter
	IssueAttempts  prometheus.Histogram
	CodeCollisions prometheus.Counter
	IssueFailures  *prometheus.CounterVec
	IssueLatency   prometheus.Histogram
	Resolutions    *prometheus.CounterVec
	LeasesReleased prometheus.Counter
}

// New registers and returns OTP metrics collectors.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsIssued: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_otp_sessions_issued_total",
			Help: "Total number of verification sessions issued",
		}),
		IssueAttempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_otp_issue_attempts",
			Help:    "Code generation attempts needed per successful issue",
			Buckets: []float64{1, 2, 3, 5, 8, 10},
		}),
		CodeCollisions: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_otp_code_collisions_total",
			Help: "Generated codes rejected because a live session held them",
		}),
		IssueFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_otp_issue_failures_total",
			Help: "Failed issue attempts, labeled by reason",
		}, []string{"reason"}),
		IssueLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rollcall_otp_issue_latency_seconds",
			Help:    "Latency of session issue operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rollcall_otp_resolutions_total",
			Help: "Code resolutions, labeled by outcome",
		}, []string{"outcome"}),
		LeasesReleased: f.NewCounter(prometheus.CounterOpts{
			Name: "rollcall_otp_leases_released_total",
			Help: "Expired code leases removed by the cleanup worker",
		}),
	}
}

func (m *Metrics) IncrementSessionsIssued() {
	m.SessionsIssued.Inc()
}

func (m *Metrics) ObserveIssueAttempts(attempts int) {
	m.IssueAttempts.Observe(float64(attempts))
}

func (m *Metrics) IncrementCodeCollisions() {
	m.CodeCollisions.Inc()
}

func (m *Metrics) IncrementIssueFailure(reason string) {
	m.IssueFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveIssueLatency(durationSeconds float64) {
	m.IssueLatency.Observe(durationSeconds)
}

func (m *Metrics) IncrementResolution(outcome string) {
	m.Resolutions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddLeasesReleased(count int) {
	m.LeasesReleased.Add(float64(count))
}
