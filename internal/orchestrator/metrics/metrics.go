package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for verification runs.
type Metrics struct {
	// Check durations by type, including admission wait and retries
	CheckLatency *prometheus.HistogramVec

	// Check results by type and status
	CheckResults *prometheus.CounterVec

	// Decision outcomes by decision and reason
	DecisionOutcome *prometheus.CounterVec

	// Runs stopped early by the sanctions check
	ShortCircuits prometheus.Counter

	// Overall run latency
	RunLatency prometheus.Histogram
}

// New registers the orchestrator metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CheckLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ekyc_check_duration_seconds",
			Help:    "Duration of one verification check by type",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"type"}),

		CheckResults: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_check_results_total",
			Help: "Verification check results by type and status",
		}, []string{"type", "status"}),

		DecisionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_decision_outcomes_total",
			Help: "Final decisions by outcome and deciding rule",
		}, []string{"decision", "reason"}),

		ShortCircuits: factory.NewCounter(prometheus.CounterOpts{
			Name: "ekyc_sanctions_short_circuits_total",
			Help: "Runs that stopped after the sanctions check",
		}),

		RunLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ekyc_verification_duration_seconds",
			Help:    "Duration of a full verification run",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
	}
}

// ObserveCheckLatency records how long one check took, admission wait and
// retries included.
func (m *Metrics) ObserveCheckLatency(checkType string, d time.Duration) {
	if m != nil {
		m.CheckLatency.WithLabelValues(checkType).Observe(d.Seconds())
	}
}

// IncrementCheckResult records the status a check ended with, synthetic
// failures included.
func (m *Metrics) IncrementCheckResult(checkType, status string) {
	if m != nil {
		m.CheckResults.WithLabelValues(checkType, status).Inc()
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(decision, reason string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(decision, reason).Inc()
	}
}

// IncrementShortCircuit records a run ended by the sanctions check.
func (m *Metrics) IncrementShortCircuit() {
	if m != nil {
		m.ShortCircuits.Inc()
	}
}

// ObserveRunLatency records the total run duration.
func (m *Metrics) ObserveRunLatency(d time.Duration) {
	if m != nil {
		m.RunLatency.Observe(d.Seconds())
	}
}
