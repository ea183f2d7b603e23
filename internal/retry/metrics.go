package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts provider call attempts and exhausted retry budgets.
type Metrics struct {
	Attempts  *prometheus.CounterVec
	Exhausted *prometheus.CounterVec
}

// NewMetrics registers the retry metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_retry_attempts_total",
			Help: "Provider call attempts, including the first",
		}, []string{"service"}),
		Exhausted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_retry_exhausted_total",
			Help: "Provider calls that failed on every attempt",
		}, []string{"service"}),
	}
}

func (m *Metrics) RecordAttempt(service string) {
	if m != nil {
		m.Attempts.WithLabelValues(service).Inc()
	}
}

func (m *Metrics) RecordExhausted(service string) {
	if m != nil {
		m.Exhausted.WithLabelValues(service).Inc()
	}
}
