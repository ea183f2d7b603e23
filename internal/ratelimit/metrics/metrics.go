package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for per-service admission control.
type Metrics struct {
	Admissions     *prometheus.CounterVec
	Refusals       *prometheus.CounterVec
	AcquireWait    *prometheus.HistogramVec
	StoreFallbacks prometheus.Counter
	CircuitOpen    prometheus.Gauge
}

// New registers the rate limiter metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Admissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_ratelimit_admissions_total",
			Help: "Calls admitted by the per-service rate limiter",
		}, []string{"service"}),
		Refusals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ekyc_ratelimit_refusals_total",
			Help: "Admission attempts refused because the service quota was exhausted",
		}, []string{"service"}),
		AcquireWait: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ekyc_ratelimit_acquire_wait_seconds",
			Help:    "Time spent blocked in Acquire before admission or cancellation",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 30, 60},
		}, []string{"service"}),
		StoreFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "ekyc_ratelimit_store_fallbacks_total",
			Help: "Admission checks answered by the in-memory fallback store",
		}),
		CircuitOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ekyc_ratelimit_circuit_open",
			Help: "1 while the shared admission store circuit is open",
		}),
	}
}

func (m *Metrics) RecordAdmission(service string) {
	if m != nil {
		m.Admissions.WithLabelValues(service).Inc()
	}
}

func (m *Metrics) RecordRefusal(service string) {
	if m != nil {
		m.Refusals.WithLabelValues(service).Inc()
	}
}

func (m *Metrics) ObserveAcquireWait(service string, d time.Duration) {
	if m != nil {
		m.AcquireWait.WithLabelValues(service).Observe(d.Seconds())
	}
}

func (m *Metrics) RecordFallback() {
	if m != nil {
		m.StoreFallbacks.Inc()
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
		return
	}
	m.CircuitOpen.Set(0)
}
