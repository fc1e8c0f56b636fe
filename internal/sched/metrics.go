package sched

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes scheduler counters for the observability sink.
type Metrics struct {
	attempts *prometheus.CounterVec
	outcomes *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers scheduler metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "metrics_fetch_attempts_total",
			Help: "Adapter call attempts by source and result.",
		}, []string{"source", "result"}),
		outcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "metrics_fetch_outcomes_total",
			Help: "Final per-(company, source) fetch outcomes.",
		}, []string{"source", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "metrics_fetch_duration_seconds",
			Help:    "Wall time of a (company, source) fetch including retries.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source"}),
	}
}

func (m *Metrics) observeAttempt(source, result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(source, result).Inc()
}

func (m *Metrics) observeOutcome(source, status string, seconds float64) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(source, status).Inc()
	m.duration.WithLabelValues(source).Observe(seconds)
}
