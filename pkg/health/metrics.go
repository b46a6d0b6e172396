package health

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromMetrics contains Prometheus metrics for the health package.
// Create it once at startup; promauto registers with the default registry.
type PromMetrics struct {
	// Outcome counters by provider and result
	outcomes *prometheus.CounterVec

	// Breaker state gauge (0=closed, 1=half_open, 2=open)
	breakerState *prometheus.GaugeVec

	// Successful request latency
	responseTime *prometheus.HistogramVec
}

// NewPromMetrics creates a new PromMetrics instance with Prometheus collectors.
func NewPromMetrics() *PromMetrics {
	return &PromMetrics{
		outcomes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helios_health_outcomes_total",
				Help: "Total number of recorded provider outcomes",
			},
			[]string{"provider", "outcome"},
		),

		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "helios_health_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=half_open, 2=open)",
			},
			[]string{"provider"},
		),

		responseTime: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "helios_health_response_time_seconds",
				Help:    "Successful provider request latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~200s
			},
			[]string{"provider"},
		),
	}
}

// RecordOutcome records a success or failure outcome for a provider.
func (pm *PromMetrics) RecordOutcome(provider string, success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	pm.outcomes.WithLabelValues(provider, outcome).Inc()
}

// UpdateBreakerState updates the breaker state gauge for a provider.
func (pm *PromMetrics) UpdateBreakerState(provider string, state BreakerState) {
	var value float64
	switch state {
	case BreakerClosed:
		value = 0
	case BreakerHalfOpen:
		value = 1
	case BreakerOpen:
		value = 2
	}
	pm.breakerState.WithLabelValues(provider).Set(value)
}

// ObserveResponseTime records a successful request latency for a provider.
func (pm *PromMetrics) ObserveResponseTime(provider string, d time.Duration) {
	pm.responseTime.WithLabelValues(provider).Observe(d.Seconds())
}
