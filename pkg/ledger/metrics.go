package ledger

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PromMetrics contains Prometheus metrics for the ledger package.
// Create it once at startup; promauto registers with the default registry.
type PromMetrics struct {
	// Spend and generation counters by provider
	costTotal   *prometheus.CounterVec
	generations *prometheus.CounterVec

	// Budget usage gauge by period (fraction of ceiling, 0.0-1.0+)
	budgetUsage *prometheus.GaugeVec

	// Budget pre-flight check counter by result
	budgetChecks *prometheus.CounterVec

	// Raised alert counter by type
	alerts *prometheus.CounterVec
}

// NewPromMetrics creates a new PromMetrics instance with Prometheus collectors.
func NewPromMetrics() *PromMetrics {
	return &PromMetrics{
		costTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helios_ledger_cost_usd_total",
				Help: "Total recorded generation spend in USD",
			},
			[]string{"provider"},
		),

		generations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helios_ledger_generations_total",
				Help: "Total number of recorded generations",
			},
			[]string{"provider"},
		),

		budgetUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "helios_ledger_budget_usage_ratio",
				Help: "Spend as a fraction of the configured ceiling per period",
			},
			[]string{"period"},
		),

		budgetChecks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helios_ledger_budget_checks_total",
				Help: "Total number of budget pre-flight checks",
			},
			[]string{"result"},
		),

		alerts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "helios_ledger_alerts_total",
				Help: "Total number of raised cost alerts",
			},
			[]string{"type"},
		),
	}
}

// RecordGeneration records one completed generation and its cost.
func (pm *PromMetrics) RecordGeneration(provider string, cost float64) {
	pm.costTotal.WithLabelValues(provider).Add(cost)
	pm.generations.WithLabelValues(provider).Inc()
}

// UpdateBudgetUsage updates the usage gauge for a period ("day" or "month").
func (pm *PromMetrics) UpdateBudgetUsage(period string, ratio float64) {
	pm.budgetUsage.WithLabelValues(period).Set(ratio)
}

// RecordBudgetCheck records the result of a budget pre-flight check.
func (pm *PromMetrics) RecordBudgetCheck(allowed bool) {
	result := "allowed"
	if !allowed {
		result = "rejected"
	}
	pm.budgetChecks.WithLabelValues(result).Inc()
}

// RecordAlert records a raised cost alert.
func (pm *PromMetrics) RecordAlert(alertType string) {
	pm.alerts.WithLabelValues(alertType).Inc()
}
