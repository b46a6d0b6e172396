package ledger

import (
	"errors"
	"time"
)

// Period selects the aggregation window for cost metrics queries.
type Period string

const (
	// PeriodDay aggregates over the current UTC calendar day.
	PeriodDay Period = "day"

	// PeriodMonth aggregates over the current UTC calendar month.
	PeriodMonth Period = "month"

	// PeriodAll aggregates over the full lifetime of the ledger.
	PeriodAll Period = "all"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodMonth, PeriodAll:
		return true
	}
	return false
}

// Alert types raised by the tracker.
const (
	// AlertDailyBudget fires when daily spend crosses the daily alert
	// threshold.
	AlertDailyBudget = "daily_budget"

	// AlertMonthlyBudget fires when monthly spend crosses the monthly
	// alert threshold.
	AlertMonthlyBudget = "monthly_budget"

	// AlertPerGenerationMax fires when a single generation costs more
	// than the per-generation ceiling.
	AlertPerGenerationMax = "per_generation_max"
)

// CostMetrics is an aggregated spend view for one provider and period.
type CostMetrics struct {
	// ProviderID identifies the provider; empty for the global aggregate.
	ProviderID string `json:"provider_id,omitempty"`

	// Period is the aggregation window.
	Period Period `json:"period"`

	// PeriodKey is the concrete bucket the metrics cover, e.g.
	// "2026-08-30" for a day or "2026-08" for a month. Empty for
	// PeriodAll.
	PeriodKey string `json:"period_key,omitempty"`

	// TotalCost is the summed spend in USD.
	TotalCost float64 `json:"total_cost"`

	// Generations is the number of recorded generations.
	Generations int64 `json:"generations"`

	// AvgCostPerGeneration is TotalCost / Generations, 0 when empty.
	AvgCostPerGeneration float64 `json:"avg_cost_per_generation"`

	// InputTokens is the summed prompt token count.
	InputTokens int64 `json:"input_tokens"`

	// OutputTokens is the summed completion token count.
	OutputTokens int64 `json:"output_tokens"`
}

// CostRank is one entry in the cost-efficiency ranking.
type CostRank struct {
	// ProviderID identifies the provider.
	ProviderID string `json:"provider_id"`

	// AvgCost is the provider's average cost per generation over the
	// ranking period.
	AvgCost float64 `json:"avg_cost"`

	// Quality is the externally supplied quality weight, if any.
	Quality float64 `json:"quality,omitempty"`

	// Value is the ranking score. Lower is better.
	Value float64 `json:"value"`
}

// BudgetStatus is the budget snapshot returned by the admin surface.
type BudgetStatus struct {
	// Daily is the daily ceiling in USD (0 = no limit).
	Daily float64 `json:"daily"`

	// Monthly is the monthly ceiling in USD (0 = no limit).
	Monthly float64 `json:"monthly"`

	// PerGenerationMax is the single-generation ceiling in USD (0 = no limit).
	PerGenerationMax float64 `json:"per_generation_max"`

	// DailyAlertThreshold is the alerting fraction of the daily ceiling.
	DailyAlertThreshold float64 `json:"daily_alert_threshold"`

	// MonthlyAlertThreshold is the alerting fraction of the monthly ceiling.
	MonthlyAlertThreshold float64 `json:"monthly_alert_threshold"`

	// DailySpend is the spend so far in the current UTC day.
	DailySpend float64 `json:"daily_spend"`

	// MonthlySpend is the spend so far in the current UTC month.
	MonthlySpend float64 `json:"monthly_spend"`

	// UpdatedAt is when the ceilings were last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrProviderNotFound is returned when a provider has no recorded
	// spend.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrAlertNotFound is returned when an alert ID does not exist.
	ErrAlertNotFound = errors.New("alert not found")

	// ErrInvalidPeriod is returned for an unknown aggregation period.
	ErrInvalidPeriod = errors.New("invalid period")
)
