package storage

import (
	"context"
	"time"
)

// Backend defines the interface for cost ledger persistence.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// AppendRecord persists an immutable cost record.
	AppendRecord(ctx context.Context, record *Record) error

	// QueryRecords returns cost records matching the filter, ordered by
	// timestamp ascending. Returns an empty slice if none match.
	QueryRecords(ctx context.Context, filter RecordFilter) ([]*Record, error)

	// PruneRecords removes cost records older than the given time.
	// Returns the number of records deleted.
	PruneRecords(ctx context.Context, olderThan time.Time) (int, error)

	// SaveAlert persists a new alert.
	SaveAlert(ctx context.Context, alert *Alert) error

	// GetAlert retrieves an alert by ID. Returns nil if not found.
	GetAlert(ctx context.Context, id string) (*Alert, error)

	// ListAlerts returns alerts ordered by timestamp descending.
	// A nil acknowledged filter returns all alerts.
	ListAlerts(ctx context.Context, acknowledged *bool) ([]*Alert, error)

	// UpdateAlert replaces a stored alert (used to flip acknowledged).
	UpdateAlert(ctx context.Context, alert *Alert) error

	// SaveBudget persists the budget singleton.
	SaveBudget(ctx context.Context, budget *Budget) error

	// LoadBudget retrieves the budget singleton. Returns nil if never saved.
	LoadBudget(ctx context.Context) (*Budget, error)

	// Close releases any resources held by the backend.
	Close() error
}

// Record is a single immutable generation cost entry.
type Record struct {
	// ID is the unique record identifier (UUID).
	ID string `json:"id"`

	// Timestamp is when the generation completed.
	Timestamp time.Time `json:"timestamp"`

	// ProviderID identifies the upstream provider.
	ProviderID string `json:"provider_id"`

	// Model is the model used, if known.
	Model string `json:"model,omitempty"`

	// UserID attributes the generation to a user, if known.
	UserID string `json:"user_id,omitempty"`

	// InputTokens is the prompt token count.
	InputTokens int `json:"input_tokens"`

	// OutputTokens is the completion token count.
	OutputTokens int `json:"output_tokens"`

	// Cost is the actual cost in USD.
	Cost float64 `json:"cost"`
}

// RecordFilter selects cost records for a query.
// Zero values mean "no constraint" for that field.
type RecordFilter struct {
	// ProviderID restricts results to one provider.
	ProviderID string

	// Since restricts results to records at or after this time.
	Since time.Time

	// Until restricts results to records before this time.
	Until time.Time

	// Limit caps the number of returned records (0 = no limit).
	Limit int
}

// Alert is a persisted cost alert event.
type Alert struct {
	// ID is the unique alert identifier (UUID).
	ID string `json:"id"`

	// Type is the alert type (e.g., "daily_budget", "monthly_budget").
	Type string `json:"type"`

	// ProviderID is the provider the alert concerns; empty for global
	// budget alerts.
	ProviderID string `json:"provider_id,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`

	// CurrentCost is the spend at the moment the alert fired.
	CurrentCost float64 `json:"current_cost"`

	// Threshold is the USD amount that was crossed.
	Threshold float64 `json:"threshold"`

	// Period is the aggregation period key the alert belongs to
	// (e.g., "2026-08-30" or "2026-08").
	Period string `json:"period"`

	// Timestamp is when the alert fired.
	Timestamp time.Time `json:"timestamp"`

	// Acknowledged is flipped by the admin surface; alerts are never
	// deleted.
	Acknowledged bool `json:"acknowledged"`
}

// Budget is the persisted budget singleton.
type Budget struct {
	// Daily is the daily spend ceiling in USD (0 = no limit).
	Daily float64 `json:"daily"`

	// Monthly is the monthly spend ceiling in USD (0 = no limit).
	Monthly float64 `json:"monthly"`

	// PerGenerationMax is the single-generation ceiling in USD (0 = no limit).
	PerGenerationMax float64 `json:"per_generation_max"`

	// DailyAlertThreshold is the alerting fraction of the daily ceiling.
	DailyAlertThreshold float64 `json:"daily_alert_threshold"`

	// MonthlyAlertThreshold is the alerting fraction of the monthly ceiling.
	MonthlyAlertThreshold float64 `json:"monthly_alert_threshold"`

	// UpdatedAt is when the budget was last changed.
	UpdatedAt time.Time `json:"updated_at"`
}
