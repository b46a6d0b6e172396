package storage

import (
	"context"
	"time"
)

// Backend defines the interface for health state persistence.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Save persists the health state for a provider.
	// If state already exists, it is replaced. Returns error on failure.
	Save(ctx context.Context, state *ProviderState) error

	// Load retrieves the health state for a provider.
	// Returns nil if no state exists. Returns error on system failure.
	Load(ctx context.Context, providerID string) (*ProviderState, error)

	// List returns the health states of all known providers.
	// Returns an empty slice if no states exist.
	List(ctx context.Context) ([]*ProviderState, error)

	// Delete removes the health state for a provider.
	// No-op if the state doesn't exist.
	Delete(ctx context.Context, providerID string) error

	// Cleanup removes entries not updated since the given time.
	// Returns the number of entries deleted.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)

	// Close releases any resources held by the backend.
	// The backend should not be used after calling Close.
	Close() error
}

// ProviderState is the persisted health state for a single provider.
type ProviderState struct {
	// ProviderID identifies the upstream provider.
	ProviderID string `json:"provider_id"`

	// TotalRequests is the total number of recorded outcomes.
	TotalRequests int64 `json:"total_requests"`

	// SuccessfulRequests is the number of recorded successes.
	SuccessfulRequests int64 `json:"successful_requests"`

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// AvgResponseTime is the rolling average of successful request latency.
	AvgResponseTime time.Duration `json:"avg_response_time"`

	// LastChecked is when an outcome was last recorded.
	LastChecked time.Time `json:"last_checked"`

	// Breaker is the persisted circuit breaker state.
	Breaker BreakerState `json:"breaker"`

	// LastUpdated is when this state was last written.
	LastUpdated time.Time `json:"last_updated"`

	// CreatedAt is when this state was first created.
	CreatedAt time.Time `json:"created_at"`
}

// BreakerState is the persisted circuit breaker state for a provider.
type BreakerState struct {
	// State is the breaker state ("closed", "open", "half_open").
	State string `json:"state"`

	// FailureCount is the consecutive failure count feeding the breaker.
	FailureCount int `json:"failure_count"`

	// TripCount is the number of opens without an intervening close.
	TripCount int `json:"trip_count"`

	// LastFailure is when the provider last failed.
	LastFailure time.Time `json:"last_failure"`

	// NextRetry is when an open breaker admits its half-open probe.
	NextRetry time.Time `json:"next_retry"`
}
