package health

import (
	"errors"
	"time"
)

// Status classifies a provider's overall health.
type Status string

const (
	// StatusHealthy indicates the provider is serving traffic normally.
	StatusHealthy Status = "healthy"

	// StatusDegraded indicates elevated error rates or recent failures.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy indicates the provider should not receive traffic.
	StatusUnhealthy Status = "unhealthy"
)

// BreakerState is the circuit breaker state for a provider.
type BreakerState string

const (
	// BreakerClosed allows all traffic through.
	BreakerClosed BreakerState = "closed"

	// BreakerOpen blocks all traffic until the retry deadline.
	BreakerOpen BreakerState = "open"

	// BreakerHalfOpen admits a single probe request to test recovery.
	BreakerHalfOpen BreakerState = "half_open"
)

// Metrics is a point-in-time snapshot of a provider's health.
type Metrics struct {
	// ProviderID identifies the upstream provider.
	ProviderID string `json:"provider_id"`

	// Status is the derived health classification.
	Status Status `json:"status"`

	// AvgResponseTime is the exponentially weighted rolling average of
	// successful request latency.
	AvgResponseTime time.Duration `json:"avg_response_time"`

	// ErrorRate is the fraction of recorded outcomes that failed (0.0-1.0).
	ErrorRate float64 `json:"error_rate"`

	// Uptime is the fraction of recorded outcomes that succeeded (0.0-1.0).
	Uptime float64 `json:"uptime"`

	// LastChecked is when an outcome was last recorded.
	LastChecked time.Time `json:"last_checked"`

	// ConsecutiveFailures counts failures since the last success.
	ConsecutiveFailures int `json:"consecutive_failures"`

	// TotalRequests is the total number of recorded outcomes.
	TotalRequests int64 `json:"total_requests"`

	// SuccessfulRequests is the number of recorded successes.
	SuccessfulRequests int64 `json:"successful_requests"`
}

// BreakerSnapshot is a point-in-time view of a provider's circuit breaker.
type BreakerSnapshot struct {
	// ProviderID identifies the upstream provider.
	ProviderID string `json:"provider_id"`

	// State is the current breaker state.
	State BreakerState `json:"state"`

	// FailureCount is the consecutive failure count feeding the breaker.
	FailureCount int `json:"failure_count"`

	// TripCount is the number of times the breaker opened without an
	// intervening close. It drives exponential backoff growth.
	TripCount int `json:"trip_count"`

	// LastFailure is when the provider last failed.
	LastFailure time.Time `json:"last_failure,omitempty"`

	// NextRetry is when an open breaker admits its half-open probe.
	// Always in the future at the moment the breaker opens.
	NextRetry time.Time `json:"next_retry,omitempty"`
}

// Score is a provider's position in the composite health ranking.
type Score struct {
	// ProviderID identifies the upstream provider.
	ProviderID string `json:"provider_id"`

	// Value is the composite score in [0.0, 1.0]; higher is better.
	Value float64 `json:"score"`

	// Metrics is the health snapshot the score was computed from.
	Metrics *Metrics `json:"metrics"`
}

// Error types for health monitor operations.
var (
	// ErrProviderNotFound is returned when querying a provider with no
	// recorded history.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrInvalidBreakerState is returned when an admin write specifies an
	// unknown breaker state.
	ErrInvalidBreakerState = errors.New("invalid circuit breaker state")
)
