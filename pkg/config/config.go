package config

import "time"

// Config is the root configuration structure for Hookly Helios.
// It contains all configuration sections for the admin server, provider
// health monitoring, budgets, pricing, storage, and telemetry.
type Config struct {
	// Server contains HTTP admin server configuration including listen
	// address, timeouts, and connection limits.
	Server ServerConfig `yaml:"server"`

	// Health contains configuration for the provider health monitor and
	// circuit breaker thresholds.
	Health HealthConfig `yaml:"health"`

	// Budget contains the global spend ceilings and alert thresholds
	// enforced by the cost tracker.
	Budget BudgetConfig `yaml:"budget"`

	// Pricing maps provider name to model name to per-1K-token pricing.
	// A "default" provider/model entry is used as a fallback.
	Pricing map[string]map[string]ModelPricing `yaml:"pricing"`

	// Storage contains configuration for the health-state and cost-ledger
	// persistence backends.
	Storage StorageConfig `yaml:"storage"`

	// Retention contains configuration for scheduled pruning of old cost
	// records.
	Retention RetentionConfig `yaml:"retention"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP admin server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8090").
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum time to wait for the next request when
	// keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`
}

// HealthConfig contains configuration for the provider health monitor.
type HealthConfig struct {
	// FailureThreshold is the number of consecutive failures that trips
	// the circuit breaker from closed to open.
	// Default: 5
	FailureThreshold int `yaml:"failure_threshold"`

	// BaseBackoff is the open-state wait before the first half-open probe.
	// Subsequent trips double the backoff up to MaxBackoff.
	// Default: 30s
	BaseBackoff time.Duration `yaml:"base_backoff"`

	// MaxBackoff caps the exponential backoff growth.
	// Default: 10m
	MaxBackoff time.Duration `yaml:"max_backoff"`

	// ResponseTimeAlpha is the EWMA smoothing factor (0.0-1.0) for the
	// rolling response time average. Higher values weight recent samples
	// more heavily.
	// Default: 0.2
	ResponseTimeAlpha float64 `yaml:"response_time_alpha"`

	// DegradedErrorRate is the error rate (0.0-1.0) at which a provider is
	// classified as degraded.
	// Default: 0.1
	DegradedErrorRate float64 `yaml:"degraded_error_rate"`

	// UnhealthyErrorRate is the error rate (0.0-1.0) at which a provider is
	// classified as unhealthy.
	// Default: 0.5
	UnhealthyErrorRate float64 `yaml:"unhealthy_error_rate"`

	// LatencyReference normalizes response time in the ranking score.
	// A provider at this average latency scores 0.5 on the latency axis.
	// Default: 500ms
	LatencyReference time.Duration `yaml:"latency_reference"`

	// Ranking contains the composite health-score weights.
	Ranking RankingWeights `yaml:"ranking"`
}

// RankingWeights contains the weights for the composite provider health score.
// The three weights should sum to 1.0.
type RankingWeights struct {
	// ErrorRate is the weight for (1 - error rate).
	// Default: 0.4
	ErrorRate float64 `yaml:"error_rate"`

	// Uptime is the weight for the success ratio.
	// Default: 0.3
	Uptime float64 `yaml:"uptime"`

	// Latency is the weight for the normalized latency score.
	// Default: 0.3
	Latency float64 `yaml:"latency"`
}

// BudgetConfig contains the global budget ceilings and alert thresholds.
// All amounts are USD. A zero ceiling means no limit on that axis.
type BudgetConfig struct {
	// Daily is the spend ceiling for the current UTC calendar day.
	Daily float64 `yaml:"daily"`

	// Monthly is the spend ceiling for the current UTC calendar month.
	Monthly float64 `yaml:"monthly"`

	// PerGenerationMax is the maximum cost allowed for a single generation.
	PerGenerationMax float64 `yaml:"per_generation_max"`

	// AlertThresholds contains the fractions of each ceiling at which a
	// cost alert is raised.
	AlertThresholds AlertThresholds `yaml:"alert_thresholds"`
}

// AlertThresholds contains the alerting fractions (0.0-1.0) of each ceiling.
type AlertThresholds struct {
	// Daily triggers an alert when daily spend reaches this fraction of
	// the daily ceiling.
	// Default: 0.8
	Daily float64 `yaml:"daily"`

	// Monthly triggers an alert when monthly spend reaches this fraction
	// of the monthly ceiling.
	// Default: 0.8
	Monthly float64 `yaml:"monthly"`
}

// ModelPricing contains per-1K-token pricing for a single model in USD.
type ModelPricing struct {
	// Prompt is the cost per 1000 input tokens.
	Prompt float64 `yaml:"prompt"`

	// Completion is the cost per 1000 output tokens.
	Completion float64 `yaml:"completion"`
}

// StorageConfig contains configuration for both persistence backends.
type StorageConfig struct {
	// Health configures the health-state backend.
	Health HealthStorageConfig `yaml:"health"`

	// Ledger configures the cost-ledger backend.
	Ledger LedgerStorageConfig `yaml:"ledger"`
}

// HealthStorageConfig configures persistence of provider health snapshots.
type HealthStorageConfig struct {
	// Backend selects the storage backend.
	// Options: "memory", "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// DBPath is the SQLite database file path when Backend is "sqlite".
	// Default: "data/health.db"
	DBPath string `yaml:"db_path"`

	// CleanupInterval is how often the memory backend prunes stale entries.
	// Default: 1m
	CleanupInterval time.Duration `yaml:"cleanup_interval"`

	// RetentionPeriod is how long inactive entries are kept.
	// Default: 24h
	RetentionPeriod time.Duration `yaml:"retention_period"`
}

// LedgerStorageConfig configures persistence of cost records and alerts.
type LedgerStorageConfig struct {
	// Backend selects the storage backend.
	// Options: "memory", "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// DBPath is the SQLite database file path when Backend is "sqlite".
	// Default: "data/ledger.db"
	DBPath string `yaml:"db_path"`

	// BusyTimeout is how long to wait for SQLite locks before failing.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RetentionConfig contains configuration for cost record pruning.
// Alerts are never pruned; they form a permanent audit trail.
type RetentionConfig struct {
	// PruneSchedule is a cron expression for when pruning runs.
	// Empty disables scheduled pruning.
	// Default: "0 3 * * *" (daily at 3 AM)
	PruneSchedule string `yaml:"prune_schedule"`

	// RetentionDays is how many days of cost records to keep.
	// Default: 90
	RetentionDays int `yaml:"retention_days"`
}

// TelemetryConfig contains logging and metrics configuration.
type TelemetryConfig struct {
	// Logging configures structured logging output.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures Prometheus metrics exposure.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures the slog handler installed at startup.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled controls whether /metrics is served.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
