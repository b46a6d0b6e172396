package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Health monitor defaults
	DefaultFailureThreshold   = 5
	DefaultBaseBackoff        = 30 * time.Second
	DefaultMaxBackoff         = 10 * time.Minute
	DefaultResponseTimeAlpha  = 0.2
	DefaultDegradedErrorRate  = 0.1
	DefaultUnhealthyErrorRate = 0.5
	DefaultLatencyReference   = 500 * time.Millisecond
	DefaultRankingErrorRate   = 0.4
	DefaultRankingUptime      = 0.3
	DefaultRankingLatency     = 0.3

	// Budget defaults
	DefaultDailyAlertThreshold   = 0.8
	DefaultMonthlyAlertThreshold = 0.8

	// Pricing fallback ($ per 1K tokens)
	DefaultPromptPricing     = 0.001
	DefaultCompletionPricing = 0.002

	// Storage defaults
	DefaultHealthBackend         = "memory"
	DefaultHealthDBPath          = "data/health.db"
	DefaultHealthCleanupInterval = time.Minute
	DefaultHealthRetentionPeriod = 24 * time.Hour
	DefaultLedgerBackend         = "memory"
	DefaultLedgerDBPath          = "data/ledger.db"
	DefaultLedgerBusyTimeout     = 5 * time.Second

	// Retention defaults
	DefaultPruneSchedule = "0 3 * * *"
	DefaultRetentionDays = 90

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// ApplyDefaults fills in default values for any unset configuration fields.
// It modifies the configuration in place.
func ApplyDefaults(cfg *Config) {
	// Server
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Health
	if cfg.Health.FailureThreshold == 0 {
		cfg.Health.FailureThreshold = DefaultFailureThreshold
	}
	if cfg.Health.BaseBackoff == 0 {
		cfg.Health.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.Health.MaxBackoff == 0 {
		cfg.Health.MaxBackoff = DefaultMaxBackoff
	}
	if cfg.Health.ResponseTimeAlpha == 0 {
		cfg.Health.ResponseTimeAlpha = DefaultResponseTimeAlpha
	}
	if cfg.Health.DegradedErrorRate == 0 {
		cfg.Health.DegradedErrorRate = DefaultDegradedErrorRate
	}
	if cfg.Health.UnhealthyErrorRate == 0 {
		cfg.Health.UnhealthyErrorRate = DefaultUnhealthyErrorRate
	}
	if cfg.Health.LatencyReference == 0 {
		cfg.Health.LatencyReference = DefaultLatencyReference
	}
	if cfg.Health.Ranking.ErrorRate == 0 && cfg.Health.Ranking.Uptime == 0 && cfg.Health.Ranking.Latency == 0 {
		cfg.Health.Ranking = RankingWeights{
			ErrorRate: DefaultRankingErrorRate,
			Uptime:    DefaultRankingUptime,
			Latency:   DefaultRankingLatency,
		}
	}

	// Budget alert thresholds
	if cfg.Budget.AlertThresholds.Daily == 0 {
		cfg.Budget.AlertThresholds.Daily = DefaultDailyAlertThreshold
	}
	if cfg.Budget.AlertThresholds.Monthly == 0 {
		cfg.Budget.AlertThresholds.Monthly = DefaultMonthlyAlertThreshold
	}

	// Pricing fallback
	if cfg.Pricing == nil {
		cfg.Pricing = make(map[string]map[string]ModelPricing)
	}
	if _, ok := cfg.Pricing["default"]; !ok {
		cfg.Pricing["default"] = map[string]ModelPricing{
			"default": {
				Prompt:     DefaultPromptPricing,
				Completion: DefaultCompletionPricing,
			},
		}
	}

	// Storage
	if cfg.Storage.Health.Backend == "" {
		cfg.Storage.Health.Backend = DefaultHealthBackend
	}
	if cfg.Storage.Health.DBPath == "" {
		cfg.Storage.Health.DBPath = DefaultHealthDBPath
	}
	if cfg.Storage.Health.CleanupInterval == 0 {
		cfg.Storage.Health.CleanupInterval = DefaultHealthCleanupInterval
	}
	if cfg.Storage.Health.RetentionPeriod == 0 {
		cfg.Storage.Health.RetentionPeriod = DefaultHealthRetentionPeriod
	}
	if cfg.Storage.Ledger.Backend == "" {
		cfg.Storage.Ledger.Backend = DefaultLedgerBackend
	}
	if cfg.Storage.Ledger.DBPath == "" {
		cfg.Storage.Ledger.DBPath = DefaultLedgerDBPath
	}
	if cfg.Storage.Ledger.BusyTimeout == 0 {
		cfg.Storage.Ledger.BusyTimeout = DefaultLedgerBusyTimeout
	}

	// Retention
	if cfg.Retention.PruneSchedule == "" {
		cfg.Retention.PruneSchedule = DefaultPruneSchedule
	}
	if cfg.Retention.RetentionDays == 0 {
		cfg.Retention.RetentionDays = DefaultRetentionDays
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
		cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	}
}

// DefaultConfig returns a configuration with all default values applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
