package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "budget.daily").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateHealth(&cfg.Health)...)
	errs = append(errs, ValidateBudget(&cfg.Budget)...)
	errs = append(errs, validatePricing(cfg.Pricing)...)
	errs = append(errs, validateStorage(&cfg.Storage)...)
	errs = append(errs, validateRetention(&cfg.Retention)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{"server.listen_address", fmt.Sprintf("invalid host:port: %v", err)})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{"server.read_timeout", "must not be negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{"server.write_timeout", "must not be negative"})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{"server.shutdown_timeout", "must be positive"})
	}

	return errs
}

func validateHealth(cfg *HealthConfig) []FieldError {
	var errs []FieldError

	if cfg.FailureThreshold < 1 {
		errs = append(errs, FieldError{"health.failure_threshold", "must be at least 1"})
	}
	if cfg.BaseBackoff <= 0 {
		errs = append(errs, FieldError{"health.base_backoff", "must be positive"})
	}
	if cfg.MaxBackoff < cfg.BaseBackoff {
		errs = append(errs, FieldError{"health.max_backoff", "must not be less than base_backoff"})
	}
	if cfg.ResponseTimeAlpha <= 0 || cfg.ResponseTimeAlpha > 1 {
		errs = append(errs, FieldError{"health.response_time_alpha", "must be in (0.0, 1.0]"})
	}
	if cfg.DegradedErrorRate < 0 || cfg.DegradedErrorRate > 1 {
		errs = append(errs, FieldError{"health.degraded_error_rate", "must be in [0.0, 1.0]"})
	}
	if cfg.UnhealthyErrorRate < cfg.DegradedErrorRate || cfg.UnhealthyErrorRate > 1 {
		errs = append(errs, FieldError{"health.unhealthy_error_rate", "must be in [degraded_error_rate, 1.0]"})
	}
	if cfg.LatencyReference <= 0 {
		errs = append(errs, FieldError{"health.latency_reference", "must be positive"})
	}

	sum := cfg.Ranking.ErrorRate + cfg.Ranking.Uptime + cfg.Ranking.Latency
	if cfg.Ranking.ErrorRate < 0 || cfg.Ranking.Uptime < 0 || cfg.Ranking.Latency < 0 {
		errs = append(errs, FieldError{"health.ranking", "weights must not be negative"})
	} else if sum < 0.99 || sum > 1.01 {
		errs = append(errs, FieldError{"health.ranking", fmt.Sprintf("weights must sum to 1.0, got %.2f", sum)})
	}

	return errs
}

// ValidateBudget validates the budget section. It is exported because the
// ledger accepts runtime budget updates through the admin surface, which
// must pass the same rules as file-based configuration.
func ValidateBudget(cfg *BudgetConfig) []FieldError {
	var errs []FieldError

	if cfg.Daily < 0 {
		errs = append(errs, FieldError{"budget.daily", "must not be negative"})
	}
	if cfg.Monthly < 0 {
		errs = append(errs, FieldError{"budget.monthly", "must not be negative"})
	}
	if cfg.PerGenerationMax < 0 {
		errs = append(errs, FieldError{"budget.per_generation_max", "must not be negative"})
	}
	if cfg.Daily > 0 && cfg.Monthly > 0 && cfg.Daily > cfg.Monthly {
		errs = append(errs, FieldError{"budget.daily", "must not exceed budget.monthly"})
	}
	if cfg.PerGenerationMax > 0 && cfg.Daily > 0 && cfg.PerGenerationMax > cfg.Daily {
		errs = append(errs, FieldError{"budget.per_generation_max", "must not exceed budget.daily"})
	}
	if cfg.AlertThresholds.Daily < 0 || cfg.AlertThresholds.Daily > 1 {
		errs = append(errs, FieldError{"budget.alert_thresholds.daily", "must be in [0.0, 1.0]"})
	}
	if cfg.AlertThresholds.Monthly < 0 || cfg.AlertThresholds.Monthly > 1 {
		errs = append(errs, FieldError{"budget.alert_thresholds.monthly", "must be in [0.0, 1.0]"})
	}

	return errs
}

func validatePricing(pricing map[string]map[string]ModelPricing) []FieldError {
	var errs []FieldError

	for provider, models := range pricing {
		for model, p := range models {
			field := fmt.Sprintf("pricing.%s.%s", provider, model)
			if p.Prompt < 0 {
				errs = append(errs, FieldError{field + ".prompt", "must not be negative"})
			}
			if p.Completion < 0 {
				errs = append(errs, FieldError{field + ".completion", "must not be negative"})
			}
		}
	}

	return errs
}

func validateStorage(cfg *StorageConfig) []FieldError {
	var errs []FieldError

	switch cfg.Health.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{"storage.health.backend", fmt.Sprintf("unknown backend %q (options: memory, sqlite)", cfg.Health.Backend)})
	}
	if cfg.Health.Backend == "sqlite" && cfg.Health.DBPath == "" {
		errs = append(errs, FieldError{"storage.health.db_path", "required for sqlite backend"})
	}

	switch cfg.Ledger.Backend {
	case "memory", "sqlite":
	default:
		errs = append(errs, FieldError{"storage.ledger.backend", fmt.Sprintf("unknown backend %q (options: memory, sqlite)", cfg.Ledger.Backend)})
	}
	if cfg.Ledger.Backend == "sqlite" && cfg.Ledger.DBPath == "" {
		errs = append(errs, FieldError{"storage.ledger.db_path", "required for sqlite backend"})
	}

	return errs
}

func validateRetention(cfg *RetentionConfig) []FieldError {
	var errs []FieldError

	if cfg.PruneSchedule != "" {
		if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
			errs = append(errs, FieldError{"retention.prune_schedule", fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}
	if cfg.RetentionDays < 0 {
		errs = append(errs, FieldError{"retention.retention_days", "must not be negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("unknown level %q (options: debug, info, warn, error)", cfg.Logging.Level)})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("unknown format %q (options: json, text)", cfg.Logging.Format)})
	}

	return errs
}
