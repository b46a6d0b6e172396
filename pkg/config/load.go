package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any
// errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that behavior.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention HELIOS_SECTION_FIELD (e.g., HELIOS_SERVER_LISTEN_ADDRESS) and
// always take precedence over file-based configuration.
//
// The loading sequence is:
//  1. Load YAML from file
//  2. Apply default values
//  3. Apply environment variable overrides
//  4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format HELIOS_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	if val := os.Getenv("HELIOS_SERVER_LISTEN_ADDRESS"); val != "" {
		cfg.Server.ListenAddress = val
	}
	if val := os.Getenv("HELIOS_SERVER_READ_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if val := os.Getenv("HELIOS_SERVER_WRITE_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}
	if val := os.Getenv("HELIOS_SERVER_SHUTDOWN_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Server.ShutdownTimeout = d
		}
	}

	// Health overrides
	if val := os.Getenv("HELIOS_HEALTH_FAILURE_THRESHOLD"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Health.FailureThreshold = i
		}
	}
	if val := os.Getenv("HELIOS_HEALTH_BASE_BACKOFF"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Health.BaseBackoff = d
		}
	}
	if val := os.Getenv("HELIOS_HEALTH_MAX_BACKOFF"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Health.MaxBackoff = d
		}
	}

	// Budget overrides
	if val := os.Getenv("HELIOS_BUDGET_DAILY"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Budget.Daily = f
		}
	}
	if val := os.Getenv("HELIOS_BUDGET_MONTHLY"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Budget.Monthly = f
		}
	}
	if val := os.Getenv("HELIOS_BUDGET_PER_GENERATION_MAX"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Budget.PerGenerationMax = f
		}
	}

	// Storage overrides
	if val := os.Getenv("HELIOS_STORAGE_HEALTH_BACKEND"); val != "" {
		cfg.Storage.Health.Backend = val
	}
	if val := os.Getenv("HELIOS_STORAGE_HEALTH_DB_PATH"); val != "" {
		cfg.Storage.Health.DBPath = val
	}
	if val := os.Getenv("HELIOS_STORAGE_LEDGER_BACKEND"); val != "" {
		cfg.Storage.Ledger.Backend = val
	}
	if val := os.Getenv("HELIOS_STORAGE_LEDGER_DB_PATH"); val != "" {
		cfg.Storage.Ledger.DBPath = val
	}

	// Telemetry overrides
	if val := os.Getenv("HELIOS_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("HELIOS_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
}
