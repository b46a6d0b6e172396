// Package config provides configuration loading and validation for Hookly Helios.
//
// # Overview
//
// Configuration is loaded from a YAML file, merged with defaults, optionally
// overridden by HELIOS_* environment variables, and validated before use.
// All validation errors are collected and reported together rather than
// failing on the first error.
//
// # Loading Sequence
//
//  1. Read and parse the YAML file
//  2. Apply default values for unset fields
//  3. Apply environment variable overrides (LoadConfigWithEnvOverrides only)
//  4. Validate the final configuration
//
// # Hot Reload
//
// The Watcher type monitors the configuration file with fsnotify and invokes
// a reload callback when it changes. Only the budget and pricing sections are
// safe to reload at runtime; structural settings (listen address, storage
// backends) require a restart.
//
// # Usage
//
//	cfg, err := config.LoadConfig("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
