// Helios is the provider reliability and cost governance service for
// AI generation workloads.
//
// It tracks upstream provider health with per-provider circuit breakers,
// ranks providers for failover, meters generation spend against daily and
// monthly budgets, and exposes an HTTP admin surface for operations.
//
// Usage:
//
//	# Start the service with default configuration
//	helios run
//
//	# Start with a custom configuration file
//	helios run --config /path/to/config.yaml
//
//	# Validate a configuration file
//	helios validate --config /path/to/config.yaml
//
//	# Query spend from a running instance
//	helios costs --server http://127.0.0.1:8090 --period month
//
//	# Show version information
//	helios version
package main

func main() {
	Execute()
}
