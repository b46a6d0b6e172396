// Package health implements per-provider health monitoring and circuit
// breaking for upstream AI providers.
//
// # Overview
//
// The Monitor tracks success/failure outcomes reported by the generation
// orchestrator, derives health metrics (error rate, uptime, rolling response
// time), and drives a per-provider circuit breaker that gates traffic to
// failing providers.
//
// # Circuit Breaker
//
// Each provider has an independent breaker with the classic three states:
//
//	closed --(consecutive failures >= threshold)--> open
//	open --(backoff elapsed)--> half-open
//	half-open --(probe success)--> closed
//	half-open --(probe failure)--> open (backoff doubles, capped)
//
// The open -> half-open transition happens lazily on the first availability
// check after the retry deadline. At most one caller is admitted as the
// half-open probe; the claim is released when the probe outcome is recorded.
//
// # Hot Path Guarantees
//
// RecordSuccess and RecordFailure are telemetry: they never fail the caller.
// Storage write-through is best-effort; persistence errors are logged and
// swallowed. All operations are in-memory under a per-provider mutex and
// complete in bounded time.
//
// # Usage
//
//	monitor := health.NewMonitor(cfg.Health, backend, nil)
//
//	if monitor.IsProviderAvailable("openai") {
//	    // dispatch, then report the outcome
//	    monitor.RecordSuccess(ctx, "openai", elapsed)
//	}
package health
