// Package server provides the HTTP admin and observability surface.
//
// The server exposes read endpoints for provider health, breaker state,
// rankings, and spend, plus the admin operations: budget updates, alert
// acknowledgement, and breaker overrides. It is an operations surface, not
// a data plane; generation traffic never passes through it.
//
// # Endpoints
//
//	GET  /healthz                                liveness probe
//	GET  /metrics                                Prometheus metrics
//	GET  /api/v1/providers/health                all provider health metrics
//	GET  /api/v1/providers/health/{id}           one provider's health metrics
//	GET  /api/v1/providers/{id}/breaker          breaker state
//	PUT  /api/v1/providers/{id}/breaker          set breaker state (admin)
//	POST /api/v1/providers/{id}/breaker/reset    reset breaker (admin)
//	GET  /api/v1/providers/ranking               health-score ranking
//	GET  /api/v1/providers/costs/ranking         cost-efficiency ranking
//	GET  /api/v1/costs                           spend aggregates (?period=, ?provider=)
//	GET  /api/v1/budget                          budget ceilings and current spend
//	PUT  /api/v1/budget                          update budget ceilings (admin)
//	GET  /api/v1/alerts                          cost alerts (?acknowledged=)
//	POST /api/v1/alerts/{id}/ack                 acknowledge an alert
//
// # Lifecycle
//
// Start blocks until the context is cancelled, a shutdown signal arrives
// (SIGINT, SIGTERM), or the listener fails. Shutdown drains in-flight
// requests within the configured timeout.
//
//	srv := server.NewServer(&cfg.Server, monitor, tracker, deps...)
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
package server
