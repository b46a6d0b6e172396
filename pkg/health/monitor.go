package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"hookly/helios/pkg/config"
	"hookly/helios/pkg/health/storage"
)

// Monitor tracks per-provider health and drives the circuit breaker.
//
// The Monitor is the primary interface for the health core. The generation
// orchestrator reports outcomes via RecordSuccess/RecordFailure and consults
// IsProviderAvailable before dispatching; the admin surface uses the read
// and override operations.
//
// All state is kept in memory under a per-provider mutex, so breaker
// transitions are linearizable per provider. Snapshots are written through
// to the storage backend best-effort.
type Monitor struct {
	cfg     config.HealthConfig
	store   storage.Backend
	metrics *PromMetrics
	logger  *slog.Logger

	// mu guards the providers map; each entry carries its own lock.
	mu        sync.RWMutex
	providers map[string]*providerState

	// now is a test hook for time injection.
	now func() time.Time
}

// providerState holds all mutable state for one provider.
// Every field is guarded by mu, giving linearizable breaker transitions.
type providerState struct {
	mu sync.Mutex

	id                  string
	total               int64
	successful          int64
	consecutiveFailures int
	avgResponseTime     time.Duration
	lastChecked         time.Time
	createdAt           time.Time

	// Circuit breaker
	state         BreakerState
	tripCount     int
	lastFailure   time.Time
	nextRetry     time.Time
	probeInFlight bool
}

// NewMonitor creates a health monitor with the given configuration and
// storage backend. The metrics parameter may be nil to disable Prometheus
// instrumentation. Previously persisted provider states are restored from
// the backend.
func NewMonitor(cfg config.HealthConfig, store storage.Backend, metrics *PromMetrics) *Monitor {
	m := &Monitor{
		cfg:       cfg,
		store:     store,
		metrics:   metrics,
		logger:    slog.Default().With("component", "health.monitor"),
		providers: make(map[string]*providerState),
		now:       time.Now,
	}

	m.restore()
	return m
}

// restore loads persisted provider states from the storage backend.
// Failures are logged and ignored; the monitor starts empty in that case.
func (m *Monitor) restore() {
	if m.store == nil {
		return
	}

	states, err := m.store.List(context.Background())
	if err != nil {
		m.logger.Error("failed to restore health state", "error", err)
		return
	}

	for _, s := range states {
		ps := &providerState{
			id:                  s.ProviderID,
			total:               s.TotalRequests,
			successful:          s.SuccessfulRequests,
			consecutiveFailures: s.ConsecutiveFailures,
			avgResponseTime:     s.AvgResponseTime,
			lastChecked:         s.LastChecked,
			createdAt:           s.CreatedAt,
			state:               BreakerState(s.Breaker.State),
			tripCount:           s.Breaker.TripCount,
			lastFailure:         s.Breaker.LastFailure,
			nextRetry:           s.Breaker.NextRetry,
		}
		if ps.state == "" {
			ps.state = BreakerClosed
		}
		// A restored half-open probe claim cannot be released; reopen so
		// availability is re-evaluated against the retry deadline.
		if ps.state == BreakerHalfOpen {
			ps.state = BreakerOpen
		}
		m.providers[s.ProviderID] = ps
	}

	if len(states) > 0 {
		m.logger.Info("restored provider health state", "providers", len(states))
	}
}

// RecordSuccess records a successful request outcome for a provider.
//
// It increments the success and total counters, folds responseTime into the
// rolling average, resets the consecutive failure count, and closes the
// breaker if the outcome was a half-open probe. This is telemetry: it never
// returns an error to the caller.
func (m *Monitor) RecordSuccess(ctx context.Context, providerID string, responseTime time.Duration) {
	ps := m.getOrCreate(providerID)

	ps.mu.Lock()
	now := m.now()
	ps.total++
	ps.successful++
	ps.consecutiveFailures = 0
	ps.lastChecked = now

	if ps.avgResponseTime == 0 {
		ps.avgResponseTime = responseTime
	} else {
		alpha := m.cfg.ResponseTimeAlpha
		ps.avgResponseTime = time.Duration(
			alpha*float64(responseTime) + (1-alpha)*float64(ps.avgResponseTime))
	}

	// Only a half-open probe success closes the breaker. A straggler
	// success recorded during the open window must not cancel the backoff.
	if ps.state == BreakerHalfOpen {
		m.logger.Info("circuit breaker closed",
			"provider", providerID,
			"previous_state", string(ps.state),
		)
		ps.state = BreakerClosed
		ps.tripCount = 0
		ps.probeInFlight = false
	}

	snapshot := ps.persistenceSnapshotLocked()
	breakerState := ps.state
	ps.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordOutcome(providerID, true)
		m.metrics.ObserveResponseTime(providerID, responseTime)
		m.metrics.UpdateBreakerState(providerID, breakerState)
	}

	m.persist(ctx, snapshot)
}

// RecordFailure records a failed request outcome for a provider.
//
// It increments the total and consecutive failure counters and evaluates the
// breaker: consecutive failures at or above the configured threshold trip
// closed -> open, and a half-open probe failure reopens the breaker with
// increased backoff. This is telemetry: it never returns an error.
func (m *Monitor) RecordFailure(ctx context.Context, providerID string, cause error) {
	ps := m.getOrCreate(providerID)

	ps.mu.Lock()
	now := m.now()
	ps.total++
	ps.consecutiveFailures++
	ps.lastChecked = now
	ps.lastFailure = now

	switch ps.state {
	case BreakerHalfOpen:
		// Probe failed: reopen with increased backoff.
		ps.tripCount++
		ps.state = BreakerOpen
		ps.nextRetry = now.Add(m.backoff(ps.tripCount))
		ps.probeInFlight = false
		m.logger.Warn("circuit breaker reopened after failed probe",
			"provider", providerID,
			"trip_count", ps.tripCount,
			"next_retry", ps.nextRetry,
			"error", cause,
		)

	case BreakerClosed:
		if ps.consecutiveFailures >= m.cfg.FailureThreshold {
			ps.tripCount++
			ps.state = BreakerOpen
			ps.nextRetry = now.Add(m.backoff(ps.tripCount))
			m.logger.Warn("circuit breaker opened",
				"provider", providerID,
				"consecutive_failures", ps.consecutiveFailures,
				"next_retry", ps.nextRetry,
				"error", cause,
			)
		}
	}

	snapshot := ps.persistenceSnapshotLocked()
	breakerState := ps.state
	ps.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordOutcome(providerID, false)
		m.metrics.UpdateBreakerState(providerID, breakerState)
	}

	m.persist(ctx, snapshot)
}

// IsProviderAvailable reports whether traffic may be dispatched to a provider.
//
// It returns true when the breaker is closed, and for exactly one caller per
// half-open window: the open -> half-open transition happens lazily here once
// the retry deadline has passed, and the probe claim is held until the next
// recorded outcome for this provider releases it.
//
// Providers with no recorded history are available (initial breaker state is
// closed).
func (m *Monitor) IsProviderAvailable(providerID string) bool {
	m.mu.RLock()
	ps, exists := m.providers[providerID]
	m.mu.RUnlock()
	if !exists {
		return true
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	switch ps.state {
	case BreakerClosed:
		return true

	case BreakerOpen:
		if m.now().Before(ps.nextRetry) {
			return false
		}
		// Retry deadline passed: this caller becomes the half-open probe.
		ps.state = BreakerHalfOpen
		ps.probeInFlight = true
		m.logger.Info("circuit breaker half-open, admitting probe", "provider", providerID)
		return true

	case BreakerHalfOpen:
		if ps.probeInFlight {
			return false
		}
		ps.probeInFlight = true
		return true
	}

	return false
}

// ReleaseProbe releases a half-open probe claim without recording an
// outcome. Callers that admit a probe via IsProviderAvailable and then
// reject the request before dispatch must release the claim, or no
// further probe would ever be admitted for the provider.
func (m *Monitor) ReleaseProbe(providerID string) {
	m.mu.RLock()
	ps, exists := m.providers[providerID]
	m.mu.RUnlock()
	if !exists {
		return
	}

	ps.mu.Lock()
	if ps.state == BreakerHalfOpen && ps.probeInFlight {
		ps.probeInFlight = false
	}
	ps.mu.Unlock()
}

// GetHealthMetrics returns the health snapshot for a provider.
// Returns ErrProviderNotFound if the provider has no recorded history.
func (m *Monitor) GetHealthMetrics(providerID string) (*Metrics, error) {
	m.mu.RLock()
	ps, exists := m.providers[providerID]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrProviderNotFound
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	return m.metricsSnapshotLocked(ps), nil
}

// GetAllHealthMetrics returns health snapshots for every known provider,
// ordered by provider ID for determinism.
func (m *Monitor) GetAllHealthMetrics() []*Metrics {
	states := m.allStates()

	out := make([]*Metrics, 0, len(states))
	for _, ps := range states {
		ps.mu.Lock()
		out = append(out, m.metricsSnapshotLocked(ps))
		ps.mu.Unlock()
	}
	return out
}

// GetBreakerState returns the circuit breaker snapshot for a provider.
// Returns ErrProviderNotFound if the provider has no recorded history.
func (m *Monitor) GetBreakerState(providerID string) (*BreakerSnapshot, error) {
	m.mu.RLock()
	ps, exists := m.providers[providerID]
	m.mu.RUnlock()
	if !exists {
		return nil, ErrProviderNotFound
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()
	return breakerSnapshotLocked(ps), nil
}

// SetBreakerState is an admin override that forces a provider's breaker into
// the given state. Forcing open sets the retry deadline one base backoff in
// the future; forcing closed or half-open clears the probe claim.
func (m *Monitor) SetBreakerState(ctx context.Context, providerID string, state BreakerState) error {
	switch state {
	case BreakerClosed, BreakerOpen, BreakerHalfOpen:
	default:
		return ErrInvalidBreakerState
	}

	ps := m.getOrCreate(providerID)

	ps.mu.Lock()
	ps.state = state
	ps.probeInFlight = false
	switch state {
	case BreakerOpen:
		if ps.tripCount == 0 {
			ps.tripCount = 1
		}
		ps.nextRetry = m.now().Add(m.backoff(ps.tripCount))
	case BreakerClosed:
		ps.tripCount = 0
		ps.consecutiveFailures = 0
	}
	snapshot := ps.persistenceSnapshotLocked()
	ps.mu.Unlock()

	m.logger.Info("circuit breaker state overridden",
		"provider", providerID,
		"state", string(state),
	)

	if m.metrics != nil {
		m.metrics.UpdateBreakerState(providerID, state)
	}

	m.persist(ctx, snapshot)
	return nil
}

// ResetBreaker is an admin override that forces a provider's breaker closed
// and zeroes its failure counters.
func (m *Monitor) ResetBreaker(ctx context.Context, providerID string) error {
	m.mu.RLock()
	_, exists := m.providers[providerID]
	m.mu.RUnlock()
	if !exists {
		return ErrProviderNotFound
	}

	return m.SetBreakerState(ctx, providerID, BreakerClosed)
}

// backoff computes the open-state wait for the given trip count.
// It grows exponentially from BaseBackoff, doubling per trip, capped at
// MaxBackoff.
func (m *Monitor) backoff(tripCount int) time.Duration {
	if tripCount < 1 {
		tripCount = 1
	}

	backoff := m.cfg.BaseBackoff
	for i := 1; i < tripCount; i++ {
		backoff *= 2
		if backoff >= m.cfg.MaxBackoff {
			return m.cfg.MaxBackoff
		}
	}
	if backoff > m.cfg.MaxBackoff {
		backoff = m.cfg.MaxBackoff
	}
	return backoff
}

// getOrCreate returns the state entry for a provider, creating it in the
// initial closed state on first sight.
func (m *Monitor) getOrCreate(providerID string) *providerState {
	m.mu.RLock()
	ps, exists := m.providers[providerID]
	m.mu.RUnlock()
	if exists {
		return ps
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ps, exists = m.providers[providerID]; exists {
		return ps
	}

	ps = &providerState{
		id:        providerID,
		state:     BreakerClosed,
		createdAt: m.now(),
	}
	m.providers[providerID] = ps
	return ps
}

// allStates returns all provider state entries ordered by provider ID.
func (m *Monitor) allStates() []*providerState {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*providerState, 0, len(m.providers))
	for _, ps := range m.providers {
		out = append(out, ps)
	}
	sortStatesByID(out)
	return out
}

// metricsSnapshotLocked builds a Metrics snapshot. Caller must hold ps.mu.
func (m *Monitor) metricsSnapshotLocked(ps *providerState) *Metrics {
	var errorRate, uptime float64
	if ps.total > 0 {
		uptime = float64(ps.successful) / float64(ps.total)
		errorRate = 1 - uptime
	}

	return &Metrics{
		ProviderID:          ps.id,
		Status:              m.statusLocked(ps, errorRate),
		AvgResponseTime:     ps.avgResponseTime,
		ErrorRate:           errorRate,
		Uptime:              uptime,
		LastChecked:         ps.lastChecked,
		ConsecutiveFailures: ps.consecutiveFailures,
		TotalRequests:       ps.total,
		SuccessfulRequests:  ps.successful,
	}
}

// statusLocked classifies a provider's health. Caller must hold ps.mu.
func (m *Monitor) statusLocked(ps *providerState, errorRate float64) Status {
	if ps.state == BreakerOpen || errorRate >= m.cfg.UnhealthyErrorRate {
		return StatusUnhealthy
	}
	if ps.state == BreakerHalfOpen || ps.consecutiveFailures > 0 || errorRate >= m.cfg.DegradedErrorRate {
		return StatusDegraded
	}
	return StatusHealthy
}

// breakerSnapshotLocked builds a BreakerSnapshot. Caller must hold ps.mu.
func breakerSnapshotLocked(ps *providerState) *BreakerSnapshot {
	return &BreakerSnapshot{
		ProviderID:   ps.id,
		State:        ps.state,
		FailureCount: ps.consecutiveFailures,
		TripCount:    ps.tripCount,
		LastFailure:  ps.lastFailure,
		NextRetry:    ps.nextRetry,
	}
}

// persistenceSnapshotLocked builds the storage representation of a provider
// state. Caller must hold ps.mu.
func (ps *providerState) persistenceSnapshotLocked() *storage.ProviderState {
	return &storage.ProviderState{
		ProviderID:          ps.id,
		TotalRequests:       ps.total,
		SuccessfulRequests:  ps.successful,
		ConsecutiveFailures: ps.consecutiveFailures,
		AvgResponseTime:     ps.avgResponseTime,
		LastChecked:         ps.lastChecked,
		CreatedAt:           ps.createdAt,
		Breaker: storage.BreakerState{
			State:        string(ps.state),
			FailureCount: ps.consecutiveFailures,
			TripCount:    ps.tripCount,
			LastFailure:  ps.lastFailure,
			NextRetry:    ps.nextRetry,
		},
	}
}

// persist writes a state snapshot through to storage. Failures are logged
// and swallowed: persistence must never fail the request path.
func (m *Monitor) persist(ctx context.Context, snapshot *storage.ProviderState) {
	if m.store == nil {
		return
	}

	if err := m.store.Save(ctx, snapshot); err != nil {
		m.logger.Error("failed to persist health state",
			"provider", snapshot.ProviderID,
			"error", err,
		)
	}
}
