package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryBackend implements Backend using in-memory storage.
// This is the default backend and provides fast access with no persistence.
// All data is lost when the process exits.
//
// MemoryBackend is thread-safe and supports concurrent access using sync.RWMutex.
type MemoryBackend struct {
	// states maps provider ID to health state.
	states map[string]*ProviderState

	// mu protects access to states map.
	mu sync.RWMutex

	// maxEntries is the maximum number of entries before eviction.
	maxEntries int

	// cleanupInterval is how often to run cleanup.
	cleanupInterval time.Duration

	// done signals the cleanup goroutine to stop.
	done chan struct{}

	closeOnce sync.Once
}

// MemoryBackendConfig configures the memory backend.
type MemoryBackendConfig struct {
	// MaxEntries is the maximum number of state entries to store.
	// Oldest entries are evicted when this limit is reached.
	// Default: 10,000
	MaxEntries int

	// CleanupInterval is how often to cleanup stale entries.
	// Default: 1 minute
	CleanupInterval time.Duration

	// RetentionPeriod is how long to keep inactive entries.
	// Entries not updated within this period are eligible for cleanup.
	// Default: 24 hours
	RetentionPeriod time.Duration
}

// NewMemoryBackend creates a new in-memory storage backend with default settings.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithConfig(MemoryBackendConfig{})
}

// NewMemoryBackendWithConfig creates a new in-memory backend with custom configuration.
func NewMemoryBackendWithConfig(cfg MemoryBackendConfig) *MemoryBackend {
	if cfg.MaxEntries == 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Minute
	}
	if cfg.RetentionPeriod == 0 {
		cfg.RetentionPeriod = 24 * time.Hour
	}

	backend := &MemoryBackend{
		states:          make(map[string]*ProviderState),
		maxEntries:      cfg.MaxEntries,
		cleanupInterval: cfg.CleanupInterval,
		done:            make(chan struct{}),
	}

	go backend.cleanupLoop(cfg.RetentionPeriod)

	return backend
}

// Save persists the health state for a provider.
func (m *MemoryBackend) Save(ctx context.Context, state *ProviderState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.ProviderID == "" {
		return fmt.Errorf("provider id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.states[state.ProviderID]; !exists && len(m.states) >= m.maxEntries {
		m.evictOldestLocked()
	}

	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.LastUpdated.IsZero() {
		state.LastUpdated = now
	}

	m.states[state.ProviderID] = state
	return nil
}

// Load retrieves the health state for a provider.
func (m *MemoryBackend) Load(ctx context.Context, providerID string) (*ProviderState, error) {
	if providerID == "" {
		return nil, fmt.Errorf("provider id cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	state, exists := m.states[providerID]
	if !exists {
		return nil, nil
	}
	return state, nil
}

// List returns the health states of all known providers.
func (m *MemoryBackend) List(ctx context.Context) ([]*ProviderState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	states := make([]*ProviderState, 0, len(m.states))
	for _, state := range m.states {
		states = append(states, state)
	}
	return states, nil
}

// Delete removes the health state for a provider.
func (m *MemoryBackend) Delete(ctx context.Context, providerID string) error {
	if providerID == "" {
		return fmt.Errorf("provider id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.states, providerID)
	return nil
}

// Cleanup removes entries not updated since the given time.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	deleted := 0
	for id, state := range m.states {
		if state.LastUpdated.Before(olderThan) {
			delete(m.states, id)
			deleted++
		}
	}
	return deleted, nil
}

// Close releases any resources held by the backend.
func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	return nil
}

// Size returns the current number of stored states.
// This is useful for monitoring and testing.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// evictOldestLocked evicts the oldest entry to make room for new entries.
// Caller must hold write lock.
func (m *MemoryBackend) evictOldestLocked() {
	var (
		oldestID   string
		oldestTime time.Time
		found      bool
	)

	for id, state := range m.states {
		if !found || state.LastUpdated.Before(oldestTime) {
			oldestID = id
			oldestTime = state.LastUpdated
			found = true
		}
	}

	if found {
		delete(m.states, oldestID)
	}
}

// cleanupLoop runs periodic cleanup of stale entries.
func (m *MemoryBackend) cleanupLoop(retentionPeriod time.Duration) {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-retentionPeriod)
			_, _ = m.Cleanup(context.Background(), cutoff)
		case <-m.done:
			return
		}
	}
}
