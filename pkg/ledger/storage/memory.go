package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryBackend implements Backend using in-memory storage.
// This is the default backend and provides fast access with no persistence.
// All data is lost when the process exits.
type MemoryBackend struct {
	mu      sync.RWMutex
	records []*Record
	alerts  map[string]*Alert
	budget  *Budget
}

// NewMemoryBackend creates a new in-memory ledger backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		alerts: make(map[string]*Alert),
	}
}

// AppendRecord persists an immutable cost record.
func (m *MemoryBackend) AppendRecord(ctx context.Context, record *Record) error {
	if record == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if record.ID == "" {
		return fmt.Errorf("record id cannot be empty")
	}
	if record.ProviderID == "" {
		return fmt.Errorf("provider id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *record
	m.records = append(m.records, &copied)
	return nil
}

// QueryRecords returns cost records matching the filter, ordered by
// timestamp ascending.
func (m *MemoryBackend) QueryRecords(ctx context.Context, filter RecordFilter) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Record, 0)
	for _, r := range m.records {
		if filter.ProviderID != "" && r.ProviderID != filter.ProviderID {
			continue
		}
		if !filter.Since.IsZero() && r.Timestamp.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && !r.Timestamp.Before(filter.Until) {
			continue
		}
		copied := *r
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// PruneRecords removes cost records older than the given time.
func (m *MemoryBackend) PruneRecords(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	deleted := 0
	for _, r := range m.records {
		if r.Timestamp.Before(olderThan) {
			deleted++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return deleted, nil
}

// SaveAlert persists a new alert.
func (m *MemoryBackend) SaveAlert(ctx context.Context, alert *Alert) error {
	if alert == nil {
		return fmt.Errorf("alert cannot be nil")
	}
	if alert.ID == "" {
		return fmt.Errorf("alert id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *alert
	m.alerts[alert.ID] = &copied
	return nil
}

// GetAlert retrieves an alert by ID. Returns nil if not found.
func (m *MemoryBackend) GetAlert(ctx context.Context, id string) (*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	alert, ok := m.alerts[id]
	if !ok {
		return nil, nil
	}
	copied := *alert
	return &copied, nil
}

// ListAlerts returns alerts ordered by timestamp descending.
func (m *MemoryBackend) ListAlerts(ctx context.Context, acknowledged *bool) ([]*Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		if acknowledged != nil && a.Acknowledged != *acknowledged {
			continue
		}
		copied := *a
		out = append(out, &copied)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpdateAlert replaces a stored alert.
func (m *MemoryBackend) UpdateAlert(ctx context.Context, alert *Alert) error {
	if alert == nil {
		return fmt.Errorf("alert cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.alerts[alert.ID]; !ok {
		return fmt.Errorf("alert %q does not exist", alert.ID)
	}
	copied := *alert
	m.alerts[alert.ID] = &copied
	return nil
}

// SaveBudget persists the budget singleton.
func (m *MemoryBackend) SaveBudget(ctx context.Context, budget *Budget) error {
	if budget == nil {
		return fmt.Errorf("budget cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *budget
	m.budget = &copied
	return nil
}

// LoadBudget retrieves the budget singleton. Returns nil if never saved.
func (m *MemoryBackend) LoadBudget(ctx context.Context) (*Budget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.budget == nil {
		return nil, nil
	}
	copied := *m.budget
	return &copied, nil
}

// Close releases any resources held by the backend.
func (m *MemoryBackend) Close() error {
	return nil
}

// Size returns the current number of stored records.
// This is useful for monitoring and testing.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
