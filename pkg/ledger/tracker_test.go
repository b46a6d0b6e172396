package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"hookly/helios/pkg/config"
	"hookly/helios/pkg/ledger/storage"
)

func testBudgetConfig() config.BudgetConfig {
	return config.BudgetConfig{
		Daily:            100,
		Monthly:          2000,
		PerGenerationMax: 10,
		AlertThresholds: config.AlertThresholds{
			Daily:   0.8,
			Monthly: 0.8,
		},
	}
}

type trackerClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *trackerClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *trackerClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

// newTestTracker creates a tracker over a memory backend with a
// controllable clock.
func newTestTracker(t *testing.T) (*Tracker, *storage.MemoryBackend, *trackerClock) {
	t.Helper()
	clock := &trackerClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	store := storage.NewMemoryBackend()
	tr := NewTracker(testBudgetConfig(), store, nil)
	tr.now = clock.Now
	return tr, store, clock
}

func record(tr *Tracker, provider string, cost float64) {
	tr.RecordGenerationCost(context.Background(), Generation{
		ProviderID:   provider,
		Model:        "gpt-4o",
		InputTokens:  1000,
		OutputTokens: 500,
		Cost:         cost,
	})
}

// ============================================================================
// Budget Enforcement Tests
// ============================================================================

func TestWouldExceedBudget_UnderCeiling(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	record(tr, "openai", 95)

	// 95 + 4 = 99 <= 100: allowed
	exceeded, reason := tr.WouldExceedBudget(4)
	if exceeded {
		t.Errorf("Expected allowed at 99/100, got rejected: %s", reason)
	}
}

func TestWouldExceedBudget_OverCeiling(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	record(tr, "openai", 95)

	// 95 + 6 = 101 > 100: rejected
	exceeded, reason := tr.WouldExceedBudget(6)
	if !exceeded {
		t.Error("Expected rejection at 101/100")
	}
	if reason == "" {
		t.Error("Expected a rejection reason")
	}
}

func TestWouldExceedBudget_ExactCeilingPasses(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	record(tr, "openai", 95)

	// 95 + 5 = 100, equality passes
	if exceeded, _ := tr.WouldExceedBudget(5); exceeded {
		t.Error("Expected spend exactly to the ceiling to be allowed")
	}
}

func TestWouldExceedBudget_PerGenerationMax(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	exceeded, reason := tr.WouldExceedBudget(10.01)
	if !exceeded {
		t.Error("Expected rejection above per-generation maximum")
	}
	if reason != "estimated cost exceeds per-generation maximum" {
		t.Errorf("Unexpected reason: %s", reason)
	}

	// Exactly at the maximum passes
	if exceeded, _ := tr.WouldExceedBudget(10); exceeded {
		t.Error("Expected estimate equal to per-generation maximum to pass")
	}
}

func TestWouldExceedBudget_MonthlyCeiling(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	// Spread spend across days so the daily ceiling never rejects
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for day := 0; day < 20; day++ {
		clock.Set(base.AddDate(0, 0, day))
		record(tr, "openai", 99.8)
	}

	// 1996 spent this month; 5 more would pass daily (5 <= 100) but
	// breach monthly (2001 > 2000)
	exceeded, reason := tr.WouldExceedBudget(5)
	if !exceeded {
		t.Error("Expected monthly ceiling rejection")
	}
	if reason != "monthly budget would be exceeded" {
		t.Errorf("Unexpected reason: %s", reason)
	}
}

func TestWouldExceedBudget_ZeroCeilingsDisable(t *testing.T) {
	store := storage.NewMemoryBackend()
	tr := NewTracker(config.BudgetConfig{}, store, nil)

	record(tr, "openai", 1e6)
	if exceeded, _ := tr.WouldExceedBudget(1e6); exceeded {
		t.Error("Expected zero ceilings to disable enforcement")
	}
}

// ============================================================================
// Calendar Bucketing Tests
// ============================================================================

func TestTracker_DailyRolloverAtUTCMidnight(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	clock.Set(time.Date(2026, 8, 30, 23, 59, 0, 0, time.UTC))
	record(tr, "openai", 50)

	if got := tr.GetDailyCost(); got != 50 {
		t.Fatalf("Expected daily cost 50, got %v", got)
	}

	// Two minutes later it is a new UTC day
	clock.Set(time.Date(2026, 8, 31, 0, 1, 0, 0, time.UTC))
	if got := tr.GetDailyCost(); got != 0 {
		t.Errorf("Expected daily cost 0 after midnight, got %v", got)
	}
	// Month is unchanged
	if got := tr.GetMonthlyCost(); got != 50 {
		t.Errorf("Expected monthly cost 50, got %v", got)
	}
}

func TestTracker_MonthlyRollover(t *testing.T) {
	tr, _, clock := newTestTracker(t)

	clock.Set(time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))
	record(tr, "openai", 75)

	clock.Set(time.Date(2026, 9, 1, 0, 1, 0, 0, time.UTC))
	if got := tr.GetMonthlyCost(); got != 0 {
		t.Errorf("Expected monthly cost 0 in new month, got %v", got)
	}
	if got := tr.GetTotalCost(); got != 75 {
		t.Errorf("Expected lifetime cost 75, got %v", got)
	}
}

// ============================================================================
// Aggregation Tests
// ============================================================================

func TestTracker_AdditivityUnderConcurrentWrites(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	const workers = 20
	const perWorker = 50
	const each = 0.25

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				record(tr, "openai", each)
			}
		}()
	}
	wg.Wait()

	want := float64(workers*perWorker) * each
	if got := tr.GetTotalCost(); got != want {
		t.Errorf("Expected total %v, got %v", want, got)
	}

	m, err := tr.GetCostMetrics("openai", PeriodAll)
	if err != nil {
		t.Fatalf("GetCostMetrics failed: %v", err)
	}
	if m.Generations != workers*perWorker {
		t.Errorf("Expected %d generations, got %d", workers*perWorker, m.Generations)
	}
}

func TestTracker_GetCostMetrics(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	record(tr, "openai", 2)
	record(tr, "openai", 4)
	record(tr, "anthropic", 1)

	m, err := tr.GetCostMetrics("openai", PeriodDay)
	if err != nil {
		t.Fatalf("GetCostMetrics failed: %v", err)
	}
	if m.TotalCost != 6 {
		t.Errorf("Expected total 6, got %v", m.TotalCost)
	}
	if m.Generations != 2 {
		t.Errorf("Expected 2 generations, got %d", m.Generations)
	}
	if m.AvgCostPerGeneration != 3 {
		t.Errorf("Expected average 3, got %v", m.AvgCostPerGeneration)
	}
	if m.InputTokens != 2000 || m.OutputTokens != 1000 {
		t.Errorf("Token totals mismatch: %d/%d", m.InputTokens, m.OutputTokens)
	}

	// Global view sums both providers
	global, err := tr.GetCostMetrics("", PeriodDay)
	if err != nil {
		t.Fatalf("GetCostMetrics global failed: %v", err)
	}
	if global.TotalCost != 7 {
		t.Errorf("Expected global total 7, got %v", global.TotalCost)
	}
}

func TestTracker_GetCostMetricsErrors(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	if _, err := tr.GetCostMetrics("ghost", PeriodDay); !errors.Is(err, ErrProviderNotFound) {
		t.Errorf("Expected ErrProviderNotFound, got %v", err)
	}
	if _, err := tr.GetCostMetrics("", Period("week")); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("Expected ErrInvalidPeriod, got %v", err)
	}
}

func TestTracker_GetAllCostMetricsSorted(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	record(tr, "zeta", 1)
	record(tr, "alpha", 2)

	all, err := tr.GetAllCostMetrics(PeriodDay)
	if err != nil {
		t.Fatalf("GetAllCostMetrics failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("Expected 2 providers, got %d", len(all))
	}
	if all[0].ProviderID != "alpha" || all[1].ProviderID != "zeta" {
		t.Errorf("Expected sorted order [alpha zeta], got [%s %s]",
			all[0].ProviderID, all[1].ProviderID)
	}
}

// ============================================================================
// Persistence and Restore Tests
// ============================================================================

func TestTracker_RestoreRebuildsAggregates(t *testing.T) {
	tr, store, clock := newTestTracker(t)

	record(tr, "openai", 12.5)
	record(tr, "anthropic", 7.5)

	// A second tracker over the same backend replays the records
	restored := NewTracker(testBudgetConfig(), store, nil)
	restored.now = clock.Now

	if got := restored.GetDailyCost(); got != 20 {
		t.Errorf("Expected restored daily cost 20, got %v", got)
	}
	m, err := restored.GetCostMetrics("openai", PeriodDay)
	if err != nil {
		t.Fatalf("GetCostMetrics failed: %v", err)
	}
	if m.TotalCost != 12.5 {
		t.Errorf("Expected restored provider cost 12.5, got %v", m.TotalCost)
	}
}

func TestTracker_PersistedBudgetTakesPrecedence(t *testing.T) {
	tr, store, _ := newTestTracker(t)

	if err := tr.UpdateBudget(context.Background(), BudgetStatus{
		Daily:                 500,
		Monthly:               5000,
		DailyAlertThreshold:   0.9,
		MonthlyAlertThreshold: 0.9,
	}); err != nil {
		t.Fatalf("UpdateBudget failed: %v", err)
	}

	restored := NewTracker(testBudgetConfig(), store, nil)
	budget := restored.GetBudget()
	if budget.Daily != 500 {
		t.Errorf("Expected persisted daily ceiling 500, got %v", budget.Daily)
	}
}

func TestTracker_UpdateBudgetValidation(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	err := tr.UpdateBudget(context.Background(), BudgetStatus{Daily: -1})
	if err == nil {
		t.Fatal("Expected validation error for negative daily ceiling")
	}

	var validationErr config.ValidationError
	if !errors.As(err, &validationErr) {
		t.Errorf("Expected config.ValidationError, got %T", err)
	}

	// Rejected update must not change the active budget
	if budget := tr.GetBudget(); budget.Daily != 100 {
		t.Errorf("Expected budget unchanged at 100, got %v", budget.Daily)
	}
}

func TestTracker_GetBudgetIncludesSpend(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	record(tr, "openai", 42)

	budget := tr.GetBudget()
	if budget.DailySpend != 42 {
		t.Errorf("Expected daily spend 42, got %v", budget.DailySpend)
	}
	if budget.MonthlySpend != 42 {
		t.Errorf("Expected monthly spend 42, got %v", budget.MonthlySpend)
	}
}

func TestTracker_RecordSurvivesStorageFailure(t *testing.T) {
	clock := &trackerClock{t: time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)}
	tr := NewTracker(testBudgetConfig(), &failingBackend{}, nil)
	tr.now = clock.Now

	// Storage failures must not lose in-memory accounting
	record(tr, "openai", 5)
	if got := tr.GetDailyCost(); got != 5 {
		t.Errorf("Expected in-memory cost 5 despite storage failure, got %v", got)
	}
}

// failingBackend fails every write; reads return empty results.
type failingBackend struct{}

var errStorage = errors.New("storage down")

func (f *failingBackend) AppendRecord(ctx context.Context, r *storage.Record) error { return errStorage }
func (f *failingBackend) QueryRecords(ctx context.Context, filter storage.RecordFilter) ([]*storage.Record, error) {
	return nil, nil
}
func (f *failingBackend) PruneRecords(ctx context.Context, olderThan time.Time) (int, error) {
	return 0, errStorage
}
func (f *failingBackend) SaveAlert(ctx context.Context, a *storage.Alert) error { return errStorage }
func (f *failingBackend) GetAlert(ctx context.Context, id string) (*storage.Alert, error) {
	return nil, nil
}
func (f *failingBackend) ListAlerts(ctx context.Context, acknowledged *bool) ([]*storage.Alert, error) {
	return nil, nil
}
func (f *failingBackend) UpdateAlert(ctx context.Context, a *storage.Alert) error { return errStorage }
func (f *failingBackend) SaveBudget(ctx context.Context, b *storage.Budget) error { return errStorage }
func (f *failingBackend) LoadBudget(ctx context.Context) (*storage.Budget, error) { return nil, nil }
func (f *failingBackend) Close() error                                            { return nil }
