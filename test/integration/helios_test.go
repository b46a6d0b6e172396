//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"hookly/helios/pkg/admission"
	"hookly/helios/pkg/config"
	"hookly/helios/pkg/costs"
	"hookly/helios/pkg/health"
	healthstorage "hookly/helios/pkg/health/storage"
	"hookly/helios/pkg/ledger"
	ledgerstorage "hookly/helios/pkg/ledger/storage"
	"hookly/helios/pkg/server"
)

// stack bundles the wired components for one test run.
type stack struct {
	monitor    *health.Monitor
	tracker    *ledger.Tracker
	controller *admission.Controller
	handler    http.Handler
}

// buildStack wires the full service over SQLite backends rooted in dir.
func buildStack(t *testing.T, dir string) *stack {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Budget = config.BudgetConfig{
		Daily:            100,
		Monthly:          2000,
		PerGenerationMax: 10,
		AlertThresholds: config.AlertThresholds{
			Daily:   0.8,
			Monthly: 0.8,
		},
	}
	cfg.Pricing = map[string]map[string]config.ModelPricing{
		"openai": {
			"gpt-4o": {Prompt: 0.0025, Completion: 0.01},
		},
	}

	healthStore, err := healthstorage.NewSQLiteBackend(filepath.Join(dir, "health.db"))
	if err != nil {
		t.Fatalf("creating health backend: %v", err)
	}
	t.Cleanup(func() { healthStore.Close() })

	ledgerCfg := ledgerstorage.DefaultSQLiteConfig()
	ledgerCfg.Path = filepath.Join(dir, "ledger.db")
	ledgerStore, err := ledgerstorage.NewSQLiteBackend(ledgerCfg)
	if err != nil {
		t.Fatalf("creating ledger backend: %v", err)
	}
	t.Cleanup(func() { ledgerStore.Close() })

	monitor := health.NewMonitor(cfg.Health, healthStore, nil)
	tracker := ledger.NewTracker(cfg.Budget, ledgerStore, nil)
	calculator := costs.NewCalculator(cfg.Pricing)
	controller := admission.NewController(monitor, tracker, calculator)

	srv := server.NewServer(
		&cfg.Server,
		&config.MetricsConfig{Enabled: false},
		monitor,
		tracker,
	)

	return &stack{
		monitor:    monitor,
		tracker:    tracker,
		controller: controller,
		handler:    srv.Handler(),
	}
}

func getJSON(t *testing.T, handler http.Handler, path string, v interface{}) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if v != nil && rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
			t.Fatalf("decoding %s response: %v", path, err)
		}
	}
	return rec.Code
}

// TestEndToEndAdmissionFlow drives the full check/outcome loop and reads
// the results back through the admin API.
func TestEndToEndAdmissionFlow(t *testing.T) {
	s := buildStack(t, t.TempDir())
	ctx := context.Background()

	decision := s.controller.Check(ctx, admission.Request{
		ProviderID:   "openai",
		Model:        "gpt-4o",
		InputTokens:  1000,
		OutputTokens: 500,
	})
	if !decision.Allowed {
		t.Fatalf("Expected admission, got rejection: %s", decision.Reason)
	}

	s.controller.RecordOutcome(ctx, admission.Outcome{
		ProviderID:   "openai",
		Model:        "gpt-4o",
		Success:      true,
		ResponseTime: 300 * time.Millisecond,
		InputTokens:  1000,
		OutputTokens: 500,
	})

	var metrics health.Metrics
	if code := getJSON(t, s.handler, "/api/v1/providers/health/openai", &metrics); code != http.StatusOK {
		t.Fatalf("Expected 200 from health endpoint, got %d", code)
	}
	if metrics.SuccessfulRequests != 1 {
		t.Errorf("Expected 1 successful request, got %d", metrics.SuccessfulRequests)
	}

	var costMetrics ledger.CostMetrics
	if code := getJSON(t, s.handler, "/api/v1/costs?provider=openai", &costMetrics); code != http.StatusOK {
		t.Fatalf("Expected 200 from costs endpoint, got %d", code)
	}
	// 1000 * 0.0025/1K + 500 * 0.01/1K = 0.0075
	if costMetrics.TotalCost != 0.0075 {
		t.Errorf("Expected recorded cost 0.0075, got %v", costMetrics.TotalCost)
	}
}

// TestStateSurvivesRestart rebuilds the stack over the same SQLite files
// and checks breaker state and spend carry over.
func TestStateSurvivesRestart(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	upstreamErr := errors.New("upstream timeout")

	s := buildStack(t, dir)
	for i := 0; i < 5; i++ {
		s.controller.RecordOutcome(ctx, admission.Outcome{
			ProviderID: "openai",
			Success:    false,
			Err:        upstreamErr,
		})
	}
	s.tracker.RecordGenerationCost(ctx, ledger.Generation{ProviderID: "anthropic", Cost: 42})

	restarted := buildStack(t, dir)

	snap, err := restarted.monitor.GetBreakerState("openai")
	if err != nil {
		t.Fatalf("GetBreakerState failed: %v", err)
	}
	// A restored half-open or open breaker must stay conservative
	if snap.State == health.BreakerClosed {
		t.Errorf("Expected tripped breaker to survive restart, got %s", snap.State)
	}

	if got := restarted.tracker.GetDailyCost(); got != 42 {
		t.Errorf("Expected restored spend 42, got %v", got)
	}
}

// TestBudgetUpdateRoundTrip drives a budget change through the API end to
// end, including persistence.
func TestBudgetUpdateRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := buildStack(t, dir)

	body, _ := json.Marshal(ledger.BudgetStatus{
		Daily:                 300,
		Monthly:               6000,
		PerGenerationMax:      5,
		DailyAlertThreshold:   0.9,
		MonthlyAlertThreshold: 0.9,
	})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/budget", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200 updating budget, got %d: %s", rec.Code, rec.Body.String())
	}

	restarted := buildStack(t, dir)
	budget := restarted.tracker.GetBudget()
	if budget.Daily != 300 {
		t.Errorf("Expected persisted ceiling 300 after restart, got %v", budget.Daily)
	}
}

// TestConfigFileDrivesStack loads a config file from disk the way the run
// command does.
func TestConfigFileDrivesStack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := []byte(`
server:
  listen_address: "127.0.0.1:8090"
budget:
  daily: 10
pricing:
  openai:
    gpt-4o:
      prompt: 0.0025
      completion: 0.01
storage:
  ledger:
    backend: sqlite
    db_path: ` + filepath.Join(dir, "ledger.db") + `
`)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := config.LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("loading config: %v", err)
	}
	if cfg.Storage.Ledger.Backend != "sqlite" {
		t.Fatalf("Expected sqlite ledger backend, got %s", cfg.Storage.Ledger.Backend)
	}

	ledgerCfg := ledgerstorage.DefaultSQLiteConfig()
	ledgerCfg.Path = cfg.Storage.Ledger.DBPath
	store, err := ledgerstorage.NewSQLiteBackend(ledgerCfg)
	if err != nil {
		t.Fatalf("creating ledger backend: %v", err)
	}
	defer store.Close()

	tracker := ledger.NewTracker(cfg.Budget, store, nil)
	if exceeded, _ := tracker.WouldExceedBudget(11); !exceeded {
		t.Error("Expected configured daily ceiling to reject oversized estimate")
	}
}
