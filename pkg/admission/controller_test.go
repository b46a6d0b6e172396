package admission

import (
	"context"
	"errors"
	"testing"
	"time"

	"hookly/helios/pkg/config"
	"hookly/helios/pkg/costs"
	"hookly/helios/pkg/health"
	"hookly/helios/pkg/ledger"
	ledgerstorage "hookly/helios/pkg/ledger/storage"
)

var errUpstream = errors.New("upstream timeout")

func testController(t *testing.T) (*Controller, *health.Monitor, *ledger.Tracker) {
	t.Helper()

	monitor := health.NewMonitor(config.HealthConfig{
		FailureThreshold:   5,
		BaseBackoff:        30 * time.Second,
		MaxBackoff:         10 * time.Minute,
		ResponseTimeAlpha:  0.2,
		DegradedErrorRate:  0.1,
		UnhealthyErrorRate: 0.5,
		LatencyReference:   500 * time.Millisecond,
		Ranking: config.RankingWeights{
			ErrorRate: 0.4,
			Uptime:    0.3,
			Latency:   0.3,
		},
	}, nil, nil)

	tracker := ledger.NewTracker(config.BudgetConfig{
		Daily:            100,
		Monthly:          2000,
		PerGenerationMax: 10,
		AlertThresholds: config.AlertThresholds{
			Daily:   0.8,
			Monthly: 0.8,
		},
	}, ledgerstorage.NewMemoryBackend(), nil)

	calculator := costs.NewCalculator(map[string]map[string]config.ModelPricing{
		"openai": {
			// $0.01 per 1K prompt, $0.02 per 1K completion
			"gpt-4o": {Prompt: 0.01, Completion: 0.02},
		},
	})

	return NewController(monitor, tracker, calculator), monitor, tracker
}

// ============================================================================
// Pre-flight Check Tests
// ============================================================================

func TestCheck_AllowsHealthyProviderWithinBudget(t *testing.T) {
	c, _, _ := testController(t)

	d := c.Check(context.Background(), Request{
		ProviderID:   "openai",
		Model:        "gpt-4o",
		InputTokens:  1000,
		OutputTokens: 500,
	})
	if !d.Allowed {
		t.Fatalf("Expected admission, got rejection: %s", d.Reason)
	}
	if d.EstimatedCost != 0.02 {
		t.Errorf("Expected estimate 0.02, got %v", d.EstimatedCost)
	}
}

func TestCheck_RejectsOpenBreaker(t *testing.T) {
	c, monitor, _ := testController(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		monitor.RecordFailure(ctx, "openai", errUpstream)
	}

	d := c.Check(ctx, Request{ProviderID: "openai", Model: "gpt-4o"})
	if d.Allowed {
		t.Fatal("Expected rejection for open breaker")
	}
	if d.Reason != "provider unavailable: circuit breaker open" {
		t.Errorf("Unexpected reason: %s", d.Reason)
	}
	if d.EstimatedCost != 0 {
		t.Errorf("Expected no estimate on availability rejection, got %v", d.EstimatedCost)
	}
}

func TestCheck_RejectsOverBudget(t *testing.T) {
	c, _, tracker := testController(t)
	ctx := context.Background()

	// Leave only $2 of daily headroom
	tracker.RecordGenerationCost(ctx, ledger.Generation{ProviderID: "openai", Cost: 98})

	// 300K prompt tokens at $0.01/1K = $3 > $2 headroom
	d := c.Check(ctx, Request{
		ProviderID:  "openai",
		Model:       "gpt-4o",
		InputTokens: 300000,
	})
	if d.Allowed {
		t.Fatal("Expected budget rejection")
	}
	if d.Reason != "daily budget would be exceeded" {
		t.Errorf("Unexpected reason: %s", d.Reason)
	}
	if d.EstimatedCost != 3 {
		t.Errorf("Expected estimate 3, got %v", d.EstimatedCost)
	}
}

func TestCheck_BudgetRejectionReleasesProbeClaim(t *testing.T) {
	c, monitor, tracker := testController(t)
	ctx := context.Background()

	if err := monitor.SetBreakerState(ctx, "openai", health.BreakerHalfOpen); err != nil {
		t.Fatalf("SetBreakerState failed: %v", err)
	}

	// Leave only $2 of daily headroom so the probe request is rejected on
	// budget after it has claimed the half-open slot.
	tracker.RecordGenerationCost(ctx, ledger.Generation{ProviderID: "openai", Cost: 98})

	d := c.Check(ctx, Request{ProviderID: "openai", Model: "gpt-4o", InputTokens: 300000})
	if d.Allowed {
		t.Fatal("Expected budget rejection")
	}
	if d.Reason != "daily budget would be exceeded" {
		t.Fatalf("Unexpected reason: %s", d.Reason)
	}

	// The rejected request never dispatches, so the probe claim must be
	// released: an affordable request is admitted as the next probe.
	d = c.Check(ctx, Request{ProviderID: "openai", Model: "gpt-4o", InputTokens: 1000, OutputTokens: 500})
	if !d.Allowed {
		t.Fatalf("Expected next caller to claim the probe, got rejection: %s", d.Reason)
	}
}

func TestCheck_MissingPricingFailsOpen(t *testing.T) {
	c, _, _ := testController(t)

	d := c.Check(context.Background(), Request{
		ProviderID:   "unknown-provider",
		Model:        "mystery-model",
		InputTokens:  1000,
		OutputTokens: 1000,
	})
	if !d.Allowed {
		t.Fatalf("Expected fail-open admission without pricing, got: %s", d.Reason)
	}
	if d.EstimatedCost != 0 {
		t.Errorf("Expected zero estimate without pricing, got %v", d.EstimatedCost)
	}
}

// ============================================================================
// Outcome Recording Tests
// ============================================================================

func TestRecordOutcome_SuccessUpdatesHealthAndLedger(t *testing.T) {
	c, monitor, tracker := testController(t)
	ctx := context.Background()

	c.RecordOutcome(ctx, Outcome{
		ProviderID:   "openai",
		Model:        "gpt-4o",
		Success:      true,
		ResponseTime: 200 * time.Millisecond,
		InputTokens:  1000,
		OutputTokens: 500,
		Cost:         0.05,
	})

	hm, err := monitor.GetHealthMetrics("openai")
	if err != nil {
		t.Fatalf("GetHealthMetrics failed: %v", err)
	}
	if hm.SuccessfulRequests != 1 {
		t.Errorf("Expected 1 success, got %d", hm.SuccessfulRequests)
	}

	if got := tracker.GetDailyCost(); got != 0.05 {
		t.Errorf("Expected recorded cost 0.05, got %v", got)
	}
}

func TestRecordOutcome_ZeroCostComputedFromPricing(t *testing.T) {
	c, _, tracker := testController(t)

	c.RecordOutcome(context.Background(), Outcome{
		ProviderID:   "openai",
		Model:        "gpt-4o",
		Success:      true,
		ResponseTime: 100 * time.Millisecond,
		InputTokens:  1000,
		OutputTokens: 500,
	})

	// 1000 * 0.01/1K + 500 * 0.02/1K = 0.02
	if got := tracker.GetDailyCost(); got != 0.02 {
		t.Errorf("Expected computed cost 0.02, got %v", got)
	}
}

func TestRecordOutcome_FailureNotBilled(t *testing.T) {
	c, monitor, tracker := testController(t)
	ctx := context.Background()

	c.RecordOutcome(ctx, Outcome{
		ProviderID: "openai",
		Success:    false,
		Err:        errUpstream,
	})

	hm, err := monitor.GetHealthMetrics("openai")
	if err != nil {
		t.Fatalf("GetHealthMetrics failed: %v", err)
	}
	if hm.ConsecutiveFailures != 1 {
		t.Errorf("Expected 1 consecutive failure, got %d", hm.ConsecutiveFailures)
	}

	if got := tracker.GetTotalCost(); got != 0 {
		t.Errorf("Expected failed generation not billed, got %v", got)
	}
}

func TestRecordOutcome_FailuresTripBreakerThenCheckRejects(t *testing.T) {
	c, _, _ := testController(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		c.RecordOutcome(ctx, Outcome{ProviderID: "openai", Success: false, Err: errUpstream})
	}

	d := c.Check(ctx, Request{ProviderID: "openai", Model: "gpt-4o"})
	if d.Allowed {
		t.Error("Expected rejection after breaker tripped through outcomes")
	}
}
