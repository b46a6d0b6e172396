package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

// backendFactory creates a fresh backend for each subtest.
type backendFactory func(t *testing.T) Backend

func testRecord(id, provider string, ts time.Time, cost float64) *Record {
	return &Record{
		ID:           id,
		Timestamp:    ts,
		ProviderID:   provider,
		Model:        "gpt-4o",
		UserID:       "user-1",
		InputTokens:  1000,
		OutputTokens: 500,
		Cost:         cost,
	}
}

func testAlert(id string, ts time.Time) *Alert {
	return &Alert{
		ID:          id,
		Type:        "daily_budget",
		Message:     "daily spend reached threshold",
		CurrentCost: 85,
		Threshold:   80,
		Period:      ts.Format("2006-01-02"),
		Timestamp:   ts,
	}
}

// ============================================================================
// Shared Backend Tests
// ============================================================================

func runBackendTests(t *testing.T, factory backendFactory) {
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	t.Run("AppendAndQuery", func(t *testing.T) {
		b := factory(t)
		defer b.Close()

		for i, provider := range []string{"openai", "anthropic", "openai"} {
			r := testRecord(string(rune('a'+i)), provider, base.Add(time.Duration(i)*time.Minute), float64(i+1))
			if err := b.AppendRecord(ctx, r); err != nil {
				t.Fatalf("AppendRecord failed: %v", err)
			}
		}

		got, err := b.QueryRecords(ctx, RecordFilter{})
		if err != nil {
			t.Fatalf("QueryRecords failed: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("Expected 3 records, got %d", len(got))
		}
		for i := 1; i < len(got); i++ {
			if got[i].Timestamp.Before(got[i-1].Timestamp) {
				t.Error("Expected ascending timestamp order")
			}
		}
		if got[0].Model != "gpt-4o" || got[0].InputTokens != 1000 {
			t.Errorf("Record fields not roundtripped: %+v", got[0])
		}
	})

	t.Run("QueryFilters", func(t *testing.T) {
		b := factory(t)
		defer b.Close()

		for i := 0; i < 5; i++ {
			provider := "openai"
			if i%2 == 1 {
				provider = "anthropic"
			}
			r := testRecord(string(rune('a'+i)), provider, base.Add(time.Duration(i)*time.Hour), 1)
			if err := b.AppendRecord(ctx, r); err != nil {
				t.Fatalf("AppendRecord failed: %v", err)
			}
		}

		got, err := b.QueryRecords(ctx, RecordFilter{ProviderID: "anthropic"})
		if err != nil {
			t.Fatalf("QueryRecords failed: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("Expected 2 anthropic records, got %d", len(got))
		}

		// Since is inclusive, Until exclusive
		got, _ = b.QueryRecords(ctx, RecordFilter{
			Since: base.Add(1 * time.Hour),
			Until: base.Add(3 * time.Hour),
		})
		if len(got) != 2 {
			t.Errorf("Expected 2 records in [1h, 3h), got %d", len(got))
		}

		got, _ = b.QueryRecords(ctx, RecordFilter{Limit: 3})
		if len(got) != 3 {
			t.Errorf("Expected limit of 3, got %d", len(got))
		}
	})

	t.Run("QueryEmptyResult", func(t *testing.T) {
		b := factory(t)
		defer b.Close()

		got, err := b.QueryRecords(ctx, RecordFilter{ProviderID: "ghost"})
		if err != nil {
			t.Fatalf("QueryRecords failed: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Expected empty non-nil slice, got %v", got)
		}
	})

	t.Run("PruneRecords", func(t *testing.T) {
		b := factory(t)
		defer b.Close()

		old := testRecord("old", "openai", base.AddDate(0, 0, -100), 1)
		fresh := testRecord("fresh", "openai", base, 2)
		if err := b.AppendRecord(ctx, old); err != nil {
			t.Fatalf("AppendRecord failed: %v", err)
		}
		if err := b.AppendRecord(ctx, fresh); err != nil {
			t.Fatalf("AppendRecord failed: %v", err)
		}

		deleted, err := b.PruneRecords(ctx, base.AddDate(0, 0, -90))
		if err != nil {
			t.Fatalf("PruneRecords failed: %v", err)
		}
		if deleted != 1 {
			t.Errorf("Expected 1 record pruned, got %d", deleted)
		}

		got, _ := b.QueryRecords(ctx, RecordFilter{})
		if len(got) != 1 || got[0].ID != "fresh" {
			t.Errorf("Expected only the fresh record to survive, got %v", got)
		}
	})

	t.Run("AlertLifecycle", func(t *testing.T) {
		b := factory(t)
		defer b.Close()

		a := testAlert("alert-1", base)
		if err := b.SaveAlert(ctx, a); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}

		got, err := b.GetAlert(ctx, "alert-1")
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got == nil {
			t.Fatal("Expected alert, got nil")
		}
		if got.Type != "daily_budget" || got.CurrentCost != 85 {
			t.Errorf("Alert fields not roundtripped: %+v", got)
		}

		got.Acknowledged = true
		if err := b.UpdateAlert(ctx, got); err != nil {
			t.Fatalf("UpdateAlert failed: %v", err)
		}
		got, _ = b.GetAlert(ctx, "alert-1")
		if !got.Acknowledged {
			t.Error("Expected acknowledged flag to persist")
		}
	})

	t.Run("GetAlertMissing", func(t *testing.T) {
		b := factory(t)
		defer b.Close()

		got, err := b.GetAlert(ctx, "nope")
		if err != nil {
			t.Fatalf("GetAlert failed: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil for missing alert, got %+v", got)
		}
	})

	t.Run("UpdateAlertMissing", func(t *testing.T) {
		b := factory(t)
		defer b.Close()

		if err := b.UpdateAlert(ctx, testAlert("nope", base)); err == nil {
			t.Error("Expected error updating a missing alert")
		}
	})

	t.Run("ListAlertsOrderAndFilter", func(t *testing.T) {
		b := factory(t)
		defer b.Close()

		first := testAlert("first", base)
		second := testAlert("second", base.Add(time.Hour))
		second.Acknowledged = true
		if err := b.SaveAlert(ctx, first); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}
		if err := b.SaveAlert(ctx, second); err != nil {
			t.Fatalf("SaveAlert failed: %v", err)
		}

		all, err := b.ListAlerts(ctx, nil)
		if err != nil {
			t.Fatalf("ListAlerts failed: %v", err)
		}
		if len(all) != 2 {
			t.Fatalf("Expected 2 alerts, got %d", len(all))
		}
		// Newest first
		if all[0].ID != "second" {
			t.Errorf("Expected newest alert first, got %s", all[0].ID)
		}

		unacked := false
		got, _ := b.ListAlerts(ctx, &unacked)
		if len(got) != 1 || got[0].ID != "first" {
			t.Errorf("Expected only the unacknowledged alert, got %v", got)
		}
	})

	t.Run("BudgetSingleton", func(t *testing.T) {
		b := factory(t)
		defer b.Close()

		got, err := b.LoadBudget(ctx)
		if err != nil {
			t.Fatalf("LoadBudget failed: %v", err)
		}
		if got != nil {
			t.Errorf("Expected nil budget before first save, got %+v", got)
		}

		budget := &Budget{
			Daily:                 100,
			Monthly:               2000,
			PerGenerationMax:      10,
			DailyAlertThreshold:   0.8,
			MonthlyAlertThreshold: 0.8,
			UpdatedAt:             base,
		}
		if err := b.SaveBudget(ctx, budget); err != nil {
			t.Fatalf("SaveBudget failed: %v", err)
		}

		// Saving again replaces, never duplicates
		budget.Daily = 250
		if err := b.SaveBudget(ctx, budget); err != nil {
			t.Fatalf("SaveBudget failed: %v", err)
		}

		got, err = b.LoadBudget(ctx)
		if err != nil {
			t.Fatalf("LoadBudget failed: %v", err)
		}
		if got == nil || got.Daily != 250 || got.Monthly != 2000 {
			t.Errorf("Budget not roundtripped: %+v", got)
		}
	})
}

func TestMemoryBackend(t *testing.T) {
	runBackendTests(t, func(t *testing.T) Backend {
		return NewMemoryBackend()
	})
}

func TestSQLiteBackend(t *testing.T) {
	runBackendTests(t, func(t *testing.T) Backend {
		cfg := DefaultSQLiteConfig()
		cfg.Path = filepath.Join(t.TempDir(), "ledger.db")
		b, err := NewSQLiteBackend(cfg)
		if err != nil {
			t.Fatalf("NewSQLiteBackend failed: %v", err)
		}
		return b
	})
}

// ============================================================================
// SQLite-specific Tests
// ============================================================================

func TestSQLiteBackend_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	cfg := DefaultSQLiteConfig()
	cfg.Path = filepath.Join(t.TempDir(), "ledger.db")

	b, err := NewSQLiteBackend(cfg)
	if err != nil {
		t.Fatalf("NewSQLiteBackend failed: %v", err)
	}
	if err := b.AppendRecord(ctx, testRecord("r1", "openai", base, 3.5)); err != nil {
		t.Fatalf("AppendRecord failed: %v", err)
	}
	if err := b.SaveBudget(ctx, &Budget{Daily: 100, UpdatedAt: base}); err != nil {
		t.Fatalf("SaveBudget failed: %v", err)
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := NewSQLiteBackend(cfg)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	records, err := reopened.QueryRecords(ctx, RecordFilter{})
	if err != nil {
		t.Fatalf("QueryRecords failed: %v", err)
	}
	if len(records) != 1 || records[0].Cost != 3.5 {
		t.Errorf("Expected persisted record with cost 3.5, got %v", records)
	}

	budget, err := reopened.LoadBudget(ctx)
	if err != nil {
		t.Fatalf("LoadBudget failed: %v", err)
	}
	if budget == nil || budget.Daily != 100 {
		t.Errorf("Expected persisted budget, got %+v", budget)
	}
}

func TestMemoryBackend_CopiesOnWrite(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	r := testRecord("r1", "openai", time.Now().UTC(), 1)
	if err := b.AppendRecord(ctx, r); err != nil {
		t.Fatalf("AppendRecord failed: %v", err)
	}

	// Mutating the caller's record must not change stored state
	r.Cost = 999
	got, _ := b.QueryRecords(ctx, RecordFilter{})
	if got[0].Cost != 1 {
		t.Errorf("Expected stored cost 1, got %v", got[0].Cost)
	}
}

func TestMemoryBackend_ValidatesInput(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()

	if err := b.AppendRecord(ctx, nil); err == nil {
		t.Error("Expected error for nil record")
	}
	if err := b.AppendRecord(ctx, &Record{ProviderID: "openai"}); err == nil {
		t.Error("Expected error for missing record ID")
	}
	if err := b.AppendRecord(ctx, &Record{ID: "r1"}); err == nil {
		t.Error("Expected error for missing provider ID")
	}
	if err := b.SaveAlert(ctx, nil); err == nil {
		t.Error("Expected error for nil alert")
	}
}
