package ledger

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"hookly/helios/pkg/config"
	"hookly/helios/pkg/ledger/storage"
)

const (
	dayKeyLayout   = "2006-01-02"
	monthKeyLayout = "2006-01"
)

// Generation describes one completed generation for cost recording.
type Generation struct {
	// ProviderID identifies the upstream provider.
	ProviderID string

	// Model is the model used, if known.
	Model string

	// UserID attributes the generation to a user, if known.
	UserID string

	// InputTokens is the prompt token count.
	InputTokens int

	// OutputTokens is the completion token count.
	OutputTokens int

	// Cost is the actual cost in USD.
	Cost float64
}

// aggregate is one spend bucket.
type aggregate struct {
	cost         float64
	generations  int64
	inputTokens  int64
	outputTokens int64
}

func (a *aggregate) add(gen Generation) {
	a.cost += gen.Cost
	a.generations++
	a.inputTokens += int64(gen.InputTokens)
	a.outputTokens += int64(gen.OutputTokens)
}

// providerSpend holds the calendar buckets for one provider.
type providerSpend struct {
	days   map[string]*aggregate
	months map[string]*aggregate
	total  aggregate
}

func newProviderSpend() *providerSpend {
	return &providerSpend{
		days:   make(map[string]*aggregate),
		months: make(map[string]*aggregate),
	}
}

// Tracker tracks generation spend against calendar-aligned budgets.
//
// Aggregates are kept in memory, keyed by UTC calendar day ("2006-01-02")
// and calendar month ("2006-01"), globally and per provider. Day and month
// rollover needs no timer: the current bucket is derived from the clock on
// every access. On startup the aggregates are rebuilt by replaying the
// stored cost records.
//
// All methods are safe for concurrent use.
type Tracker struct {
	store   storage.Backend
	metrics *PromMetrics
	logger  *slog.Logger

	mu     sync.RWMutex
	budget storage.Budget

	days   map[string]*aggregate
	months map[string]*aggregate
	total  aggregate

	providers map[string]*providerSpend

	// openAlerts maps dedupe key to the unacknowledged alert ID.
	openAlerts map[string]string

	// now is replaceable for tests.
	now func() time.Time
}

// NewTracker creates a cost tracker with ceilings taken from the budget
// configuration. A budget persisted by a previous run takes precedence over
// the configured one. Aggregates and the open-alert set are rebuilt from
// the storage backend; restore failures are logged and the tracker starts
// empty.
func NewTracker(cfg config.BudgetConfig, store storage.Backend, metrics *PromMetrics) *Tracker {
	t := &Tracker{
		store:   store,
		metrics: metrics,
		logger:  slog.Default().With("component", "ledger.tracker"),
		budget: storage.Budget{
			Daily:                 cfg.Daily,
			Monthly:               cfg.Monthly,
			PerGenerationMax:      cfg.PerGenerationMax,
			DailyAlertThreshold:   cfg.AlertThresholds.Daily,
			MonthlyAlertThreshold: cfg.AlertThresholds.Monthly,
		},
		days:       make(map[string]*aggregate),
		months:     make(map[string]*aggregate),
		providers:  make(map[string]*providerSpend),
		openAlerts: make(map[string]string),
		now:        time.Now,
	}

	t.restore()
	return t
}

// restore rebuilds aggregates, the persisted budget, and the open-alert
// dedupe set from the storage backend.
func (t *Tracker) restore() {
	if t.store == nil {
		return
	}

	ctx := context.Background()

	if budget, err := t.store.LoadBudget(ctx); err != nil {
		t.logger.Error("failed to restore budget", "error", err)
	} else if budget != nil {
		t.budget = *budget
	}

	records, err := t.store.QueryRecords(ctx, storage.RecordFilter{})
	if err != nil {
		t.logger.Error("failed to restore cost records", "error", err)
	} else {
		for _, r := range records {
			t.applyLocked(Generation{
				ProviderID:   r.ProviderID,
				Model:        r.Model,
				UserID:       r.UserID,
				InputTokens:  r.InputTokens,
				OutputTokens: r.OutputTokens,
				Cost:         r.Cost,
			}, r.Timestamp)
		}
		if len(records) > 0 {
			t.logger.Info("restored cost records", "count", len(records))
		}
	}

	unacked := false
	alerts, err := t.store.ListAlerts(ctx, &unacked)
	if err != nil {
		t.logger.Error("failed to restore alerts", "error", err)
		return
	}
	for _, a := range alerts {
		t.openAlerts[alertKey(a.Type, a.ProviderID, a.Period)] = a.ID
	}
}

// applyLocked folds one generation into the calendar aggregates. The caller
// must hold the write lock (or have exclusive access during restore).
func (t *Tracker) applyLocked(gen Generation, at time.Time) {
	at = at.UTC()
	day := at.Format(dayKeyLayout)
	month := at.Format(monthKeyLayout)

	bucket(t.days, day).add(gen)
	bucket(t.months, month).add(gen)
	t.total.add(gen)

	ps, ok := t.providers[gen.ProviderID]
	if !ok {
		ps = newProviderSpend()
		t.providers[gen.ProviderID] = ps
	}
	bucket(ps.days, day).add(gen)
	bucket(ps.months, month).add(gen)
	ps.total.add(gen)
}

func bucket(m map[string]*aggregate, key string) *aggregate {
	a, ok := m[key]
	if !ok {
		a = &aggregate{}
		m[key] = a
	}
	return a
}

// RecordGenerationCost records the actual cost of a completed generation.
//
// The in-memory aggregates are updated first and stay authoritative;
// storage failures are logged and never propagated to the caller. Alert
// thresholds are evaluated against the post-update spend.
func (t *Tracker) RecordGenerationCost(ctx context.Context, gen Generation) {
	ts := t.now().UTC()

	record := &storage.Record{
		ID:           uuid.NewString(),
		Timestamp:    ts,
		ProviderID:   gen.ProviderID,
		Model:        gen.Model,
		UserID:       gen.UserID,
		InputTokens:  gen.InputTokens,
		OutputTokens: gen.OutputTokens,
		Cost:         gen.Cost,
	}

	t.mu.Lock()
	t.applyLocked(gen, ts)
	alerts := t.evaluateAlertsLocked(gen, ts)
	t.mu.Unlock()

	if t.metrics != nil {
		t.metrics.RecordGeneration(gen.ProviderID, gen.Cost)
		t.updateBudgetGauges()
	}

	if t.store != nil {
		if err := t.store.AppendRecord(ctx, record); err != nil {
			t.logger.Error("failed to persist cost record",
				"provider", gen.ProviderID,
				"cost", gen.Cost,
				"error", err,
			)
		}
	}

	for _, alert := range alerts {
		t.logger.Warn("cost alert raised",
			"type", alert.Type,
			"provider", alert.ProviderID,
			"period", alert.Period,
			"current_cost", alert.CurrentCost,
			"threshold", alert.Threshold,
		)
		if t.metrics != nil {
			t.metrics.RecordAlert(alert.Type)
		}
		if t.store != nil {
			if err := t.store.SaveAlert(ctx, alert); err != nil {
				t.logger.Error("failed to persist alert", "type", alert.Type, "error", err)
			}
		}
	}
}

// WouldExceedBudget reports whether admitting a generation with the given
// estimated cost would push spend strictly past any configured ceiling.
// Spending exactly up to a ceiling is allowed. The returned reason is empty
// when the generation fits.
func (t *Tracker) WouldExceedBudget(estimatedCost float64) (bool, string) {
	t.mu.RLock()
	budget := t.budget
	daily := t.spendLocked(t.days, dayKeyLayout)
	monthly := t.spendLocked(t.months, monthKeyLayout)
	t.mu.RUnlock()

	exceeded, reason := wouldExceed(budget, daily, monthly, estimatedCost)

	if t.metrics != nil {
		t.metrics.RecordBudgetCheck(!exceeded)
	}
	return exceeded, reason
}

func wouldExceed(budget storage.Budget, daily, monthly, estimated float64) (bool, string) {
	if budget.PerGenerationMax > 0 && estimated > budget.PerGenerationMax {
		return true, "estimated cost exceeds per-generation maximum"
	}
	if budget.Daily > 0 && daily+estimated > budget.Daily {
		return true, "daily budget would be exceeded"
	}
	if budget.Monthly > 0 && monthly+estimated > budget.Monthly {
		return true, "monthly budget would be exceeded"
	}
	return false, ""
}

// spendLocked returns the spend in the current calendar bucket. The caller
// must hold at least the read lock.
func (t *Tracker) spendLocked(m map[string]*aggregate, layout string) float64 {
	key := t.now().UTC().Format(layout)
	if a, ok := m[key]; ok {
		return a.cost
	}
	return 0
}

// GetDailyCost returns the spend in the current UTC calendar day.
func (t *Tracker) GetDailyCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.spendLocked(t.days, dayKeyLayout)
}

// GetMonthlyCost returns the spend in the current UTC calendar month.
func (t *Tracker) GetMonthlyCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.spendLocked(t.months, monthKeyLayout)
}

// GetTotalCost returns the all-time spend known to the ledger.
func (t *Tracker) GetTotalCost() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total.cost
}

// GetCostMetrics returns the aggregated spend for one provider over the
// given period. An empty provider ID returns the global aggregate.
func (t *Tracker) GetCostMetrics(providerID string, period Period) (*CostMetrics, error) {
	if !period.Valid() {
		return nil, ErrInvalidPeriod
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if providerID == "" {
		return t.metricsLocked("", t.days, t.months, &t.total, period), nil
	}

	ps, ok := t.providers[providerID]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return t.metricsLocked(providerID, ps.days, ps.months, &ps.total, period), nil
}

// GetAllCostMetrics returns per-provider spend for the given period,
// sorted by provider ID. Providers with no spend in the period report
// zeros.
func (t *Tracker) GetAllCostMetrics(period Period) ([]*CostMetrics, error) {
	if !period.Valid() {
		return nil, ErrInvalidPeriod
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.providers))
	for id := range t.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*CostMetrics, 0, len(ids))
	for _, id := range ids {
		ps := t.providers[id]
		out = append(out, t.metricsLocked(id, ps.days, ps.months, &ps.total, period))
	}
	return out, nil
}

// metricsLocked builds a CostMetrics view. The caller must hold at least
// the read lock.
func (t *Tracker) metricsLocked(providerID string, days, months map[string]*aggregate, total *aggregate, period Period) *CostMetrics {
	m := &CostMetrics{
		ProviderID: providerID,
		Period:     period,
	}

	var a *aggregate
	switch period {
	case PeriodDay:
		m.PeriodKey = t.now().UTC().Format(dayKeyLayout)
		a = days[m.PeriodKey]
	case PeriodMonth:
		m.PeriodKey = t.now().UTC().Format(monthKeyLayout)
		a = months[m.PeriodKey]
	case PeriodAll:
		a = total
	}

	if a != nil {
		m.TotalCost = a.cost
		m.Generations = a.generations
		m.InputTokens = a.inputTokens
		m.OutputTokens = a.outputTokens
		if a.generations > 0 {
			m.AvgCostPerGeneration = a.cost / float64(a.generations)
		}
	}
	return m
}

// GetBudget returns the current ceilings together with the spend so far in
// the current day and month.
func (t *Tracker) GetBudget() BudgetStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return BudgetStatus{
		Daily:                 t.budget.Daily,
		Monthly:               t.budget.Monthly,
		PerGenerationMax:      t.budget.PerGenerationMax,
		DailyAlertThreshold:   t.budget.DailyAlertThreshold,
		MonthlyAlertThreshold: t.budget.MonthlyAlertThreshold,
		DailySpend:            t.spendLocked(t.days, dayKeyLayout),
		MonthlySpend:          t.spendLocked(t.months, monthKeyLayout),
		UpdatedAt:             t.budget.UpdatedAt,
	}
}

// UpdateBudget replaces the budget ceilings at runtime. The update passes
// the same validation as file-based configuration and is persisted so it
// survives restarts.
func (t *Tracker) UpdateBudget(ctx context.Context, update BudgetStatus) error {
	cfg := config.BudgetConfig{
		Daily:            update.Daily,
		Monthly:          update.Monthly,
		PerGenerationMax: update.PerGenerationMax,
		AlertThresholds: config.AlertThresholds{
			Daily:   update.DailyAlertThreshold,
			Monthly: update.MonthlyAlertThreshold,
		},
	}
	if errs := config.ValidateBudget(&cfg); len(errs) > 0 {
		return config.ValidationError{Errors: errs}
	}

	budget := storage.Budget{
		Daily:                 update.Daily,
		Monthly:               update.Monthly,
		PerGenerationMax:      update.PerGenerationMax,
		DailyAlertThreshold:   update.DailyAlertThreshold,
		MonthlyAlertThreshold: update.MonthlyAlertThreshold,
		UpdatedAt:             t.now().UTC(),
	}

	t.mu.Lock()
	t.budget = budget
	t.mu.Unlock()

	if t.metrics != nil {
		t.updateBudgetGauges()
	}

	if t.store != nil {
		if err := t.store.SaveBudget(ctx, &budget); err != nil {
			t.logger.Error("failed to persist budget", "error", err)
		}
	}

	t.logger.Info("budget updated",
		"daily", budget.Daily,
		"monthly", budget.Monthly,
		"per_generation_max", budget.PerGenerationMax,
	)
	return nil
}

// updateBudgetGauges refreshes the budget usage gauges.
func (t *Tracker) updateBudgetGauges() {
	t.mu.RLock()
	budget := t.budget
	daily := t.spendLocked(t.days, dayKeyLayout)
	monthly := t.spendLocked(t.months, monthKeyLayout)
	t.mu.RUnlock()

	if budget.Daily > 0 {
		t.metrics.UpdateBudgetUsage("day", daily/budget.Daily)
	}
	if budget.Monthly > 0 {
		t.metrics.UpdateBudgetUsage("month", monthly/budget.Monthly)
	}
}
