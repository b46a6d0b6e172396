package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hookly/helios/pkg/ledger/storage"
)

// Config contains configuration for the retention pruner.
type Config struct {
	// RetentionDays is the number of days to retain cost records.
	// 0 means keep records forever (no pruning).
	RetentionDays int

	// PruneSchedule is a cron expression for scheduling pruning.
	// Example: "0 3 * * *" (daily at 3 AM). Empty disables the scheduler.
	PruneSchedule string
}

// DefaultConfig returns the default retention configuration.
func DefaultConfig() *Config {
	return &Config{
		RetentionDays: 90,
		PruneSchedule: "0 3 * * *",
	}
}

// Pruner enforces the retention window on cost records.
type Pruner struct {
	store     storage.Backend
	config    *Config
	logger    *slog.Logger
	scheduler *Scheduler

	// now is replaceable for tests.
	now func() time.Time
}

// NewPruner creates a new retention pruner.
func NewPruner(store storage.Backend, config *Config) *Pruner {
	if config == nil {
		config = DefaultConfig()
	}

	p := &Pruner{
		store:  store,
		config: config,
		logger: slog.Default().With("component", "ledger.retention"),
		now:    time.Now,
	}
	p.scheduler = NewScheduler(p)
	return p
}

// Prune deletes cost records older than the retention window and returns
// the number of records deleted. With RetentionDays of 0 it is a no-op.
func (p *Pruner) Prune(ctx context.Context) (int, error) {
	if p.config.RetentionDays <= 0 {
		return 0, nil
	}

	cutoff := p.now().UTC().AddDate(0, 0, -p.config.RetentionDays)

	deleted, err := p.store.PruneRecords(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning cost records: %w", err)
	}

	if deleted > 0 {
		p.logger.Info("pruned cost records",
			"deleted_count", deleted,
			"retention_days", p.config.RetentionDays,
			"cutoff", cutoff,
		)
	} else {
		p.logger.Debug("no cost records pruned",
			"retention_days", p.config.RetentionDays,
		)
	}

	return deleted, nil
}

// Start starts the automatic pruning scheduler.
func (p *Pruner) Start(ctx context.Context) error {
	return p.scheduler.Start(ctx)
}

// Stop stops the automatic pruning scheduler.
func (p *Pruner) Stop() {
	p.scheduler.Stop()
}

// NextPruning returns the time of the next scheduled pruning.
func (p *Pruner) NextPruning() *time.Time {
	return p.scheduler.NextRun()
}
