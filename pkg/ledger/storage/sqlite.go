package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteConfig contains configuration for the SQLite ledger backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/ledger.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS cost_records (
	id            TEXT PRIMARY KEY,
	timestamp     DATETIME NOT NULL,
	provider_id   TEXT NOT NULL,
	model         TEXT,
	user_id       TEXT,
	input_tokens  INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost          REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cost_records_timestamp ON cost_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_cost_records_provider ON cost_records(provider_id, timestamp);

CREATE TABLE IF NOT EXISTS cost_alerts (
	id           TEXT PRIMARY KEY,
	type         TEXT NOT NULL,
	provider_id  TEXT NOT NULL DEFAULT '',
	message      TEXT NOT NULL,
	current_cost REAL NOT NULL,
	threshold    REAL NOT NULL,
	period       TEXT NOT NULL,
	timestamp    DATETIME NOT NULL,
	acknowledged INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cost_alerts_timestamp ON cost_alerts(timestamp);
CREATE INDEX IF NOT EXISTS idx_cost_alerts_acknowledged ON cost_alerts(acknowledged);

CREATE TABLE IF NOT EXISTS budget (
	id                      INTEGER PRIMARY KEY CHECK (id = 1),
	daily                   REAL NOT NULL DEFAULT 0,
	monthly                 REAL NOT NULL DEFAULT 0,
	per_generation_max      REAL NOT NULL DEFAULT 0,
	daily_alert_threshold   REAL NOT NULL DEFAULT 0,
	monthly_alert_threshold REAL NOT NULL DEFAULT 0,
	updated_at              DATETIME NOT NULL
);
`

// SQLiteBackend implements Backend using SQLite via mattn/go-sqlite3.
type SQLiteBackend struct {
	db            *sql.DB
	config        *SQLiteConfig
	preparedStmts map[string]*sql.Stmt
	mu            sync.RWMutex
	logger        *slog.Logger
	closeOnce     sync.Once
}

// NewSQLiteBackend creates a new SQLite ledger backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteBackend(config *SQLiteConfig) (*SQLiteBackend, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "ledger.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	b := &SQLiteBackend{
		db:            db,
		config:        config,
		preparedStmts: make(map[string]*sql.Stmt),
		logger:        logger,
	}

	if err := b.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite ledger storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
		"max_open_conns", config.MaxOpenConns,
	)

	return b, nil
}

// initialize sets up the database schema and enables WAL mode.
func (b *SQLiteBackend) initialize() error {
	if b.config.WALMode {
		if _, err := b.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return fmt.Errorf("enabling WAL mode: %w", err)
		}
	}

	busyTimeoutMs := b.config.BusyTimeout.Milliseconds()
	if _, err := b.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := b.db.Exec(ledgerSchema); err != nil {
		return fmt.Errorf("creating ledger schema: %w", err)
	}

	if err := b.prepareStatements(); err != nil {
		return err
	}

	return nil
}

// prepareStatements pre-compiles the hot-path queries.
func (b *SQLiteBackend) prepareStatements() error {
	statements := map[string]string{
		"append_record": `
			INSERT INTO cost_records (id, timestamp, provider_id, model, user_id, input_tokens, output_tokens, cost)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		"prune_records": `DELETE FROM cost_records WHERE timestamp < ?`,
		"save_alert": `
			INSERT INTO cost_alerts (id, type, provider_id, message, current_cost, threshold, period, timestamp, acknowledged)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		"get_alert": `
			SELECT id, type, provider_id, message, current_cost, threshold, period, timestamp, acknowledged
			FROM cost_alerts WHERE id = ?`,
		"update_alert": `
			UPDATE cost_alerts
			SET type = ?, provider_id = ?, message = ?, current_cost = ?, threshold = ?, period = ?, timestamp = ?, acknowledged = ?
			WHERE id = ?`,
		"save_budget": `
			INSERT INTO budget (id, daily, monthly, per_generation_max, daily_alert_threshold, monthly_alert_threshold, updated_at)
			VALUES (1, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				daily = excluded.daily,
				monthly = excluded.monthly,
				per_generation_max = excluded.per_generation_max,
				daily_alert_threshold = excluded.daily_alert_threshold,
				monthly_alert_threshold = excluded.monthly_alert_threshold,
				updated_at = excluded.updated_at`,
		"load_budget": `
			SELECT daily, monthly, per_generation_max, daily_alert_threshold, monthly_alert_threshold, updated_at
			FROM budget WHERE id = 1`,
	}

	for name, query := range statements {
		stmt, err := b.db.Prepare(query)
		if err != nil {
			return fmt.Errorf("preparing statement %s: %w", name, err)
		}
		b.preparedStmts[name] = stmt
	}

	return nil
}

// AppendRecord persists an immutable cost record.
func (b *SQLiteBackend) AppendRecord(ctx context.Context, record *Record) error {
	b.mu.RLock()
	stmt := b.preparedStmts["append_record"]
	b.mu.RUnlock()

	_, err := stmt.ExecContext(ctx,
		record.ID,
		record.Timestamp.UTC(),
		record.ProviderID,
		record.Model,
		record.UserID,
		record.InputTokens,
		record.OutputTokens,
		record.Cost,
	)
	if err != nil {
		return fmt.Errorf("appending cost record: %w", err)
	}
	return nil
}

// QueryRecords returns cost records matching the filter, ordered by
// timestamp ascending.
func (b *SQLiteBackend) QueryRecords(ctx context.Context, filter RecordFilter) ([]*Record, error) {
	var conditions []string
	var args []interface{}

	if filter.ProviderID != "" {
		conditions = append(conditions, "provider_id = ?")
		args = append(args, filter.ProviderID)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "timestamp < ?")
		args = append(args, filter.Until.UTC())
	}

	query := "SELECT id, timestamp, provider_id, model, user_id, input_tokens, output_tokens, cost FROM cost_records"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying cost records: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Timestamp, &r.ProviderID, &r.Model, &r.UserID,
			&r.InputTokens, &r.OutputTokens, &r.Cost); err != nil {
			return nil, fmt.Errorf("scanning cost record: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cost records: %w", err)
	}

	return records, nil
}

// PruneRecords removes cost records older than the given time.
func (b *SQLiteBackend) PruneRecords(ctx context.Context, olderThan time.Time) (int, error) {
	b.mu.RLock()
	stmt := b.preparedStmts["prune_records"]
	b.mu.RUnlock()

	result, err := stmt.ExecContext(ctx, olderThan.UTC())
	if err != nil {
		return 0, fmt.Errorf("pruning cost records: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting pruned records: %w", err)
	}

	if affected > 0 {
		b.logger.Info("pruned cost records", "count", affected, "older_than", olderThan)
	}

	return int(affected), nil
}

// SaveAlert persists a new alert.
func (b *SQLiteBackend) SaveAlert(ctx context.Context, alert *Alert) error {
	b.mu.RLock()
	stmt := b.preparedStmts["save_alert"]
	b.mu.RUnlock()

	_, err := stmt.ExecContext(ctx,
		alert.ID,
		alert.Type,
		alert.ProviderID,
		alert.Message,
		alert.CurrentCost,
		alert.Threshold,
		alert.Period,
		alert.Timestamp.UTC(),
		alert.Acknowledged,
	)
	if err != nil {
		return fmt.Errorf("saving alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by ID. Returns nil if not found.
func (b *SQLiteBackend) GetAlert(ctx context.Context, id string) (*Alert, error) {
	b.mu.RLock()
	stmt := b.preparedStmts["get_alert"]
	b.mu.RUnlock()

	var a Alert
	err := stmt.QueryRowContext(ctx, id).Scan(
		&a.ID, &a.Type, &a.ProviderID, &a.Message,
		&a.CurrentCost, &a.Threshold, &a.Period, &a.Timestamp, &a.Acknowledged,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting alert: %w", err)
	}
	a.Timestamp = a.Timestamp.UTC()
	return &a, nil
}

// ListAlerts returns alerts ordered by timestamp descending.
func (b *SQLiteBackend) ListAlerts(ctx context.Context, acknowledged *bool) ([]*Alert, error) {
	query := `
		SELECT id, type, provider_id, message, current_cost, threshold, period, timestamp, acknowledged
		FROM cost_alerts`
	var args []interface{}
	if acknowledged != nil {
		query += " WHERE acknowledged = ?"
		args = append(args, *acknowledged)
	}
	query += " ORDER BY timestamp DESC"

	rows, err := b.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]*Alert, 0)
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.Type, &a.ProviderID, &a.Message,
			&a.CurrentCost, &a.Threshold, &a.Period, &a.Timestamp, &a.Acknowledged); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		a.Timestamp = a.Timestamp.UTC()
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating alerts: %w", err)
	}

	return alerts, nil
}

// UpdateAlert replaces a stored alert.
func (b *SQLiteBackend) UpdateAlert(ctx context.Context, alert *Alert) error {
	b.mu.RLock()
	stmt := b.preparedStmts["update_alert"]
	b.mu.RUnlock()

	result, err := stmt.ExecContext(ctx,
		alert.Type,
		alert.ProviderID,
		alert.Message,
		alert.CurrentCost,
		alert.Threshold,
		alert.Period,
		alert.Timestamp.UTC(),
		alert.Acknowledged,
		alert.ID,
	)
	if err != nil {
		return fmt.Errorf("updating alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting updated alerts: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert %s not found", alert.ID)
	}

	return nil
}

// SaveBudget persists the budget singleton.
func (b *SQLiteBackend) SaveBudget(ctx context.Context, budget *Budget) error {
	b.mu.RLock()
	stmt := b.preparedStmts["save_budget"]
	b.mu.RUnlock()

	_, err := stmt.ExecContext(ctx,
		budget.Daily,
		budget.Monthly,
		budget.PerGenerationMax,
		budget.DailyAlertThreshold,
		budget.MonthlyAlertThreshold,
		budget.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving budget: %w", err)
	}
	return nil
}

// LoadBudget retrieves the budget singleton. Returns nil if never saved.
func (b *SQLiteBackend) LoadBudget(ctx context.Context) (*Budget, error) {
	b.mu.RLock()
	stmt := b.preparedStmts["load_budget"]
	b.mu.RUnlock()

	var budget Budget
	err := stmt.QueryRowContext(ctx).Scan(
		&budget.Daily,
		&budget.Monthly,
		&budget.PerGenerationMax,
		&budget.DailyAlertThreshold,
		&budget.MonthlyAlertThreshold,
		&budget.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading budget: %w", err)
	}
	budget.UpdatedAt = budget.UpdatedAt.UTC()
	return &budget, nil
}

// Close closes the database connection and prepared statements.
func (b *SQLiteBackend) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		for name, stmt := range b.preparedStmts {
			if err := stmt.Close(); err != nil {
				b.logger.Warn("failed to close prepared statement", "name", name, "error", err)
			}
		}

		closeErr = b.db.Close()
	})
	return closeErr
}
