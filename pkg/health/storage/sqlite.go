package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for persistence.
// This backend provides durable storage and is suitable for single-instance
// deployments where health state must survive restarts.
//
// SQLiteBackend uses a write-ahead log (WAL) for better concurrent performance
// and periodic checkpointing to balance write performance with durability.
type SQLiteBackend struct {
	db               *sql.DB
	dbPath           string
	snapshotInterval time.Duration
	done             chan struct{}
	closeOnce        sync.Once

	// preparedStatements contains pre-compiled SQL statements for performance
	saveStmt    *sql.Stmt
	loadStmt    *sql.Stmt
	listStmt    *sql.Stmt
	deleteStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// SnapshotInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	SnapshotInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a new SQLite storage backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a new SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.SnapshotInterval == 0 {
		cfg.SnapshotInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:               db,
		dbPath:           cfg.DBPath,
		snapshotInterval: cfg.SnapshotInterval,
		done:             make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS provider_health (
		provider_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		last_updated INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_health_last_updated ON provider_health(last_updated);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements pre-compiles the SQL statements used on the hot path.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO provider_health (provider_id, state, last_updated, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(provider_id) DO UPDATE SET
			state = excluded.state,
			last_updated = excluded.last_updated`)
	if err != nil {
		return fmt.Errorf("prepare save: %w", err)
	}

	s.loadStmt, err = s.db.Prepare(`
		SELECT state FROM provider_health WHERE provider_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare load: %w", err)
	}

	s.listStmt, err = s.db.Prepare(`
		SELECT state FROM provider_health ORDER BY provider_id`)
	if err != nil {
		return fmt.Errorf("prepare list: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM provider_health WHERE provider_id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM provider_health WHERE last_updated < ?`)
	if err != nil {
		return fmt.Errorf("prepare cleanup: %w", err)
	}

	return nil
}

// Save persists the health state for a provider.
func (s *SQLiteBackend) Save(ctx context.Context, state *ProviderState) error {
	if state == nil {
		return fmt.Errorf("state cannot be nil")
	}
	if state.ProviderID == "" {
		return fmt.Errorf("provider id cannot be empty")
	}

	now := time.Now()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	if state.LastUpdated.IsZero() {
		state.LastUpdated = now
	}

	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	_, err = s.saveStmt.ExecContext(ctx,
		state.ProviderID,
		string(payload),
		state.LastUpdated.UnixNano(),
		state.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	return nil
}

// Load retrieves the health state for a provider.
func (s *SQLiteBackend) Load(ctx context.Context, providerID string) (*ProviderState, error) {
	if providerID == "" {
		return nil, fmt.Errorf("provider id cannot be empty")
	}

	var payload string
	err := s.loadStmt.QueryRowContext(ctx, providerID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var state ProviderState
	if err := json.Unmarshal([]byte(payload), &state); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return &state, nil
}

// List returns the health states of all known providers.
func (s *SQLiteBackend) List(ctx context.Context) ([]*ProviderState, error) {
	rows, err := s.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list states: %w", err)
	}
	defer rows.Close()

	var states []*ProviderState
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}

		var state ProviderState
		if err := json.Unmarshal([]byte(payload), &state); err != nil {
			return nil, fmt.Errorf("failed to decode state: %w", err)
		}
		states = append(states, &state)
	}
	if states == nil {
		states = []*ProviderState{}
	}
	return states, rows.Err()
}

// Delete removes the health state for a provider.
func (s *SQLiteBackend) Delete(ctx context.Context, providerID string) error {
	if providerID == "" {
		return fmt.Errorf("provider id cannot be empty")
	}

	if _, err := s.deleteStmt.ExecContext(ctx, providerID); err != nil {
		return fmt.Errorf("failed to delete state: %w", err)
	}
	return nil
}

// Cleanup removes entries not updated since the given time.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	res, err := s.cleanupStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup states: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(affected), nil
}

// Close stops the checkpoint loop and closes the database.
func (s *SQLiteBackend) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.db.Close()
	})
	return err
}

// checkpointLoop periodically checkpoints the WAL to bound its size.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		case <-s.done:
			return
		}
	}
}
