package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a SQLite implementation of Store[S].
//
// It stores each instance record as one JSON row in a single table, so the
// instance and its history are written in one statement and the atomicity
// requirement holds by construction.
//
// Designed for:
//   - Development and testing with zero setup
//   - Single-process deployments that need instances to survive restarts
//   - Prototyping before migrating to a shared database
//
// WAL mode is enabled so readers are not blocked by the single writer.
//
// Type parameter S is the record type to persist (must be JSON-serializable).
type SQLiteStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// NewSQLiteStore opens (and if necessary creates) a SQLite-backed store at
// the given path. Use ":memory:" for an in-memory database in tests.
//
//	st, err := store.NewSQLiteStore[saga.Record]("./workflows.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer st.Close()
func NewSQLiteStore[S any](path string) (*SQLiteStore[S], error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}

	// SQLite supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	table := `
		CREATE TABLE IF NOT EXISTS workflow_instances (
			id TEXT NOT NULL PRIMARY KEY,
			record TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := db.ExecContext(ctx, table); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create workflow_instances table: %w", err)
	}

	return &SQLiteStore[S]{db: db, path: path}, nil
}

// Save upserts the record for id as a single JSON row.
func (s *SQLiteStore[S]) Save(ctx context.Context, id string, record S) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (id, record)
		VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET
			record = excluded.record,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.ExecContext(ctx, query, id, string(data)); err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}
	return nil
}

// Load retrieves and decodes the record for id. Returns ErrNotFound for
// unknown ids.
func (s *SQLiteStore[S]) Load(ctx context.Context, id string) (S, error) {
	var zero S
	if err := s.ensureOpen(); err != nil {
		return zero, err
	}

	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT record FROM workflow_instances WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("failed to load instance: %w", err)
	}

	var record S
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return zero, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return record, nil
}

// Delete removes the row for id. Unknown ids are a no-op.
func (s *SQLiteStore[S]) Delete(ctx context.Context, id string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM workflow_instances WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	return nil
}

// Close closes the database connection. Calling Close twice is a no-op.
func (s *SQLiteStore[S]) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Ping verifies the database connection is alive.
func (s *SQLiteStore[S]) Ping(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.db.PingContext(ctx)
}

// Path returns the database file path.
func (s *SQLiteStore[S]) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *SQLiteStore[S]) ensureOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
