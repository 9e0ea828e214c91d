package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a MySQL/MariaDB implementation of Store[S].
//
// Designed for:
//   - Production deployments requiring persistence
//   - Instances that must survive process restarts
//   - Audit trails over the instance table
//
// Each instance record is stored as one JSON row, so the instance and its
// history are replaced in a single statement and remain atomic.
//
// Note that the engine still serializes operations per instance in-process;
// a shared database does not by itself make multiple engine processes safe
// (distributed coordination is out of scope).
//
// Type parameter S is the record type to persist (must be JSON-serializable).
type MySQLStore[S any] struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewMySQLStore creates a MySQL-backed store.
//
// The DSN format is the go-sql-driver one:
//
//	user:password@tcp(localhost:3306)/workflows?parseTime=true
//
// Never hardcode credentials; read the DSN from the environment:
//
//	st, err := store.NewMySQLStore[saga.Record](os.Getenv("MYSQL_DSN"))
func NewMySQLStore[S any](dsn string) (*MySQLStore[S], error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	table := `
		CREATE TABLE IF NOT EXISTS workflow_instances (
			id VARCHAR(255) NOT NULL PRIMARY KEY,
			record JSON NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci
	`
	if _, err := db.ExecContext(ctx, table); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create workflow_instances table: %w", err)
	}

	return &MySQLStore[S]{db: db}, nil
}

// Save upserts the record for id as a single JSON row.
func (m *MySQLStore[S]) Save(ctx context.Context, id string, record S) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO workflow_instances (id, record)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE record = VALUES(record)
	`
	if _, err := m.db.ExecContext(ctx, query, id, string(data)); err != nil {
		return fmt.Errorf("failed to save instance: %w", err)
	}
	return nil
}

// Load retrieves and decodes the record for id. Returns ErrNotFound for
// unknown ids.
func (m *MySQLStore[S]) Load(ctx context.Context, id string) (S, error) {
	var zero S
	if err := m.ensureOpen(); err != nil {
		return zero, err
	}

	var data string
	err := m.db.QueryRowContext(ctx,
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
func (m *MySQLStore[S]) Delete(ctx context.Context, id string) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	if _, err := m.db.ExecContext(ctx,
		"DELETE FROM workflow_instances WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete instance: %w", err)
	}
	return nil
}

// Close closes the database connection. Calling Close twice is a no-op.
func (m *MySQLStore[S]) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return m.db.Close()
}

// Ping verifies the database connection is alive.
func (m *MySQLStore[S]) Ping(ctx context.Context) error {
	if err := m.ensureOpen(); err != nil {
		return err
	}
	return m.db.PingContext(ctx)
}

func (m *MySQLStore[S]) ensureOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
