// Package database manages the single SQLite store this service keeps:
// scheduled-job execution history (internal/queue.History). A personal,
// single-user backend has no use for the teacher's multi-database,
// multi-profile architecture, so this is trimmed to one profile tuned for
// an ephemeral, frequently-rewritten table.
package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure Go SQLite driver, no CGo dependency
)

//go:embed schemas/*.sql
var schemaFiles embed.FS

// DB wraps a SQLite connection with WAL mode, a bounded connection pool,
// and embedded-schema migration.
type DB struct {
	conn *sql.DB
	path string
}

// Config holds the settings needed to open the job-history database.
type Config struct {
	// Path is the database file path, or a "file:" URI for in-memory tests.
	Path string
}

// New opens (creating if necessary) the job-history database.
func New(cfg Config) (*DB, error) {
	if !strings.HasPrefix(cfg.Path, "file:") {
		absPath, err := filepath.Abs(cfg.Path)
		if err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
		if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		cfg.Path = absPath
	}

	connStr := cfg.Path +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=synchronous(NORMAL)" +
		"&_pragma=busy_timeout(5000)"

	conn, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(24 * time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{conn: conn, path: cfg.Path}, nil
}

// Migrate applies the embedded job_history schema. Idempotent: re-running
// against an already-migrated database is a no-op.
func (db *DB) Migrate() error {
	content, err := schemaFiles.ReadFile("schemas/job_history.sql")
	if err != nil {
		return fmt.Errorf("read embedded schema: %w", err)
	}
	if _, err := db.conn.Exec(string(content)); err != nil {
		return fmt.Errorf("apply job_history schema: %w", err)
	}
	return nil
}

// Conn returns the underlying *sql.DB, for internal/queue.NewHistory.
func (db *DB) Conn() *sql.DB { return db.conn }

// Path returns the resolved database file path.
func (db *DB) Path() string { return db.path }

// Close closes the database connection.
func (db *DB) Close() error { return db.conn.Close() }

// HealthCheck pings the connection and runs PRAGMA integrity_check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.conn.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}
	var result string
	if err := db.conn.QueryRowContext(ctx, "PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check query failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("integrity check failed: %s", result)
	}
	return nil
}

// WALCheckpoint forces a WAL checkpoint so the -wal file doesn't grow
// unbounded across a long-running process.
func (db *DB) WALCheckpoint() error {
	_, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err != nil {
		return fmt.Errorf("wal checkpoint failed: %w", err)
	}
	return nil
}
