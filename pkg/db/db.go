// Package db opens the local sqlite database that holds the clip cache, the
// flow run history and persisted setting overrides.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Register driver
)

// TimeFormat matches SQLite's CURRENT_TIMESTAMP.
const TimeFormat = "2006-01-02 15:04:05"

// DB is the application database.
type DB struct {
	*sql.DB
}

// schema holds one entry per schema version; user_version records how many
// have been applied.
var schema = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT,
			finished_at TEXT,
			last_stage TEXT,
			outcome TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	},
	{
		`ALTER TABLE runs ADD COLUMN lines INTEGER DEFAULT 0`,
	},
}

// Init opens the database at path, creating its directory, and brings the
// schema up to date.
func Init(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	// sqlite serializes writers anyway; one connection keeps SQLITE_BUSY away
	conn.SetMaxOpenConns(1)

	d := &DB{conn}
	if err := d.migrate(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Version returns the applied schema version.
func (d *DB) Version(ctx context.Context) (int, error) {
	var v int
	err := d.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v)
	return v, err
}

func (d *DB) migrate(ctx context.Context) error {
	current, err := d.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	for v := current; v < len(schema); v++ {
		tx, err := d.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		for _, stmt := range schema[v] {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d failed: %w", v+1, err)
			}
		}
		// PRAGMA does not take bind parameters
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", v+1)); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d failed: %w", v+1, err)
		}
	}
	return nil
}

// PruneCache removes clips stored more than olderThan ago.
func (d *DB) PruneCache(ctx context.Context, olderThan time.Duration) (int64, error) {
	return d.pruneBefore(ctx, "cache", "created_at", olderThan)
}

// PruneRuns removes runs started more than olderThan ago.
func (d *DB) PruneRuns(ctx context.Context, olderThan time.Duration) (int64, error) {
	return d.pruneBefore(ctx, "runs", "started_at", olderThan)
}

func (d *DB) pruneBefore(ctx context.Context, table, column string, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan).UTC().Format(TimeFormat)
	res, err := d.ExecContext(ctx, "DELETE FROM "+table+" WHERE "+column+" < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
