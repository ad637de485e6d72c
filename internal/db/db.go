// Package db provides SQLite storage for the step log.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dbddv01/MicroGptSequence/internal/logging"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite connection.
type DB struct {
	*sql.DB
	path   string
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path.
func Open(path string) (*DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	return open(dsn, path)
}

// OpenInMemory opens a private in-memory database. Used by tests.
func OpenInMemory() (*DB, error) {
	return open(":memory:", ":memory:")
}

func open(dsn, path string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite serializes writers; one connection also keeps :memory: stable.
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &DB{
		DB:     conn,
		path:   path,
		logger: logging.Component("db"),
	}, nil
}

// Path returns the database path.
func (d *DB) Path() string {
	return d.path
}

// Migrate applies all pending migrations.
func (d *DB) Migrate(ctx context.Context) error {
	_, err := d.MigrateUp(ctx)
	return err
}

// MigrateUp applies pending migrations and returns how many ran.
func (d *DB) MigrateUp(ctx context.Context) (int, error) {
	if _, err := d.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		)
	`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}

	var current int
	if err := d.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_version`).Scan(&current); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := d.BeginTx(ctx, nil)
		if err != nil {
			return applied, fmt.Errorf("begin migration %d: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx, m.up); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("apply migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (?)`, m.version); err != nil {
			tx.Rollback()
			return applied, fmt.Errorf("record migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, fmt.Errorf("commit migration %d: %w", m.version, err)
		}

		d.logger.Debug().Int("version", m.version).Str("name", m.name).Msg("migration applied")
		applied++
	}

	return applied, nil
}
