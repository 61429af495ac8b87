// Package db owns the SQLite connection and the on-disk schema.
package db

import (
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/mediastash/mediastash/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersion is bumped whenever the table layout changes. An
// incompatible on-disk layout is dropped and recreated, not migrated:
// everything in the store is re-derivable from the original exports.
const SchemaVersion = 1

// FileName is the database file name inside the data directory.
const FileName = "mediastash.db"

// DefaultPath returns the database path inside the configured data
// directory.
func DefaultPath() (string, error) {
	dataDir, err := config.GetDataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, FileName), nil
}

// Open opens (creating if needed) the database at path and ensures the
// schema is current.
func Open(path string) (*sql.DB, error) {
	d, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Pragmas for performance + concurrency.
	// WAL allows concurrent readers while a writer is active.
	// busy_timeout reduces SQLITE_BUSY errors under contention.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := d.Exec(pragma); err != nil {
			d.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if err := initSchema(d); err != nil {
		d.Close()
		return nil, err
	}

	return d, nil
}

func initSchema(d *sql.DB) error {
	if _, err := d.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	var version int
	err := d.QueryRow("SELECT version FROM schema_version").Scan(&version)
	switch {
	case err == sql.ErrNoRows:
		// Fresh database.
		if _, err := d.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case version == SchemaVersion:
		return nil
	}

	return recreate(d)
}

// recreate drops every table and rebuilds the current schema.
func recreate(d *sql.DB) error {
	tables := []string{
		"context_messages",
		"media",
		"conversation_participants",
		"senders",
		"conversations",
		"schema_version",
	}
	for _, table := range tables {
		if _, err := d.Exec("DROP TABLE IF EXISTS " + table); err != nil {
			return fmt.Errorf("failed to drop %s: %w", table, err)
		}
	}
	if _, err := d.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	if _, err := d.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}
