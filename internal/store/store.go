// Package store persists the LLDP enablement flag per interface so that
// administrative disables survive a daemon restart.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed interface-enablement registry.
type Store struct {
	db *sql.DB
}

// New creates a store at the given path, creating parent directories as
// needed.
func New(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// NewInMemory creates an in-memory store for testing.
func NewInMemory() (*Store, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	// Every pooled connection would get its own empty memory database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS interfaces (
		id TEXT PRIMARY KEY,
		enabled INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// EnabledInterfaces returns the IDs of all interfaces currently flagged
// enabled.
func (s *Store) EnabledInterfaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM interfaces WHERE enabled = 1 ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// EnableInterfaces upserts the given interface IDs as enabled. An
// interface never seen before gets a row created.
func (s *Store) EnableInterfaces(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Format(time.RFC3339)
	for _, id := range ids {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO interfaces (id, enabled, updated_at) VALUES (?, 1, ?)
			ON CONFLICT(id) DO UPDATE SET enabled = 1, updated_at = excluded.updated_at
		`, id, now)
		if err != nil {
			return fmt.Errorf("failed to enable interface %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// DisableInterfaces marks the given interface IDs disabled. Only
// existing rows are updated; an unknown ID is left unrecorded so the
// default enablement policy applies to it on next sight.
func (s *Store) DisableInterfaces(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().Format(time.RFC3339)
	for _, id := range ids {
		_, err := tx.ExecContext(ctx,
			"UPDATE interfaces SET enabled = 0, updated_at = ? WHERE id = ?",
			now, id)
		if err != nil {
			return fmt.Errorf("failed to disable interface %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// DeleteInterfaces removes the rows for interfaces that no longer exist
// in the topology.
func (s *Store) DeleteInterfaces(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM interfaces WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete interface %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// IsEnabled reports the stored enablement flag for one interface. ok is
// false when the interface has no row.
func (s *Store) IsEnabled(ctx context.Context, id string) (enabled, ok bool, err error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT enabled FROM interfaces WHERE id = ?", id)

	var flag int
	if err := row.Scan(&flag); err != nil {
		if err == sql.ErrNoRows {
			return false, false, nil
		}
		return false, false, err
	}
	return flag == 1, true, nil
}
