package db

import (
	"context"
	"fmt"
)

// SchemaVersion is the schema version this build creates and expects.
const SchemaVersion = 3

// migration is one additive schema step. Every statement must be safe to
// run against a database that already has the objects it creates.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{
		version: 1,
		name:    "tasks",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				text TEXT NOT NULL,
				completed INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL,
				todo_list_id TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_created_at ON tasks(created_at)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_completed ON tasks(completed)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_todo_list_id ON tasks(todo_list_id)`,
		},
	},
	{
		version: 2,
		name:    "todo_lists",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS todo_lists (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_todo_lists_created_at ON todo_lists(created_at)`,
		},
	},
	{
		// Stores created before lists existed may lack the owner index.
		version: 3,
		name:    "tasks_todo_list_index",
		stmts: []string{
			`CREATE TABLE IF NOT EXISTS tasks (
				id TEXT PRIMARY KEY,
				text TEXT NOT NULL,
				completed INTEGER NOT NULL DEFAULT 0,
				created_at INTEGER NOT NULL,
				updated_at INTEGER NOT NULL,
				todo_list_id TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_tasks_todo_list_id ON tasks(todo_list_id)`,
		},
	},
}

// Version returns the on-disk schema version.
func (db *DB) Version(ctx context.Context) (int, error) {
	var v int
	if err := db.conn.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// migrate brings the schema up to SchemaVersion. A store already at the
// latest version is left untouched.
func (db *DB) migrate(ctx context.Context) error {
	current, err := db.Version(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if current == SchemaVersion {
		return nil
	}
	if current > SchemaVersion {
		return fmt.Errorf("%w: on-disk schema version %d is newer than supported version %d",
			ErrStorageUnavailable, current, SchemaVersion)
	}

	db.upgrading.Store(true)
	defer db.upgrading.Store(false)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("failed to begin migration: %w", err))
	}
	defer tx.Rollback()

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		for _, stmt := range m.stmts {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return classify(fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err))
			}
		}
	}

	// PRAGMA does not accept bound parameters; SchemaVersion is a constant.
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit migration: %w", err))
	}
	return nil
}
