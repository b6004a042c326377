// Package db provides the versioned on-device store for tudu.
//
// The store is an embedded SQLite database (ncruces/go-sqlite3, WASM build)
// holding two collections: todo_lists and tasks. Tasks carry secondary
// indexes on their owning list, their completion flag and creation time;
// lists are indexed by creation time.
//
// Architecture:
//   - Database file: $XDG_DATA_HOME/tudu/tudu.db by default
//   - WAL mode: readers are not blocked by the writer
//   - Schema version: PRAGMA user_version, upgraded by additive steps
//
// Every read and write runs inside a scoped transaction (View / Update).
// A transaction body that returns an error or panics is rolled back, so an
// operation is either fully visible or not at all.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

var (
	// ErrStorageUnavailable is returned when the engine cannot be opened
	// or the on-disk schema is newer than this build understands.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrInvalidState is returned while the store is being upgraded or
	// another connection holds a conflicting lock. It is transient.
	ErrInvalidState = errors.New("store is in an invalid state")
)

// DB wraps the SQLite connection pool with schema versioning.
type DB struct {
	conn      *sql.DB
	path      string
	upgrading atomic.Bool
}

// Open opens (creating if needed) the store at path and migrates it to
// SchemaVersion.
//
// The caller MUST call Close() when done.
//
// Example:
//
//	store, err := db.Open(filepath.Join(dir, "tudu.db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func Open(path string) (*DB, error) {
	return OpenContext(context.Background(), path)
}

// OpenContext is Open with context support.
func OpenContext(ctx context.Context, path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: failed to create database directory: %w", ErrStorageUnavailable, err)
	}

	// Pragmas in the DSN apply to every pooled connection. Write
	// transactions take the lock up front so they wait on busy_timeout
	// instead of failing on upgrade.
	dsn := "file:" + path + "?_pragma=busy_timeout(2000)&_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_txlock=immediate"
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrStorageUnavailable, err)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrStorageUnavailable, err)
	}

	conn.SetMaxOpenConns(8)
	conn.SetMaxIdleConns(4)
	conn.SetConnMaxLifetime(5 * time.Minute)

	db := &DB{
		conn: conn,
		path: path,
	}

	if err := db.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// View runs fn in a transaction that is always rolled back.
func (db *DB) View(ctx context.Context, fn func(*Tx) error) error {
	return db.run(ctx, fn, false)
}

// Update runs fn in a transaction that commits if fn returns nil.
func (db *DB) Update(ctx context.Context, fn func(*Tx) error) error {
	return db.run(ctx, fn, true)
}

func (db *DB) run(ctx context.Context, fn func(*Tx) error, commit bool) error {
	if db.upgrading.Load() {
		return ErrInvalidState
	}
	if db.conn == nil {
		return fmt.Errorf("%w: database is closed", ErrStorageUnavailable)
	}

	tx, err := db.conn.BeginTx(ctx, &sql.TxOptions{ReadOnly: !commit})
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}
	// Rollback after Commit is a no-op; it also runs when fn panics.
	defer tx.Rollback()

	if err := fn(&Tx{tx: tx, ctx: ctx}); err != nil {
		return classify(err)
	}

	if !commit {
		return nil
	}
	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

// classify maps SQLite lock contention onto ErrInvalidState.
func classify(err error) error {
	if errors.Is(err, ErrInvalidState) {
		return err
	}
	if errors.Is(err, sqlite3.BUSY) || errors.Is(err, sqlite3.LOCKED) {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	return err
}

// Tx is a scoped transaction over the lists and tasks collections.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
}
