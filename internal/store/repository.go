package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tudu-app/tudu/internal/store/db"
	"github.com/tudu-app/tudu/internal/store/schema"
)

// ErrNotFound is returned by lookups for an id that does not exist.
// Update and delete paths never return it.
var ErrNotFound = errors.New("not found")

// ErrUnknownList is returned when a task is written for a list that is not
// in the store.
var ErrUnknownList = errors.New("todo list does not exist")

// Config holds Repository configuration.
type Config struct {
	// RetryDelay is the fixed wait between read attempts on ErrInvalidState.
	RetryDelay time.Duration

	// MaxRetries bounds the number of retries after the first attempt.
	MaxRetries uint64

	// Logger for repository messages (nil = default logger)
	Logger *log.Logger
}

// DefaultConfig returns the default repository configuration.
func DefaultConfig() Config {
	return Config{
		RetryDelay: 500 * time.Millisecond,
		MaxRetries: 3,
	}
}

// Stats summarizes the store contents.
type Stats struct {
	Path          string
	SchemaVersion int
	Lists         int
	Tasks         int
	Completed     int
}

// Repository provides typed operations over the versioned store.
type Repository struct {
	db     *db.DB
	config Config
	logger *log.Logger

	// view and update default to the db methods; tests swap them.
	view   func(context.Context, func(*db.Tx) error) error
	update func(context.Context, func(*db.Tx) error) error
}

// New creates a Repository over an open store.
//
// Example:
//
//	database, err := db.Open(path)
//	if err != nil {
//	    return err
//	}
//	repo := store.New(database, store.DefaultConfig())
//	lists, err := repo.Lists(ctx)
func New(database *db.DB, config Config) *Repository {
	logger := config.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[store] ", log.LstdFlags)
	}
	return &Repository{
		db:     database,
		config: config,
		logger: logger,
		view:   database.View,
		update: database.Update,
	}
}

// read runs fn in a read transaction, retrying on ErrInvalidState only.
func (r *Repository) read(ctx context.Context, op string, fn func(*db.Tx) error) error {
	attempt := func() error {
		err := r.view(ctx, fn)
		if err == nil || errors.Is(err, db.ErrInvalidState) {
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.config.RetryDelay), r.config.MaxRetries),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		r.logger.Printf("%s: store busy, retrying in %s: %v", op, wait, err)
	}

	if err := backoff.RetryNotify(attempt, policy, notify); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}

// Lists returns every list ordered by creation time.
func (r *Repository) Lists(ctx context.Context) ([]schema.TodoList, error) {
	var lists []schema.TodoList
	err := r.read(ctx, "list todo lists", func(tx *db.Tx) error {
		var err error
		lists, err = tx.Lists()
		return err
	})
	return lists, err
}

// AllTasks returns every task in the store.
func (r *Repository) AllTasks(ctx context.Context) ([]schema.Task, error) {
	var tasks []schema.Task
	err := r.read(ctx, "list tasks", func(tx *db.Tx) error {
		var err error
		tasks, err = tx.Tasks()
		return err
	})
	return tasks, err
}

// TasksByList returns the tasks owned by listID, newest first.
func (r *Repository) TasksByList(ctx context.Context, listID string) ([]schema.Task, error) {
	var tasks []schema.Task
	err := r.read(ctx, "list tasks of "+listID, func(tx *db.Tx) error {
		var err error
		tasks, err = tx.TasksByList(listID)
		return err
	})
	return tasks, err
}

// TasksByStatus returns the tasks of listID with the given completion
// flag, newest first.
func (r *Repository) TasksByStatus(ctx context.Context, listID string, completed bool) ([]schema.Task, error) {
	var tasks []schema.Task
	err := r.read(ctx, "list tasks of "+listID, func(tx *db.Tx) error {
		var err error
		tasks, err = tx.TasksByStatus(listID, completed)
		return err
	})
	return tasks, err
}

// List returns one list by id, or ErrNotFound.
func (r *Repository) List(ctx context.Context, id string) (*schema.TodoList, error) {
	var list *schema.TodoList
	err := r.read(ctx, "get list "+id, func(tx *db.Tx) error {
		var err error
		list, err = tx.List(id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("list %s: %w", id, ErrNotFound)
		}
		return err
	})
	return list, err
}

// Task returns one task by id, or ErrNotFound.
func (r *Repository) Task(ctx context.Context, id string) (*schema.Task, error) {
	var task *schema.Task
	err := r.read(ctx, "get task "+id, func(tx *db.Tx) error {
		var err error
		task, err = tx.Task(id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		return err
	})
	return task, err
}

// AddList inserts a new list.
func (r *Repository) AddList(ctx context.Context, l *schema.TodoList) error {
	if err := r.update(ctx, func(tx *db.Tx) error { return tx.InsertList(l) }); err != nil {
		return fmt.Errorf("failed to add list: %w", err)
	}
	return nil
}

// AddTask inserts a new task. Its list must exist (ErrUnknownList).
func (r *Repository) AddTask(ctx context.Context, t *schema.Task) error {
	err := r.update(ctx, func(tx *db.Tx) error {
		if err := requireList(tx, t.TodoListID); err != nil {
			return err
		}
		return tx.InsertTask(t)
	})
	if err != nil {
		return fmt.Errorf("failed to add task: %w", err)
	}
	return nil
}

// PutList inserts or replaces a list by id.
func (r *Repository) PutList(ctx context.Context, l *schema.TodoList) error {
	if err := r.update(ctx, func(tx *db.Tx) error { return tx.PutList(l) }); err != nil {
		return fmt.Errorf("failed to save list: %w", err)
	}
	return nil
}

// PutTask inserts or replaces a task by id. Its list must exist, so an
// edit racing a list delete in another process fails with ErrUnknownList
// instead of resurrecting the task.
func (r *Repository) PutTask(ctx context.Context, t *schema.Task) error {
	err := r.update(ctx, func(tx *db.Tx) error {
		if err := requireList(tx, t.TodoListID); err != nil {
			return err
		}
		return tx.PutTask(t)
	})
	if err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}
	return nil
}

func requireList(tx *db.Tx, id string) error {
	if _, err := tx.List(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("list %q: %w", id, ErrUnknownList)
		}
		return fmt.Errorf("failed to look up list %s: %w", id, err)
	}
	return nil
}

// DeleteTask removes a task. Deleting a missing id is a no-op.
func (r *Repository) DeleteTask(ctx context.Context, id string) error {
	if err := r.update(ctx, func(tx *db.Tx) error { return tx.DeleteTask(id) }); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// DeleteList removes a list and every task it owns in one transaction and
// returns the number of tasks removed. Deleting a missing id is a no-op.
func (r *Repository) DeleteList(ctx context.Context, id string) (int64, error) {
	var removed int64
	err := r.update(ctx, func(tx *db.Tx) error {
		if err := tx.DeleteList(id); err != nil {
			return err
		}
		var err error
		removed, err = tx.DeleteTasksByList(id)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete list: %w", err)
	}
	r.logger.Printf("Deleted list %s and %d task(s)", id, removed)
	return removed, nil
}

// Snapshot materializes every list and task from a single read transaction.
func (r *Repository) Snapshot(ctx context.Context) (*schema.Snapshot, error) {
	snap := &schema.Snapshot{}
	err := r.read(ctx, "read snapshot", func(tx *db.Tx) error {
		lists, err := tx.Lists()
		if err != nil {
			return err
		}
		tasks, err := tx.Tasks()
		if err != nil {
			return err
		}
		snap.TodoLists = lists
		snap.Tasks = tasks
		return nil
	})
	if err != nil {
		return nil, err
	}
	if snap.TodoLists == nil {
		snap.TodoLists = []schema.TodoList{}
	}
	if snap.Tasks == nil {
		snap.Tasks = []schema.Task{}
	}
	return snap, nil
}

// Replace destructively overwrites the store with snap: every list and
// task is cleared, then the snapshot's records are inserted in order.
// Any failure rolls the whole replacement back.
func (r *Repository) Replace(ctx context.Context, snap *schema.Snapshot) error {
	err := r.update(ctx, func(tx *db.Tx) error {
		if err := tx.ClearTasks(); err != nil {
			return err
		}
		if err := tx.ClearLists(); err != nil {
			return err
		}
		// Tasks may be written before their list; ownership is checked
		// on decode, not by the schema.
		for i := range snap.TodoLists {
			if err := tx.InsertList(&snap.TodoLists[i]); err != nil {
				return err
			}
		}
		for i := range snap.Tasks {
			if err := tx.InsertTask(&snap.Tasks[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace store contents: %w", err)
	}
	r.logger.Printf("Replaced store contents: lists=%d, tasks=%d", len(snap.TodoLists), len(snap.Tasks))
	return nil
}

// Stats reports the store location, schema version and record counts.
func (r *Repository) Stats(ctx context.Context) (*Stats, error) {
	version, err := r.db.Version(ctx)
	if err != nil {
		return nil, err
	}
	stats := &Stats{Path: r.db.Path(), SchemaVersion: version}
	err = r.read(ctx, "count records", func(tx *db.Tx) error {
		var err error
		if stats.Lists, err = tx.ListCount(); err != nil {
			return err
		}
		if stats.Tasks, err = tx.TaskCount(); err != nil {
			return err
		}
		stats.Completed, err = tx.CompletedCount()
		return err
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
