package db

import (
	"database/sql"
	"fmt"

	"github.com/tudu-app/tudu/internal/store/schema"
)

const listColumns = `id, title, created_at, updated_at`

// Lists returns every list ordered by creation time.
func (t *Tx) Lists() ([]schema.TodoList, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT `+listColumns+` FROM todo_lists ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query lists: %w", err)
	}
	defer rows.Close()

	var lists []schema.TodoList
	for rows.Next() {
		var l schema.TodoList
		if err := rows.Scan(&l.ID, &l.Title, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan list: %w", err)
		}
		lists = append(lists, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lists: %w", err)
	}
	return lists, nil
}

// List returns one list by id, or sql.ErrNoRows.
func (t *Tx) List(id string) (*schema.TodoList, error) {
	var l schema.TodoList
	err := t.tx.QueryRowContext(t.ctx,
		`SELECT `+listColumns+` FROM todo_lists WHERE id = ?`, id).
		Scan(&l.ID, &l.Title, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertList adds a new list. It fails if the id already exists.
func (t *Tx) InsertList(l *schema.TodoList) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid list: %w", err)
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO todo_lists (`+listColumns+`) VALUES (?, ?, ?, ?)`,
		l.ID, l.Title, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert list %s: %w", l.ID, err)
	}
	return nil
}

// PutList inserts or replaces a list by id.
func (t *Tx) PutList(l *schema.TodoList) error {
	if err := l.Validate(); err != nil {
		return fmt.Errorf("invalid list: %w", err)
	}
	_, err := t.tx.ExecContext(t.ctx, `
	INSERT INTO todo_lists (`+listColumns+`) VALUES (?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at
	`, l.ID, l.Title, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert list %s: %w", l.ID, err)
	}
	return nil
}

// DeleteList removes a list. Returns nil if the list doesn't exist.
// Tasks are not touched; see DeleteTasksByList.
func (t *Tx) DeleteList(id string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM todo_lists WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete list %s: %w", id, err)
	}
	return nil
}

// ClearLists removes every list.
func (t *Tx) ClearLists() error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM todo_lists`); err != nil {
		return fmt.Errorf("failed to clear lists: %w", err)
	}
	return nil
}

// ListCount returns the number of lists.
func (t *Tx) ListCount() (int, error) {
	return t.count(`SELECT COUNT(*) FROM todo_lists`)
}

func (t *Tx) count(query string, args ...any) (int, error) {
	var n int
	if err := t.tx.QueryRowContext(t.ctx, query, args...).Scan(&n); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to count: %w", err)
	}
	return n, nil
}
