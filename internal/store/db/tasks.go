package db

import (
	"fmt"

	"github.com/tudu-app/tudu/internal/store/schema"
)

const taskColumns = `id, text, completed, created_at, updated_at, todo_list_id`

// Tasks returns every task, grouped by list and newest first within a list.
func (t *Tx) Tasks() ([]schema.Task, error) {
	return t.queryTasks(`SELECT ` + taskColumns + ` FROM tasks
		ORDER BY todo_list_id ASC, created_at DESC, rowid DESC`)
}

// TasksByList returns the tasks owned by listID, newest first.
func (t *Tx) TasksByList(listID string) ([]schema.Task, error) {
	return t.queryTasks(`SELECT `+taskColumns+` FROM tasks
		WHERE todo_list_id = ?
		ORDER BY created_at DESC, rowid DESC`, listID)
}

// TasksByStatus returns the tasks owned by listID with the given
// completion flag, newest first.
func (t *Tx) TasksByStatus(listID string, completed bool) ([]schema.Task, error) {
	return t.queryTasks(`SELECT `+taskColumns+` FROM tasks
		WHERE todo_list_id = ? AND completed = ?
		ORDER BY created_at DESC, rowid DESC`, listID, completed)
}

// Task returns one task by id, or sql.ErrNoRows.
func (t *Tx) Task(id string) (*schema.Task, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// InsertTask adds a new task. It fails if the id already exists.
func (t *Tx) InsertTask(task *schema.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	_, err := t.tx.ExecContext(t.ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		task.ID, task.Text, task.Completed, task.CreatedAt, task.UpdatedAt, task.TodoListID)
	if err != nil {
		return fmt.Errorf("failed to insert task %s: %w", task.ID, err)
	}
	return nil
}

// PutTask inserts or replaces a task by id.
func (t *Tx) PutTask(task *schema.Task) error {
	if err := task.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}
	_, err := t.tx.ExecContext(t.ctx, `
	INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		text = excluded.text,
		completed = excluded.completed,
		created_at = excluded.created_at,
		updated_at = excluded.updated_at,
		todo_list_id = excluded.todo_list_id
	`, task.ID, task.Text, task.Completed, task.CreatedAt, task.UpdatedAt, task.TodoListID)
	if err != nil {
		return fmt.Errorf("failed to upsert task %s: %w", task.ID, err)
	}
	return nil
}

// DeleteTask removes a task. Returns nil if the task doesn't exist.
func (t *Tx) DeleteTask(id string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete task %s: %w", id, err)
	}
	return nil
}

// DeleteTasksByList removes every task owned by listID and returns how
// many were deleted.
func (t *Tx) DeleteTasksByList(listID string) (int64, error) {
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM tasks WHERE todo_list_id = ?`, listID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tasks of list %s: %w", listID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ClearTasks removes every task.
func (t *Tx) ClearTasks() error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("failed to clear tasks: %w", err)
	}
	return nil
}

// TaskCount returns the number of tasks.
func (t *Tx) TaskCount() (int, error) {
	return t.count(`SELECT COUNT(*) FROM tasks`)
}

// CompletedCount returns the number of completed tasks.
func (t *Tx) CompletedCount() (int, error) {
	return t.count(`SELECT COUNT(*) FROM tasks WHERE completed = 1`)
}

func (t *Tx) queryTasks(query string, args ...any) ([]schema.Task, error) {
	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []schema.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (schema.Task, error) {
	var task schema.Task
	err := s.Scan(
		&task.ID,
		&task.Text,
		&task.Completed,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.TodoListID,
	)
	return task, err
}
