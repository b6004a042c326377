package schema

import (
	"fmt"
	"strings"
	"time"
)

// Task is a single to-do item owned by one TodoList.
type Task struct {
	ID         string `json:"id" yaml:"id"`
	Text       string `json:"text" yaml:"text"`
	Completed  bool   `json:"completed" yaml:"completed"`
	CreatedAt  int64  `json:"createdAt" yaml:"createdAt"` // epoch ms
	UpdatedAt  int64  `json:"updatedAt" yaml:"updatedAt"` // epoch ms
	TodoListID string `json:"todoListId" yaml:"todoListId"`
}

// Validate checks that the Task's required fields are present. Text length
// and timestamp order are not checked: records synced from other devices
// carry whatever their clocks and editors produced.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required")
	}
	if t.TodoListID == "" {
		return fmt.Errorf("todoListId is required")
	}
	if t.CreatedAt <= 0 {
		return fmt.Errorf("createdAt is required")
	}
	return nil
}

// Updated returns UpdatedAt as a time.Time.
func (t *Task) Updated() time.Time {
	return time.UnixMilli(t.UpdatedAt)
}

// Touch sets UpdatedAt to now, or one millisecond past the previous value
// when the clock has not moved, so UpdatedAt strictly increases.
func (t *Task) Touch(now time.Time) {
	t.UpdatedAt = NextTimestamp(t.UpdatedAt, now)
}

// Matches reports whether the task text contains filter, ignoring case.
// An empty filter matches every task.
func (t *Task) Matches(filter string) bool {
	if filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(t.Text), strings.ToLower(filter))
}

// NextTimestamp returns now in epoch ms, bumped past prev if needed.
func NextTimestamp(prev int64, now time.Time) int64 {
	ms := now.UnixMilli()
	if ms <= prev {
		return prev + 1
	}
	return ms
}
