package schema

import (
	"fmt"
	"time"
)

// TodoList is a named grouping of tasks.
type TodoList struct {
	ID        string `json:"id" yaml:"id"`
	Title     string `json:"title" yaml:"title"`
	CreatedAt int64  `json:"createdAt" yaml:"createdAt"` // epoch ms
	UpdatedAt int64  `json:"updatedAt" yaml:"updatedAt"` // epoch ms
}

// Validate checks that the TodoList's required fields are present.
//
// Titles are not required to be non-empty here: imported snapshots are
// stored as-is. User-initiated creation and rename reject blank titles
// before reaching the store.
func (l *TodoList) Validate() error {
	if l.ID == "" {
		return fmt.Errorf("id is required")
	}
	if l.CreatedAt <= 0 {
		return fmt.Errorf("createdAt is required")
	}
	return nil
}

// Touch advances UpdatedAt, see Task.Touch.
func (l *TodoList) Touch(now time.Time) {
	l.UpdatedAt = NextTimestamp(l.UpdatedAt, now)
}

// Snapshot is the full content of the store: every list and every task.
// Order within each slice is meaningful and preserved by the codec.
type Snapshot struct {
	TodoLists []TodoList `json:"todoLists" yaml:"todoLists"`
	Tasks     []Task     `json:"tasks" yaml:"tasks"`
}

// Validate checks every record and the snapshot's referential integrity:
// ids are unique per collection and every task's list is present.
func (s *Snapshot) Validate() error {
	lists := make(map[string]bool, len(s.TodoLists))
	for i := range s.TodoLists {
		l := &s.TodoLists[i]
		if err := l.Validate(); err != nil {
			return fmt.Errorf("todoLists[%d]: %w", i, err)
		}
		if lists[l.ID] {
			return fmt.Errorf("todoLists[%d]: duplicate id %q", i, l.ID)
		}
		lists[l.ID] = true
	}

	tasks := make(map[string]bool, len(s.Tasks))
	for i := range s.Tasks {
		t := &s.Tasks[i]
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tasks[%d]: %w", i, err)
		}
		if tasks[t.ID] {
			return fmt.Errorf("tasks[%d]: duplicate id %q", i, t.ID)
		}
		if !lists[t.TodoListID] {
			return fmt.Errorf("tasks[%d]: todoListId %q not in snapshot", i, t.TodoListID)
		}
		tasks[t.ID] = true
	}
	return nil
}
