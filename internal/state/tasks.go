package state

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tudu-app/tudu/internal/store/schema"
)

// CreateTask adds a pending task to the current list and prepends it to
// the in-memory tasks.
func (s *State) CreateTask(ctx context.Context, text string) (*schema.Task, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, s.reject(fmt.Errorf("%w: task text is empty", ErrValidation))
	}
	current := s.CurrentList()
	if current == "" {
		return nil, s.reject(ErrNoListSelected)
	}

	now := s.now()
	task := &schema.Task{
		ID:         s.newID(),
		Text:       text,
		CreatedAt:  now,
		UpdatedAt:  now,
		TodoListID: current,
	}

	s.begin()
	if err := s.store.AddTask(ctx, task); err != nil {
		return nil, s.fail("add task", err)
	}
	s.finish(func(st *Status) {
		if st.CurrentList == task.TodoListID {
			st.Tasks = append([]schema.Task{*task}, st.Tasks...)
		}
	})
	s.changed()
	return task, nil
}

// RenameTask changes a task's text in place. An unknown id is a no-op.
func (s *State) RenameTask(ctx context.Context, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.reject(fmt.Errorf("%w: task text is empty", ErrValidation))
	}
	return s.editTask(ctx, "edit task", id, func(t *schema.Task) { t.Text = text })
}

// ToggleTask flips a task's completion flag in place. An unknown id is a
// no-op.
func (s *State) ToggleTask(ctx context.Context, id string) error {
	return s.editTask(ctx, "toggle task", id, func(t *schema.Task) { t.Completed = !t.Completed })
}

// editTask persists fn applied to a copy of the in-memory task, then
// splices the result back at the same position.
func (s *State) editTask(ctx context.Context, op, id string, fn func(*schema.Task)) error {
	s.begin()
	task, ok := s.findTask(id)
	if !ok {
		s.finish(nil)
		return nil
	}
	fn(&task)
	task.Touch(s.clock.Now())

	if err := s.store.PutTask(ctx, &task); err != nil {
		return s.fail(op, err)
	}
	s.finish(func(st *Status) {
		for i := range st.Tasks {
			if st.Tasks[i].ID == id {
				st.Tasks[i] = task
			}
		}
	})
	s.changed()
	return nil
}

// RemoveTask deletes a task.
func (s *State) RemoveTask(ctx context.Context, id string) error {
	s.begin()
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return s.fail("delete task", err)
	}
	s.finish(func(st *Status) {
		kept := st.Tasks[:0:0]
		for _, t := range st.Tasks {
			if t.ID != id {
				kept = append(kept, t)
			}
		}
		st.Tasks = kept
	})
	s.changed()
	return nil
}

// Task returns a copy of the in-memory task with id.
func (s *State) Task(id string) (schema.Task, bool) {
	return s.findTask(id)
}

func (s *State) findTask(id string) (schema.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.status.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return schema.Task{}, false
}

// SetViewMode switches between the list and text views.
func (s *State) SetViewMode(mode Mode) error {
	if mode != ModeList && mode != ModeText {
		return fmt.Errorf("%w: unknown view mode %q", ErrValidation, mode)
	}
	s.update(func(st *Status) { st.Mode = mode })
	return nil
}

// SetFilter sets the free-text task filter.
func (s *State) SetFilter(filter string) {
	s.update(func(st *Status) { st.Filter = filter })
}

// VisibleTasks returns the current list's tasks matching the filter
// (case-insensitive substring), pending tasks first. Order is otherwise
// preserved.
func (s *State) VisibleTasks() []schema.Task {
	st := s.Status()
	out := make([]schema.Task, 0, len(st.Tasks))
	for _, t := range st.Tasks {
		if t.Matches(st.Filter) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return !out[i].Completed && out[j].Completed
	})
	return out
}
