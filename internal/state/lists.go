package state

import (
	"context"
	"fmt"
	"strings"

	"github.com/tudu-app/tudu/internal/store/schema"
)

// Load fetches every list and, when nothing valid is selected, selects the
// first one. Tasks of the selected list are loaded as well.
func (s *State) Load(ctx context.Context) error {
	s.begin()

	lists, err := s.store.Lists(ctx)
	if err != nil {
		return s.fail("fetch todo lists", err)
	}

	current := pickCurrent(s.CurrentList(), lists)
	var tasks []schema.Task
	if current != "" {
		if tasks, err = s.store.TasksByList(ctx, current); err != nil {
			return s.fail("fetch tasks", err)
		}
	}

	s.finish(func(st *Status) {
		st.Lists = lists
		st.CurrentList = current
		st.Tasks = tasks
	})
	return nil
}

// SelectList makes id the current list and loads its tasks. An empty id
// clears the selection; an id that is not among the loaded lists is
// rejected with ErrUnknownList.
func (s *State) SelectList(ctx context.Context, id string) error {
	if id == "" {
		s.update(func(st *Status) {
			st.CurrentList = ""
			st.Tasks = nil
		})
		return nil
	}
	if _, ok := s.findList(id); !ok {
		return s.reject(fmt.Errorf("%w: %q", ErrUnknownList, id))
	}

	s.begin()
	tasks, err := s.store.TasksByList(ctx, id)
	if err != nil {
		return s.fail("fetch tasks", err)
	}
	s.finish(func(st *Status) {
		st.CurrentList = id
		st.Tasks = tasks
	})
	return nil
}

// ReloadTasks re-reads the current list's tasks from the store.
func (s *State) ReloadTasks(ctx context.Context) error {
	current := s.CurrentList()
	if current == "" {
		return nil
	}

	s.begin()
	tasks, err := s.store.TasksByList(ctx, current)
	if err != nil {
		return s.fail("fetch tasks", err)
	}
	s.finish(func(st *Status) {
		if st.CurrentList == current {
			st.Tasks = tasks
		}
	})
	return nil
}

// CreateList adds a list titled title and selects it.
func (s *State) CreateList(ctx context.Context, title string) (*schema.TodoList, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, s.reject(fmt.Errorf("%w: list title is empty", ErrValidation))
	}

	now := s.now()
	list := &schema.TodoList{ID: s.newID(), Title: title, CreatedAt: now, UpdatedAt: now}

	s.begin()
	if err := s.store.AddList(ctx, list); err != nil {
		return nil, s.fail("add todo list", err)
	}
	s.finish(func(st *Status) {
		st.Lists = append(st.Lists, *list)
		st.CurrentList = list.ID
		st.Tasks = nil
	})
	s.changed()
	return list, nil
}

// RenameList changes a list's title. An unknown id is a no-op.
func (s *State) RenameList(ctx context.Context, id, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return s.reject(fmt.Errorf("%w: list title is empty", ErrValidation))
	}

	s.begin()
	list, ok := s.findList(id)
	if !ok {
		s.finish(nil)
		return nil
	}
	list.Title = title
	list.Touch(s.clock.Now())

	if err := s.store.PutList(ctx, &list); err != nil {
		return s.fail("edit todo list", err)
	}
	s.finish(func(st *Status) {
		for i := range st.Lists {
			if st.Lists[i].ID == id {
				st.Lists[i] = list
			}
		}
	})
	s.changed()
	return nil
}

// RemoveList deletes a list and its tasks. If it was the current list the
// selection falls back to the first remaining list, or none. Removing any
// other list keeps the current selection instead of resetting it to the
// first list.
func (s *State) RemoveList(ctx context.Context, id string) error {
	s.begin()
	if _, err := s.store.DeleteList(ctx, id); err != nil {
		return s.fail("delete todo list", err)
	}

	s.mu.Lock()
	remaining := make([]schema.TodoList, 0, len(s.status.Lists))
	for _, l := range s.status.Lists {
		if l.ID != id {
			remaining = append(remaining, l)
		}
	}
	wasCurrent := s.status.CurrentList == id
	s.mu.Unlock()

	next := ""
	var tasks []schema.Task
	if wasCurrent && len(remaining) > 0 {
		next = remaining[0].ID
		var err error
		if tasks, err = s.store.TasksByList(ctx, next); err != nil {
			// The delete is durable; reflect it before reporting.
			s.update(func(st *Status) {
				st.Lists = remaining
				st.CurrentList = next
				st.Tasks = nil
			})
			s.changed()
			return s.fail("fetch tasks", err)
		}
	}

	s.finish(func(st *Status) {
		st.Lists = remaining
		if wasCurrent {
			st.CurrentList = next
			st.Tasks = tasks
		}
	})
	s.changed()
	return nil
}

// findList returns a copy of the in-memory list with id.
func (s *State) findList(id string) (schema.TodoList, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.status.Lists {
		if l.ID == id {
			return l, true
		}
	}
	return schema.TodoList{}, false
}

// pickCurrent keeps current if it names one of lists, else picks the first.
func pickCurrent(current string, lists []schema.TodoList) string {
	for _, l := range lists {
		if l.ID == current {
			return current
		}
	}
	if len(lists) > 0 {
		return lists[0].ID
	}
	return ""
}
