// Package textview implements the plain-text task view: one task per
// line, "# " for completed and "@ " for pending.
//
//	@ Buy milk
//	# Call the bank
//
// Editing the text and applying it reconciles the lines against the
// current tasks: status changes toggle, unknown lines create tasks and,
// when no filter is active, tasks without a line are deleted.
package textview

import (
	"context"
	"fmt"
	"strings"

	"github.com/tudu-app/tudu/internal/store/schema"
)

const (
	CompletedPrefix = "# "
	PendingPrefix   = "@ "
)

// Line is one parsed text-view line.
type Line struct {
	Text      string
	Completed bool
}

// Actions are the state operations Apply drives.
type Actions interface {
	CreateTask(ctx context.Context, text string) (*schema.Task, error)
	ToggleTask(ctx context.Context, id string) error
	RemoveTask(ctx context.Context, id string) error
}

// Result counts the changes made by Apply.
type Result struct {
	Created int
	Toggled int
	Removed int
}

// Render formats tasks in order, one per line.
func Render(tasks []schema.Task) string {
	var b strings.Builder
	for i, t := range tasks {
		if i > 0 {
			b.WriteByte('\n')
		}
		if t.Completed {
			b.WriteString(CompletedPrefix)
		} else {
			b.WriteString(PendingPrefix)
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

// Parse reads text-view lines. Blank lines are skipped; a line without a
// marker is a pending task.
func Parse(text string) []Line {
	var lines []Line
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		completed := strings.HasPrefix(line, "#")
		line = strings.TrimSpace(strings.TrimLeft(line[:1], "#@") + line[1:])
		if line == "" {
			continue
		}
		lines = append(lines, Line{Text: line, Completed: completed})
	}
	return lines
}

// Apply reconciles text against current, the tasks the text was rendered
// from. Matching is by case-insensitive exact text; each task matches at
// most one line. Unmatched tasks are removed only when filter is empty,
// since a filtered view does not show every task.
func Apply(ctx context.Context, actions Actions, current []schema.Task, text, filter string) (Result, error) {
	var res Result
	remaining := append([]schema.Task(nil), current...)

	for _, line := range Parse(text) {
		idx := -1
		for i, t := range remaining {
			if strings.EqualFold(t.Text, line.Text) {
				idx = i
				break
			}
		}

		if idx >= 0 {
			task := remaining[idx]
			remaining = append(remaining[:idx], remaining[idx+1:]...)
			if task.Completed != line.Completed {
				if err := actions.ToggleTask(ctx, task.ID); err != nil {
					return res, fmt.Errorf("failed to toggle %q: %w", task.Text, err)
				}
				res.Toggled++
			}
			continue
		}

		created, err := actions.CreateTask(ctx, line.Text)
		if err != nil {
			return res, fmt.Errorf("failed to create %q: %w", line.Text, err)
		}
		res.Created++
		if line.Completed {
			if err := actions.ToggleTask(ctx, created.ID); err != nil {
				return res, fmt.Errorf("failed to complete %q: %w", line.Text, err)
			}
		}
	}

	if filter != "" {
		return res, nil
	}
	for _, t := range remaining {
		if err := actions.RemoveTask(ctx, t.ID); err != nil {
			return res, fmt.Errorf("failed to remove %q: %w", t.Text, err)
		}
		res.Removed++
	}
	return res, nil
}
