package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/tudu-app/tudu/internal/store/schema"
	"github.com/tudu-app/tudu/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add <text>",
	GroupID: "tasks",
	Short:   "Add a task to the current list",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		list := a.requireList()
		task, err := a.state.CreateTask(ctx, strings.Join(args, " "))
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Added to %s: %s\n", ui.RenderPass("✓"), list.Title, ui.RenderTask(*task))
	},
}

var editCmd = &cobra.Command{
	Use:     "edit <task> <text>",
	GroupID: "tasks",
	Short:   "Change a task's text",
	Long: `Change a task's text. A task is referenced by its position in 'tudu show'
or by its id prefix.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		task, err := a.resolveTask(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if err := a.state.RenameTask(ctx, task.ID, strings.Join(args[1:], " ")); err != nil {
			fatalf("%v", err)
		}
		updated, _ := a.state.Task(task.ID)
		fmt.Printf("%s %s\n", ui.RenderPass("✓"), ui.RenderTask(updated))
	},
}

var doneCmd = &cobra.Command{
	Use:     "done <task>...",
	Aliases: []string{"toggle"},
	GroupID: "tasks",
	Short:   "Toggle tasks between pending and completed",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		// Resolve every reference first; toggling reorders positions.
		tasks := make([]schema.Task, 0, len(args))
		for _, ref := range args {
			task, err := a.resolveTask(ref)
			if err != nil {
				fatalf("%v", err)
			}
			tasks = append(tasks, task)
		}
		for _, task := range tasks {
			if err := a.state.ToggleTask(ctx, task.ID); err != nil {
				fatalf("%v", err)
			}
			updated, _ := a.state.Task(task.ID)
			fmt.Println(ui.RenderTask(updated))
		}
	},
}

var rmCmd = &cobra.Command{
	Use:     "rm <task>...",
	Aliases: []string{"remove"},
	GroupID: "tasks",
	Short:   "Remove tasks",
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		tasks := make([]schema.Task, 0, len(args))
		for _, ref := range args {
			task, err := a.resolveTask(ref)
			if err != nil {
				fatalf("%v", err)
			}
			tasks = append(tasks, task)
		}
		for _, task := range tasks {
			if err := a.state.RemoveTask(ctx, task.ID); err != nil {
				fatalf("%v", err)
			}
			fmt.Printf("%s Removed %s\n", ui.RenderPass("✓"), task.Text)
		}
	},
}

var showCmd = &cobra.Command{
	Use:     "show",
	GroupID: "tasks",
	Short:   "Show the tasks of the current list",
	Long: `Show the tasks of the current list, pending first.

Examples:
  tudu show --filter milk
  tudu show --pending
  tudu show --since "last monday"`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		filter, _ := cmd.Flags().GetString("filter")
		since, _ := cmd.Flags().GetString("since")
		pending, _ := cmd.Flags().GetBool("pending")

		var cutoff time.Time
		if since != "" {
			t, err := parseSince(since, time.Now())
			if err != nil {
				fatalf("%v", err)
			}
			cutoff = t
		}

		list := a.requireList()
		a.state.SetFilter(filter)
		tasks := a.state.VisibleTasks()
		if pending {
			// Pending tasks sort first, so their positions match the full view.
			stored, err := a.repo.TasksByStatus(ctx, list.ID, false)
			if err != nil {
				fatalf("%v", err)
			}
			tasks = nil
			for _, t := range stored {
				if t.Matches(filter) {
					tasks = append(tasks, t)
				}
			}
		}

		fmt.Println(ui.RenderAccent(list.Title))
		shown := 0
		for i, t := range tasks {
			if !cutoff.IsZero() && t.Updated().Before(cutoff) {
				continue
			}
			fmt.Printf("%3d %s\n", i+1, ui.RenderTask(t))
			shown++
		}
		if shown == 0 {
			fmt.Println(ui.RenderMuted("  (no tasks)"))
		}
	},
}

// parseSince reads a natural-language time ("yesterday", "last monday")
// or an RFC 3339 / YYYY-MM-DD date.
func parseSince(text string, now time.Time) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, text, now.Location()); err == nil {
			return t, nil
		}
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	r, err := w.Parse(text, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse %q: %w", text, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("failed to parse %q as a time", text)
	}
	return r.Time, nil
}

func init() {
	showCmd.Flags().StringP("filter", "f", "", "Only tasks containing this text (case-insensitive)")
	showCmd.Flags().String("since", "", "Only tasks changed since this time (e.g. \"yesterday\")")
	showCmd.Flags().Bool("pending", false, "Only pending tasks")

	rootCmd.AddCommand(addCmd, editCmd, doneCmd, rmCmd, showCmd)
}
