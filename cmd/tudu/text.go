package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/tudu-app/tudu/internal/store/schema"
	"github.com/tudu-app/tudu/internal/textview"
	"github.com/tudu-app/tudu/internal/ui"
)

var textCmd = &cobra.Command{
	Use:     "text",
	GroupID: "tasks",
	Short:   "Show or edit the current list as plain text",
	Long: `Show the current list as plain text, one task per line:

  @ pending task
  # completed task

With --apply, read edited text from a file (or - for stdin) and reconcile
it with the list: lines whose marker changed are toggled, new lines are
added and, unless --filter is set, tasks without a line are removed.
Matching is by case-insensitive exact text.

With --edit, open the text in $EDITOR and apply the result.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		apply, _ := cmd.Flags().GetString("apply")
		edit, _ := cmd.Flags().GetBool("edit")
		filter, _ := cmd.Flags().GetString("filter")

		a.requireList()
		a.state.SetFilter(filter)
		current := a.state.VisibleTasks()
		rendered := textview.Render(current)

		var text string
		switch {
		case edit:
			edited, err := editText(rendered)
			if err != nil {
				fatalf("%v", err)
			}
			text = edited

			// The daemon or another command may have changed the list
			// while the editor was open.
			if err := a.state.ReloadTasks(ctx); err != nil {
				fatalf("%v", err)
			}
			current = refreshTasks(current, a.state.VisibleTasks())
		case apply == "-":
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				fatalf("failed to read stdin: %v", err)
			}
			text = string(data)
		case apply != "":
			data, err := os.ReadFile(apply)
			if err != nil {
				fatalf("failed to read %s: %v", apply, err)
			}
			text = string(data)
		default:
			if rendered != "" {
				fmt.Println(rendered)
			}
			return
		}

		res, err := textview.Apply(ctx, a.state, current, text, filter)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s %d added, %d toggled, %d removed\n", ui.RenderPass("✓"), res.Created, res.Toggled, res.Removed)
	},
}

// refreshTasks returns the tasks of before that still exist in after, with
// their state from after. Tasks only in after are left out so the edit
// cannot remove them.
func refreshTasks(before, after []schema.Task) []schema.Task {
	fresh := make(map[string]schema.Task, len(after))
	for _, t := range after {
		fresh[t.ID] = t
	}
	out := make([]schema.Task, 0, len(before))
	for _, t := range before {
		if f, ok := fresh[t.ID]; ok {
			out = append(out, f)
		}
	}
	return out
}

// editText opens text in $EDITOR and returns the saved result.
func editText(text string) (string, error) {
	editor := os.Getenv("EDITOR")
	if editor == "" {
		editor = "vi"
	}

	f, err := os.CreateTemp("", "tudu-*.txt")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(text + "\n"); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}

	c := exec.Command(editor, f.Name())
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("editor failed: %w", err)
	}

	data, err := os.ReadFile(f.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read edited text: %w", err)
	}
	return string(data), nil
}

func init() {
	textCmd.Flags().String("apply", "", "Apply edited text from a file, or - for stdin")
	textCmd.Flags().BoolP("edit", "e", false, "Edit the text in $EDITOR and apply it")
	textCmd.Flags().StringP("filter", "f", "", "Only tasks containing this text; unmatched tasks are kept")

	rootCmd.AddCommand(textCmd)
}
