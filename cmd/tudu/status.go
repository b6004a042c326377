package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tudu-app/tudu/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "setup",
	Short:   "Show store location, counts and sync configuration",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		stats, err := a.repo.Stats(ctx)
		if err != nil {
			fatalf("%v", err)
		}

		current := "(none)"
		for _, l := range a.state.Status().Lists {
			if l.ID == a.state.CurrentList() {
				current = l.Title
			}
		}

		fmt.Println(ui.RenderAccent("Store"))
		fmt.Printf("  Database:  %s\n", stats.Path)
		fmt.Printf("  Schema:    v%d\n", stats.SchemaVersion)
		fmt.Printf("  Lists:     %d (current: %s)\n", stats.Lists, current)
		fmt.Printf("  Tasks:     %d (%d completed)\n", stats.Tasks, stats.Completed)
		fmt.Printf("  Config:    %s\n", a.cfg.Path())
		fmt.Println()
		fmt.Println(ui.RenderAccent("Sync"))
		printSyncStatus(a)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
