package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	verbose   bool
	configDir string
	dbPath    string
)

var rootCmd = &cobra.Command{
	Use:   "tudu",
	Short: "tudu - todo lists with gist sync",
	Long: `tudu keeps todo lists in a local database and, optionally, mirrors
them to a GitHub gist.

Tasks live in lists; one list is current at a time. Sync pushes the whole
store after a quiet period and pulls the gist periodically when no local
change is waiting. Run 'tudu daemon' to keep sync running in the
background, or use 'tudu sync push|pull' by hand.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging to stderr")
	rootCmd.PersistentFlags().StringVar(&configDir, "config", "", "Configuration directory (default $XDG_CONFIG_HOME/tudu)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database path (overrides the database setting)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "tasks", Title: "Tasks:"},
		&cobra.Group{ID: "lists", Title: "Lists:"},
		&cobra.Group{ID: "sync", Title: "Sync:"},
		&cobra.Group{ID: "setup", Title: "Setup:"},
	)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}
