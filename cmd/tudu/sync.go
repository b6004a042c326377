package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tudu-app/tudu/internal/autosync"
	"github.com/tudu-app/tudu/internal/gist"
	"github.com/tudu-app/tudu/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "sync",
	Short:   "Push to or pull from the configured gist",
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Write every list and task to the gist",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		fmt.Printf("%s Pushing to gist...\n", ui.RenderAccent("🔄"))
		start := time.Now()
		ok, err := a.state.PushSnapshotToGist(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		if !ok {
			fatalf("sync is not configured (set a gist id and a valid token with 'tudu config')")
		}
		fmt.Printf("%s Pushed in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Replace every list and task with the gist's snapshot",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		fmt.Printf("%s Pulling from gist...\n", ui.RenderAccent("🔄"))
		start := time.Now()
		ok, err := a.state.PullFromGist(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		if !ok {
			fatalf("no gist id configured (set one with 'tudu config --gist <id>')")
		}
		st := a.state.Status()
		fmt.Printf("%s Pulled %d list(s) in %v\n", ui.RenderPass("✓"), len(st.Lists), time.Since(start).Round(time.Millisecond))
	},
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether sync is configured",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		printSyncStatus(a)
	},
}

func printSyncStatus(a *app) {
	vals := a.cfg.Values()
	check := func(ok bool) string {
		if ok {
			return ui.RenderPass("✓")
		}
		return ui.RenderWarn("✗")
	}

	id, idOK := gist.ParseID(vals.GistID)
	if id == "" {
		id = vals.GistID
	}
	fmt.Printf("  %s Gist ID:   %s\n", check(idOK), valueOr(id, "(not set)"))
	fmt.Printf("  %s Token:     %s\n", check(gist.ValidToken(vals.GitHubToken)), maskToken(vals.GitHubToken))
	fmt.Printf("  %s Auto sync: %t\n", check(vals.AutoSync), vals.AutoSync)

	health := a.sync.Health()
	if health.Active {
		fmt.Println(ui.RenderBanner(autosync.BannerActive, false))
	} else {
		fmt.Println(ui.RenderMuted("  Auto sync is inactive"))
	}
}

func maskToken(token string) string {
	if token == "" {
		return "(not set)"
	}
	if len(token) <= 8 {
		return strings.Repeat("*", len(token))
	}
	return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func init() {
	syncCmd.AddCommand(syncPushCmd, syncPullCmd, syncStatusCmd)
	rootCmd.AddCommand(syncCmd)
}
