package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tudu-app/tudu/internal/autosync"
	"github.com/tudu-app/tudu/internal/config"
	"github.com/tudu-app/tudu/internal/daemon"
	"github.com/tudu-app/tudu/internal/dashboard"
	"github.com/tudu-app/tudu/internal/ui"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: "sync",
	Short:   "Run auto sync in the foreground",
	Long: `Run auto sync in the foreground until interrupted.

The daemon pulls the gist periodically and pushes a few seconds after the
last local change. Changes made by other tudu commands are picked up from
the database, so 'tudu add' in another terminal is pushed without further
action. Configuration edits apply without a restart.

With --dashboard, a WebSocket server streams the current list and the sync
status to connected clients:
  ws://localhost:8080/ws
  http://localhost:8080/health`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		withDashboard, _ := cmd.Flags().GetBool("dashboard")
		port, _ := cmd.Flags().GetInt("port")

		a, err := newApp(ctx, true)
		if err != nil {
			fatalf("%v", err)
		}
		defer a.close(ctx)
		logger := a.logs.Logger("daemon")

		var d *daemon.Daemon
		a.sync.SetOnPulled(func() {
			if d == nil {
				return
			}
			if err := d.ResetBaseline(); err != nil {
				logger.Printf("Failed to reset data version: %v", err)
			}
		})
		a.state.SetChangeNotifier(a.sync.NotifyChanged)

		d, err = daemon.New(a.db, a.state, a.sync, &daemon.Config{Logger: logger})
		if err != nil {
			fatalf("failed to create daemon: %v", err)
		}

		if withDashboard {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   port,
				Logger: a.logs.Logger("dashboard"),
			})
			if err := server.Start(); err != nil {
				fatalf("failed to start dashboard: %v", err)
			}
			defer server.Stop()

			handler := dashboard.NewHandler(server, a.logs.Logger("dashboard"))
			cancelState := a.state.Subscribe(handler.OnState)
			defer cancelState()
			cancelHealth := a.sync.OnHealth(handler.OnHealth)
			defer cancelHealth()
			handler.OnState(a.state.Status())
			handler.OnHealth(a.sync.Health())

			fmt.Printf("Dashboard started on http://localhost:%d\n", port)
			fmt.Printf("WebSocket endpoint: ws://localhost:%d/ws\n", port)
		}

		if err := a.cfg.Watch(func(v config.Values) {
			logger.Printf("Configuration reloaded (auto sync %t)", v.AutoSync)
			if a.sync.Active() {
				fmt.Printf("%s %s\n", ui.RenderPass("✓"), autosync.BannerActive)
			} else {
				fmt.Printf("%s Sync is inactive\n", ui.RenderWarn("⚠"))
			}
		}); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: config changes need a restart: %v\n", err)
		}

		if a.sync.Active() {
			fmt.Printf("%s Auto sync running (Ctrl+C to stop)\n", ui.RenderAccent("🔄"))
		} else {
			fmt.Printf("%s Sync is inactive; waiting for 'tudu config' (Ctrl+C to stop)\n", ui.RenderWarn("⚠"))
		}

		if err := d.Start(ctx); err != nil {
			fatalf("%v", err)
		}

		if h := a.sync.Health(); h.Banner != "" {
			fmt.Println(ui.RenderBanner(h.Banner, h.Phase == autosync.PhaseError))
		}
		fmt.Println("Daemon stopped")
	},
}

func init() {
	daemonCmd.Flags().Bool("dashboard", false, "Serve a live WebSocket dashboard")
	daemonCmd.Flags().IntP("port", "p", 8080, "Dashboard port")

	rootCmd.AddCommand(daemonCmd)
}
