package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/tudu-app/tudu/internal/config"
	"github.com/tudu-app/tudu/internal/gist"
	"github.com/tudu-app/tudu/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Configure gist sync",
	Long: `Configure gist sync. Without flags on a terminal an interactive form
is shown.

Sync runs only when a gist id, a GitHub token in a recognised format and
auto sync are all set. The token is stored unencrypted in the config file;
TUDU_GITHUB_TOKEN overrides it without being saved.

Examples:
  tudu config --gist https://gist.github.com/me/0123456789abcdef0123456789abcdef
  tudu config --token ghp_... --auto-sync
  tudu config set poll_interval 30s`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configDir)
		if err != nil {
			fatalf("failed to load config: %v", err)
		}

		flags := cmd.Flags()
		if !flags.Changed("gist") && !flags.Changed("token") && !flags.Changed("auto-sync") {
			if !ui.IsTerminal(os.Stdin) {
				printConfig(cfg)
				return
			}
			if err := runConfigForm(cfg); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Println("Cancelled")
					return
				}
				fatalf("%v", err)
			}
			fmt.Printf("%s Saved %s\n", ui.RenderPass("✓"), cfg.Path())
			return
		}

		gistID, _ := flags.GetString("gist")
		token, _ := flags.GetString("token")
		autoSync, _ := flags.GetBool("auto-sync")

		if flags.Changed("gist") && gistID != "" {
			if _, ok := gist.ParseID(gistID); !ok {
				fatalf("%q is not a gist id or gist URL", gistID)
			}
		}
		if flags.Changed("token") && token != "" && !gist.ValidToken(token) {
			fmt.Fprintf(os.Stderr, "%s Token format not recognised; sync stays inactive until it is fixed\n", ui.RenderWarn("⚠"))
		}

		err = cfg.Update(func(v *config.Values) {
			if flags.Changed("gist") {
				v.GistID = gistID
			}
			if flags.Changed("token") {
				v.GitHubToken = token
			}
			if flags.Changed("auto-sync") {
				v.AutoSync = autoSync
			}
		})
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Saved %s\n", ui.RenderPass("✓"), cfg.Path())
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show every setting",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configDir)
		if err != nil {
			fatalf("failed to load config: %v", err)
		}
		printConfig(cfg)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configDir)
		if err != nil {
			fatalf("failed to load config: %v", err)
		}
		if err := cfg.Set(args[0], args[1]); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s %s updated\n", ui.RenderPass("✓"), args[0])
	},
}

func printConfig(cfg *config.Config) {
	m := cfg.Values().Map()
	fmt.Println(ui.RenderMuted("# " + cfg.Path()))
	for _, k := range config.Keys() {
		v := m[k]
		if k == config.KeyGitHubToken {
			v = maskToken(v)
		}
		fmt.Printf("%-15s %s\n", k, v)
	}
}

// runConfigForm edits the sync settings interactively.
func runConfigForm(cfg *config.Config) error {
	vals := cfg.Values()
	gistID, token, autoSync := vals.GistID, vals.GitHubToken, vals.AutoSync

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Gist ID").
				Description("The id or URL of the gist holding tasks.json").
				Value(&gistID).
				Validate(func(s string) error {
					if s == "" {
						return nil
					}
					if _, ok := gist.ParseID(s); !ok {
						return fmt.Errorf("not a gist id or gist URL")
					}
					return nil
				}),
			huh.NewInput().
				Title("GitHub token").
				Description("A token with the gist scope").
				EchoMode(huh.EchoModePassword).
				Value(&token).
				Validate(func(s string) error {
					if s != "" && !gist.ValidToken(s) {
						return fmt.Errorf("unrecognised token format")
					}
					return nil
				}),
			huh.NewConfirm().
				Title("Enable auto sync?").
				Value(&autoSync),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	return cfg.Update(func(v *config.Values) {
		v.GistID = gistID
		v.GitHubToken = token
		v.AutoSync = autoSync
	})
}

// confirm asks a yes/no question on the terminal.
func confirm(title string) bool {
	ok := false
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	))
	if err := form.Run(); err != nil {
		return false
	}
	return ok
}

func init() {
	configCmd.Flags().String("gist", "", "Gist id or gist URL")
	configCmd.Flags().String("token", "", "GitHub token with the gist scope")
	configCmd.Flags().Bool("auto-sync", false, "Enable automatic sync")

	configCmd.AddCommand(configListCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
