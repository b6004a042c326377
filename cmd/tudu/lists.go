package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tudu-app/tudu/internal/ui"
)

var listsCmd = &cobra.Command{
	Use:     "lists",
	GroupID: "lists",
	Short:   "Show all lists",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		st := a.state.Status()
		if len(st.Lists) == 0 {
			fmt.Println("No lists yet. Create one with 'tudu list create <title>'.")
			return
		}

		snap, err := a.repo.Snapshot(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		counts := make(map[string]int, len(snap.TodoLists))
		for _, t := range snap.Tasks {
			counts[t.TodoListID]++
		}
		for _, l := range st.Lists {
			fmt.Println(ui.RenderList(l, l.ID == st.CurrentList, counts[l.ID]))
		}
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "lists",
	Short:   "Create, rename, remove or select lists",
}

var listCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a list and make it current",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		list, err := a.state.CreateList(ctx, strings.Join(args, " "))
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Created list %s %s\n", ui.RenderPass("✓"), list.Title, ui.RenderMuted(ui.ShortID(list.ID)))
	},
}

var listRenameCmd = &cobra.Command{
	Use:   "rename <list> <title>",
	Short: "Rename a list",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		list, err := a.resolveList(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		title := strings.Join(args[1:], " ")
		if err := a.state.RenameList(ctx, list.ID, title); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Renamed %s to %s\n", ui.RenderPass("✓"), list.Title, strings.TrimSpace(title))
	},
}

var listRmCmd = &cobra.Command{
	Use:     "rm <list>",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove a list and all of its tasks",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		list, err := a.resolveList(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		force, _ := cmd.Flags().GetBool("force")
		if !force && ui.IsTerminal(os.Stdin) && !confirm(fmt.Sprintf("Remove list %q and its tasks?", list.Title)) {
			fmt.Println("Cancelled")
			return
		}
		if err := a.state.RemoveList(ctx, list.ID); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Removed list %s\n", ui.RenderPass("✓"), list.Title)
	},
}

var listUseCmd = &cobra.Command{
	Use:     "use <list>",
	Aliases: []string{"select"},
	Short:   "Make a list current",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		a := openApp(ctx)
		defer a.close(ctx)

		list, err := a.resolveList(args[0])
		if err != nil {
			fatalf("%v", err)
		}
		if err := a.state.SelectList(ctx, list.ID); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%s Now using %s\n", ui.RenderPass("✓"), list.Title)
	},
}

func init() {
	listRmCmd.Flags().BoolP("force", "f", false, "Do not ask for confirmation")

	listCmd.AddCommand(listCreateCmd, listRenameCmd, listRmCmd, listUseCmd)
	rootCmd.AddCommand(listsCmd, listCmd)
}
