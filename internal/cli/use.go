package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	use := &cobra.Command{
		Use:   "use <id>",
		Short: "Make a syllabus the active one",
		Args:  cobra.ExactArgs(1),
		Run:   runUse,
	}
	rename := &cobra.Command{
		Use:   "rename <id> <name>",
		Short: "Rename a syllabus",
		Args:  cobra.ExactArgs(2),
		Run:   runRename,
	}

	RootCmd.AddCommand(use, rename)
}

func runUse(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context())
	defer a.Close()
	repo := a.repo()

	if err := repo.SetActive(cmd.Context(), args[0]); err != nil {
		exitErr("use", err)
	}
	s, _ := repo.GetActive()
	if jsonOutput() {
		printJSON(cmd.OutOrStdout(), map[string]any{"ok": true, "active_id": s.ID, "name": s.Name})
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Active: %s\n", styles.Title.Render(s.Name))
}

func runRename(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context())
	defer a.Close()
	repo := a.repo()

	if err := repo.Rename(cmd.Context(), args[0], args[1]); err != nil {
		exitErr("rename", err)
	}
	s, err := repo.Get(args[0])
	if err != nil {
		exitErr("rename", err)
	}
	if jsonOutput() {
		printJSON(cmd.OutOrStdout(), map[string]any{"ok": true, "id": s.ID, "name": s.Name})
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %s\n", s.ID, styles.Title.Render(s.Name))
}
