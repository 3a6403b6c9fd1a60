package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a syllabus",
		Long:  "Delete a syllabus with its source text and tutor history. If it was active, the newest remaining syllabus becomes active.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context())
	defer a.Close()
	repo := a.repo()

	if err := repo.Delete(cmd.Context(), args[0]); err != nil {
		exitErr("rm", err)
	}
	active, _ := repo.GetActive()

	if jsonOutput() {
		printJSON(cmd.OutOrStdout(), map[string]any{"ok": true, "deleted": args[0], "active_id": active.ID})
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	if active.ID != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Active: %s\n", active.Name)
	}
}
