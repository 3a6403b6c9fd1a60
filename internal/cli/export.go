package cli

import (
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export your syllabi as JSON",
		Long:  "Export every syllabus of the logged-in user, with source text and tutor history, as one JSON document.",
		Run:   runExport,
	}

	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	output, _ := cmd.Flags().GetString("output")

	a := openApp(cmd.Context())
	defer a.Close()

	snap, err := a.repo().Export(cmd.Context())
	if err != nil {
		exitErr("export", err)
	}

	if output == "" {
		printJSON(cmd.OutOrStdout(), snap)
		return
	}
	f, err := os.Create(output)
	if err != nil {
		exitErr("export", err)
	}
	defer f.Close()
	printJSON(f, snap)
}
