package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/study"
)

func init() {
	cmd := &cobra.Command{
		Use:   "show [id]",
		Short: "Show a syllabus mind map",
		Long:  "Show the mind map of the given syllabus, or of the active one.",
		Args:  cobra.MaximumNArgs(1),
		Run:   runShow,
	}

	cmd.Flags().Bool("outline", false, "Print a plain indented outline")

	RootCmd.AddCommand(cmd)
}

func runShow(cmd *cobra.Command, args []string) {
	outline, _ := cmd.Flags().GetBool("outline")

	a := openApp(cmd.Context())
	defer a.Close()

	var src study.Source
	if len(args) == 1 {
		var err error
		if src, err = study.SourceFor(cmd.Context(), a.repo(), args[0]); err != nil {
			exitErr("show", err)
		}
	} else {
		src = a.activeSource(cmd.Context())
	}

	w := cmd.OutOrStdout()
	switch {
	case jsonOutput():
		printJSON(w, map[string]any{"id": src.SyllabusID, "name": src.Name, "mindMap": src.MindMap})
	case outline:
		fmt.Fprintln(w, model.Outline(src.MindMap))
	default:
		renderMindMap(w, src.Name, src.MindMap)
	}
}
