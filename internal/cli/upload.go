package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/upload"
)

func init() {
	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a syllabus and build its mind map",
		Long: "Upload a PDF or plain-text syllabus (up to 5 MiB). The topics are extracted into a mind map, " +
			"the syllabus is saved and becomes the active one.",
		Args: cobra.ExactArgs(1),
		Run:  runUpload,
	}

	cmd.Flags().StringP("name", "n", "", "Display name (default: file name without extension)")

	RootCmd.AddCommand(cmd)
}

func runUpload(cmd *cobra.Command, args []string) {
	name, _ := cmd.Flags().GetString("name")

	f, err := upload.Open(args[0])
	if err != nil {
		exitErr("upload", err)
	}

	a := openApp(cmd.Context())
	defer a.Close()
	repo := a.repo()

	doc, err := f.Document()
	if err != nil {
		exitErr("read syllabus", err)
	}
	mm, err := a.generator().Deconstruct(cmd.Context(), doc)
	if err != nil {
		exitErr("analyse syllabus", err)
	}
	if name == "" {
		name = f.Stem()
	}
	s, err := repo.Create(cmd.Context(), mm, doc.Text, name)
	if err != nil {
		exitErr("save syllabus", err)
	}

	if jsonOutput() {
		printJSON(cmd.OutOrStdout(), s)
		return
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s (%s)\n", styles.Success.Render("Saved"), s.Name, styles.Muted.Render(s.ID))
	renderMindMap(w, s.Name, s.MindMap)
}
