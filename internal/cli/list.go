package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your syllabi, newest first",
		Run:   runList,
	}

	cmd.Flags().Bool("ids-only", false, "Only output syllabus ids")

	RootCmd.AddCommand(cmd)
}

type listItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Topics    int       `json:"topics"`
	CreatedAt time.Time `json:"created_at"`
	Active    bool      `json:"active"`
}

func runList(cmd *cobra.Command, args []string) {
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	a := openApp(cmd.Context())
	defer a.Close()
	repo := a.repo()

	items := repo.List()
	model.SortNewestFirst(items)
	active, _ := repo.GetActive()

	w := cmd.OutOrStdout()
	if idsOnly {
		for _, s := range items {
			fmt.Fprintln(w, s.ID)
		}
		return
	}
	if jsonOutput() {
		out := make([]listItem, 0, len(items))
		for _, s := range items {
			out = append(out, listItem{ID: s.ID, Name: s.Name, Topics: model.CountNodes(s.MindMap), CreatedAt: s.CreatedAt, Active: s.ID == active.ID})
		}
		printJSON(w, out)
		return
	}
	renderSyllabi(w, items, active.ID, time.Now())
}
