package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the dashboard for the active syllabus and storage usage",
		Run:   runStats,
	}

	RootCmd.AddCommand(cmd)
}

type dashboard struct {
	SyllabusID   string             `json:"syllabus_id"`
	Name         string             `json:"name"`
	Stats        model.MindMapStats `json:"stats"`
	TotalSyllabi int                `json:"total_syllabi"`
}

type statsOutput struct {
	Dashboard *dashboard   `json:"dashboard,omitempty"`
	Storage   *store.Usage `json:"storage"`
}

func runStats(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context())
	defer a.Close()

	var out statsOutput
	if repo, err := a.holder.Repository(); err == nil {
		if s, ok := repo.GetActive(); ok {
			out.Dashboard = &dashboard{
				SyllabusID:   s.ID,
				Name:         s.Name,
				Stats:        model.Stats(s.MindMap),
				TotalSyllabi: len(repo.List()),
			}
		}
	}
	u, err := a.st.Usage(cmd.Context())
	if err != nil {
		exitErr("stats", err)
	}
	out.Storage = u

	w := cmd.OutOrStdout()
	if jsonOutput() {
		printJSON(w, out)
		return
	}
	if out.Dashboard != nil {
		renderDashboard(w, *out.Dashboard)
		fmt.Fprintln(w)
	}
	renderUsage(w, u)
}
