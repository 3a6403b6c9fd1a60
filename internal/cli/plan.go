package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/study"
)

func init() {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Build a day-by-day study plan up to the exam",
		Run:   runPlan,
	}

	cmd.Flags().String("exam-date", "", "Exam date YYYY-MM-DD (default: 30 days from today)")
	cmd.Flags().Int("hours", study.DefaultDailyHours, "Study hours per day (1-16)")
	cmd.Flags().String("style", string(genai.StyleBalanced), "balanced, focused, spaced_repetition or cramming")
	cmd.Flags().String("intensity", string(genai.IntensityMedium), "low, medium or high")

	RootCmd.AddCommand(cmd)
}

func parseExamDate(s string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return now.Add(study.DefaultExamLead), nil
	}
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), now.Location())
	if err != nil {
		return time.Time{}, apperr.Validation("invalid_exam_date", "exam date must look like 2006-01-02, got %q", s)
	}
	return t, nil
}

func runPlan(cmd *cobra.Command, args []string) {
	examDate, _ := cmd.Flags().GetString("exam-date")
	hours, _ := cmd.Flags().GetInt("hours")
	style, _ := cmd.Flags().GetString("style")
	intensity, _ := cmd.Flags().GetString("intensity")

	date, err := parseExamDate(examDate, time.Now())
	if err != nil {
		exitErr("plan", err)
	}

	a := openApp(cmd.Context())
	defer a.Close()
	src := a.activeSource(cmd.Context())

	plan, err := study.NewPlanner(a.generator(), study.WithLogger(a.log)).Plan(cmd.Context(), src, genai.PlanRequest{
		ExamDate:   date,
		DailyHours: hours,
		Style:      genai.StudyStyle(style),
		Intensity:  genai.Intensity(intensity),
	})
	if err != nil {
		exitErr("plan", err)
	}

	w := cmd.OutOrStdout()
	if jsonOutput() {
		printJSON(w, plan)
		return
	}
	fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("Study plan for %s", src.Name)))
	fmt.Fprintln(w, styles.Muted.Render(fmt.Sprintf("Exam %s, %d days left, %dh/day, %s, %s intensity",
		plan.ExamDate.Format(time.DateOnly), plan.DaysLeft, plan.DailyHours, plan.Style, plan.Intensity)))
	fmt.Fprintln(w)
	fmt.Fprintln(w, plan.Schedule)
}
