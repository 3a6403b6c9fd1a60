package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/store"
	"github.com/rcliao/studymap/internal/study"
)

// Theme is the CLI colour palette.
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Muted     lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

func DefaultTheme() *Theme {
	return &Theme{
		Primary:   lipgloss.Color("#7C3AED"),
		Secondary: lipgloss.Color("#06B6D4"),
		Muted:     lipgloss.Color("#6C7086"),
		Success:   lipgloss.Color("#A6E3A1"),
		Warning:   lipgloss.Color("#F9E2AF"),
		Error:     lipgloss.Color("#F38BA8"),
	}
}

// Styles are the pre-built text styles used by text output.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Badge    lipgloss.Style
}

func NewStyles(theme *Theme) *Styles {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(theme.Primary),
		Subtitle: lipgloss.NewStyle().Bold(true).Foreground(theme.Secondary),
		Muted:    lipgloss.NewStyle().Foreground(theme.Muted),
		Success:  lipgloss.NewStyle().Foreground(theme.Success),
		Warning:  lipgloss.NewStyle().Foreground(theme.Warning),
		Error:    lipgloss.NewStyle().Foreground(theme.Error),
		Badge:    lipgloss.NewStyle().Bold(true).Foreground(theme.Warning),
	}
}

var styles = NewStyles(nil)

// renderMindMap draws the topics as a tree, importance first.
func renderMindMap(w io.Writer, name string, mm model.MindMap) {
	fmt.Fprintln(w, styles.Title.Render(name))
	if mm.IsEmpty() {
		fmt.Fprintln(w, styles.Muted.Render("(no topics)"))
		return
	}
	renderTopics(w, visible(mm.Topics), "")
}

func visible(topics []model.Topic) []model.Topic {
	out := make([]model.Topic, 0, len(topics))
	for _, t := range topics {
		if t.Name != "" {
			out = append(out, t)
		}
	}
	return out
}

func renderTopics(w io.Writer, topics []model.Topic, indent string) {
	for i, t := range topics {
		branch, next := "├── ", "│   "
		if i == len(topics)-1 {
			branch, next = "└── ", "    "
		}
		line := t.Name
		if t.Importance != nil {
			line = styles.Badge.Render(fmt.Sprintf("[%d]", *t.Importance)) + " " + styles.Subtitle.Render(t.Name)
		}
		if t.Definition != "" {
			line += styles.Muted.Render(" - " + t.Definition)
		}
		fmt.Fprintln(w, styles.Muted.Render(indent+branch)+line)
		renderTopics(w, visible(t.Children), indent+next)
	}
}

func renderSyllabi(w io.Writer, items []model.Syllabus, activeID string, now time.Time) {
	if len(items) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("No syllabi yet. Upload one with: studymap upload <file>"))
		return
	}
	for _, s := range items {
		marker := "  "
		if s.ID == activeID {
			marker = styles.Success.Render("* ")
		}
		fmt.Fprintf(w, "%s%s  %s  %s\n", marker, styles.Muted.Render(s.ID), styles.Title.Render(s.Name),
			styles.Muted.Render(fmt.Sprintf("%d topics, %s", model.CountNodes(s.MindMap), humanize.RelTime(s.CreatedAt, now, "ago", "from now"))))
	}
}

func renderDashboard(w io.Writer, d dashboard) {
	fmt.Fprintln(w, styles.Title.Render(d.Name))
	fmt.Fprintf(w, "Main topics:        %d\n", d.Stats.TopLevel)
	fmt.Fprintf(w, "Total topics:       %d\n", d.Stats.TotalNodes)
	fmt.Fprintf(w, "Average importance: %.1f\n", model.RoundImportance(d.Stats.AverageImportance))
	fmt.Fprintf(w, "Syllabi:            %d\n", d.TotalSyllabi)
	if len(d.Stats.Ranked) > 0 {
		fmt.Fprintln(w, styles.Subtitle.Render("By importance"))
		for _, r := range d.Stats.Ranked {
			fmt.Fprintf(w, "  %s %s\n", styles.Badge.Render(fmt.Sprintf("%2d", r.Importance)), r.Name)
		}
	}
}

func renderUsage(w io.Writer, u *store.Usage) {
	fmt.Fprintln(w, styles.Subtitle.Render("Storage"))
	fmt.Fprintf(w, "Backend: %s\n", u.Backend)
	if u.Path != "" {
		fmt.Fprintf(w, "Path:    %s (%s on disk)\n", u.Path, humanize.IBytes(uint64(u.FileBytes)))
	}
	used := humanize.IBytes(uint64(u.Bytes))
	if u.QuotaBytes > 0 {
		used += " of " + humanize.IBytes(uint64(u.QuotaBytes))
	}
	fmt.Fprintf(w, "Keys:    %s, %s\n", humanize.Comma(int64(u.Keys)), used)
}

func renderQuestion(w io.Writer, n, total int, q model.QuizQuestion) {
	fmt.Fprintln(w, styles.Subtitle.Render(fmt.Sprintf("Question %d of %d", n, total)))
	fmt.Fprintln(w, q.Question)
	for i, opt := range q.Options {
		fmt.Fprintf(w, "  %d. %s\n", i+1, opt)
	}
}

func renderResults(w io.Writer, s *study.QuizSession) {
	correct, total := s.Score()
	fmt.Fprintln(w, styles.Title.Render(fmt.Sprintf("Score: %d/%d (%d%%)", correct, total, s.Percent())))
	for i, r := range s.Review() {
		mark := styles.Success.Render("✓")
		if !r.Correct {
			mark = styles.Error.Render("✗")
		}
		fmt.Fprintf(w, "%s %d. %s\n", mark, i+1, r.Question)
		selected := r.Selected
		if selected == "" {
			selected = "(no answer)"
		}
		fmt.Fprintf(w, "   your answer: %s\n", selected)
		if !r.Correct {
			fmt.Fprintf(w, "   correct:     %s\n", styles.Success.Render(r.CorrectAnswer))
		}
		if r.Explanation != "" {
			fmt.Fprintln(w, styles.Muted.Render("   "+r.Explanation))
		}
	}
}

func renderTurns(w io.Writer, turns []model.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(w, styles.Muted.Render("No conversation yet."))
		return
	}
	for _, t := range turns {
		who := styles.Subtitle.Render("you")
		if t.Role == model.RoleAssistant {
			who = styles.Title.Render("tutor")
		}
		fmt.Fprintf(w, "%s: %s\n", who, strings.TrimSpace(t.Content))
	}
}
