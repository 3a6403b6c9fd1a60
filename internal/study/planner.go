package study

import (
	"context"
	"time"

	"github.com/rcliao/studymap/internal/genai"
)

// Form defaults.
const (
	DefaultExamLead   = 30 * 24 * time.Hour
	DefaultDailyHours = 2
)

// Plan is a generated study schedule.
type Plan struct {
	SyllabusID string           `json:"syllabus_id"`
	ExamDate   time.Time        `json:"exam_date"`
	DailyHours int              `json:"daily_hours"`
	Style      genai.StudyStyle `json:"style"`
	Intensity  genai.Intensity  `json:"intensity"`
	// DaysLeft counts whole days from today to the exam.
	DaysLeft int    `json:"days_left"`
	Schedule string `json:"schedule"`
}

// Planner generates study plans.
type Planner struct {
	gen  genai.Generator
	opts options
	now  func() time.Time
}

func NewPlanner(gen genai.Generator, opts ...Option) *Planner {
	return &Planner{gen: gen, opts: buildOptions(opts), now: time.Now}
}

// Plan validates req against today and generates the schedule.
func (p *Planner) Plan(ctx context.Context, src Source, req genai.PlanRequest) (*Plan, error) {
	req.SourceText = src.Corpus()
	if req.Today.IsZero() {
		req.Today = p.now()
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := debounceKey("plan", src.SyllabusID, req.ExamDate.Format(time.DateOnly), req.DailyHours, req.Style, req.Intensity)
	schedule, _, err := run(ctx, p.opts.debounce, key, func(ctx context.Context) (string, error) {
		return p.gen.GeneratePlan(ctx, req)
	})
	if err != nil {
		p.opts.log.Warn("plan generation failed", "syllabus_id", src.SyllabusID, "error", err)
		return nil, err
	}
	return &Plan{
		SyllabusID: src.SyllabusID,
		ExamDate:   req.ExamDate,
		DailyHours: req.DailyHours,
		Style:      req.Style,
		Intensity:  req.Intensity,
		DaysLeft:   daysBetween(req.Today, req.ExamDate),
		Schedule:   schedule,
	}, nil
}

func daysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
