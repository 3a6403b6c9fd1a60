// Package genai defines the content-generation contract (mind maps, quizzes,
// flashcards, tutor answers, study plans) and an OpenAI-backed client.
package genai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/model"
)

// EntireSyllabus is the quiz topic meaning "cover everything".
const EntireSyllabus = "Complete Syllabus"

// RefusalAnswer is the tutor's reply when the material does not cover the
// question.
const RefusalAnswer = "I could not find information about this topic in the provided syllabus."

// Quiz size bounds.
const (
	MinQuizQuestions     = 1
	MaxQuizQuestions     = 20
	DefaultQuizQuestions = 5
)

// Daily study hour bounds.
const (
	MinDailyHours = 1
	MaxDailyHours = 16
)

var (
	// ErrServiceUnavailable marks transient failures: the service is
	// overloaded, rate limited or unreachable. Retrying later may succeed.
	ErrServiceUnavailable = apperr.New(apperr.KindUnavailable, "service_unavailable",
		errors.New("the content service is temporarily unavailable"))

	// ErrMalformedResponse marks output that does not have the expected
	// shape. Nothing from such a response is used.
	ErrMalformedResponse = apperr.New(apperr.KindMalformed, "malformed_response",
		errors.New("the content service returned an unexpected response"))
)

// IsRetryable reports whether err is worth retrying later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

// Generator produces study material. Every call is one request and one
// complete response.
type Generator interface {
	Deconstruct(ctx context.Context, doc Document) (model.MindMap, error)
	GenerateQuiz(ctx context.Context, req QuizRequest) ([]model.QuizQuestion, error)
	GenerateFlashcards(ctx context.Context, req FlashcardRequest) ([]model.Flashcard, error)
	Answer(ctx context.Context, req AnswerRequest) (model.TutorAnswer, error)
	GeneratePlan(ctx context.Context, req PlanRequest) (string, error)
}

// Document is an uploaded syllabus file.
type Document struct {
	Name     string
	MIMEType string
	Data     []byte
	// Text is the extracted plain text, if any.
	Text string
}

// DataURI encodes the document as data:<mime>;base64,<data>.
func (d Document) DataURI() string {
	return "data:" + d.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(d.Data)
}

// Validate checks the document before it is sent anywhere.
func (d Document) Validate() error {
	if len(d.Data) == 0 && strings.TrimSpace(d.Text) == "" {
		return apperr.Validation("empty_document", "the document is empty")
	}
	if d.MIMEType == "" {
		return apperr.Validation("unknown_type", "the document type is unknown")
	}
	return nil
}

// Difficulty of a quiz.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// Difficulties lists the accepted values.
var Difficulties = []Difficulty{Easy, Medium, Hard}

// QuizRequest asks for multiple-choice questions on Topic.
type QuizRequest struct {
	Topic      string
	SourceText string
	Difficulty Difficulty
	Count      int
}

// Validate rejects out-of-range requests. Count is never clamped.
func (r QuizRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return apperr.Validation("topic_required", "please select a topic")
	}
	if !slices.Contains(Difficulties, r.Difficulty) {
		return apperr.Validation("invalid_difficulty", "difficulty must be easy, medium or hard, got %q", r.Difficulty)
	}
	if r.Count < MinQuizQuestions || r.Count > MaxQuizQuestions {
		return apperr.Validation("invalid_question_count", "number of questions must be between %d and %d, got %d",
			MinQuizQuestions, MaxQuizQuestions, r.Count)
	}
	return nil
}

// FlashcardRequest asks for flashcards on Topic.
type FlashcardRequest struct {
	Topic      string
	SourceText string
}

func (r FlashcardRequest) Validate() error {
	if strings.TrimSpace(r.Topic) == "" {
		return apperr.Validation("topic_required", "please select a topic")
	}
	return nil
}

// AnswerRequest is a tutor question grounded in SourceText, or in MindMap
// when no text is available.
type AnswerRequest struct {
	Question   string
	SourceText string
	MindMap    model.MindMap
	PriorTurns []model.Turn
}

func (r AnswerRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return apperr.Validation("question_required", "please enter a question")
	}
	if strings.TrimSpace(r.SourceText) == "" && r.MindMap.IsEmpty() {
		return apperr.Validation("material_required", "there is no syllabus material to answer from")
	}
	return nil
}

// StudyStyle is how the plan distributes study sessions.
type StudyStyle string

const (
	StyleBalanced         StudyStyle = "balanced"
	StyleFocused          StudyStyle = "focused"
	StyleSpacedRepetition StudyStyle = "spaced_repetition"
	StyleCramming         StudyStyle = "cramming"
)

// StudyStyles lists the accepted values.
var StudyStyles = []StudyStyle{StyleBalanced, StyleFocused, StyleSpacedRepetition, StyleCramming}

// Intensity of a study plan.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// Intensities lists the accepted values.
var Intensities = []Intensity{IntensityLow, IntensityMedium, IntensityHigh}

// PlanRequest asks for a day-by-day schedule up to ExamDate.
type PlanRequest struct {
	ExamDate   time.Time
	DailyHours int
	Style      StudyStyle
	Intensity  Intensity
	SourceText string
	// Today defaults to the current date.
	Today time.Time
}

func (r PlanRequest) Validate() error {
	today := r.Today
	if today.IsZero() {
		today = time.Now()
	}
	if r.ExamDate.IsZero() {
		return apperr.Validation("exam_date_required", "please pick an exam date")
	}
	if !dateOnly(r.ExamDate).After(dateOnly(today)) {
		return apperr.Validation("exam_date_past", "the exam date must be in the future")
	}
	if r.DailyHours < MinDailyHours || r.DailyHours > MaxDailyHours {
		return apperr.Validation("invalid_daily_hours", "daily study hours must be between %d and %d, got %d",
			MinDailyHours, MaxDailyHours, r.DailyHours)
	}
	if !slices.Contains(StudyStyles, r.Style) {
		return apperr.Validation("invalid_style", "unknown study style %q", r.Style)
	}
	if !slices.Contains(Intensities, r.Intensity) {
		return apperr.Validation("invalid_intensity", "unknown intensity %q", r.Intensity)
	}
	if strings.TrimSpace(r.SourceText) == "" {
		return apperr.Validation("material_required", "there is no syllabus material to plan from")
	}
	return nil
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// CheckQuiz verifies every question is usable.
func CheckQuiz(qs []model.QuizQuestion) error {
	if len(qs) == 0 {
		return fmt.Errorf("%w: no questions", ErrMalformedResponse)
	}
	for i, q := range qs {
		if strings.TrimSpace(q.Question) == "" {
			return fmt.Errorf("%w: question %d is empty", ErrMalformedResponse, i+1)
		}
		if len(q.Options) < 2 {
			return fmt.Errorf("%w: question %d has %d options", ErrMalformedResponse, i+1, len(q.Options))
		}
		if !slices.Contains(q.Options, q.CorrectAnswer) {
			return fmt.Errorf("%w: question %d answer is not among its options", ErrMalformedResponse, i+1)
		}
	}
	return nil
}

// CheckFlashcards verifies every card has both sides.
func CheckFlashcards(cards []model.Flashcard) error {
	if len(cards) == 0 {
		return fmt.Errorf("%w: no flashcards", ErrMalformedResponse)
	}
	for i, c := range cards {
		if strings.TrimSpace(c.Question) == "" || strings.TrimSpace(c.Answer) == "" {
			return fmt.Errorf("%w: flashcard %d is incomplete", ErrMalformedResponse, i+1)
		}
	}
	return nil
}
