package study

import (
	"context"
	"errors"
	"math"
	"slices"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/model"
)

// TopicChoices lists the quiz and flashcard topics of m: the whole-syllabus
// sentinel followed by every breadcrumb in pre-order.
func TopicChoices(m model.MindMap) []string {
	out := []string{genai.EntireSyllabus}
	for p := range model.TopicPaths(m, model.DefaultPathSeparator) {
		out = append(out, p)
	}
	return out
}

// Quizzer generates quizzes.
type Quizzer struct {
	gen  genai.Generator
	opts options
}

func NewQuizzer(gen genai.Generator, opts ...Option) *Quizzer {
	return &Quizzer{gen: gen, opts: buildOptions(opts)}
}

// Start validates req, generates the questions and opens a session on them.
// An invalid request never reaches the generator.
func (q *Quizzer) Start(ctx context.Context, src Source, req genai.QuizRequest) (*QuizSession, error) {
	req.SourceText = src.Corpus()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	key := debounceKey("quiz", src.SyllabusID, req.Topic, req.Difficulty, req.Count)
	qs, shared, err := run(ctx, q.opts.debounce, key, func(ctx context.Context) ([]model.QuizQuestion, error) {
		qs, err := q.gen.GenerateQuiz(ctx, req)
		if err != nil {
			return nil, err
		}
		return qs, genai.CheckQuiz(qs)
	})
	if err != nil {
		q.opts.log.Warn("quiz generation failed", "syllabus_id", src.SyllabusID, "topic", req.Topic, "error", err)
		return nil, err
	}
	q.opts.log.Debug("quiz generated", "syllabus_id", src.SyllabusID, "questions", len(qs), "shared", shared)
	return NewQuizSession(req.Topic, req.Difficulty, qs), nil
}

// QuizState is the phase of a quiz session.
type QuizState string

const (
	QuizTaking  QuizState = "taking"
	QuizResults QuizState = "results"
)

var (
	ErrQuizFinished  = apperr.New(apperr.KindConflict, "quiz_finished", errors.New("the quiz is already finished"))
	ErrInvalidChoice = apperr.New(apperr.KindValidation, "invalid_choice", errors.New("that answer is not one of the options"))
)

// QuizSession is the transient state of one quiz attempt. It is not safe
// for concurrent use.
type QuizSession struct {
	Topic      string               `json:"topic"`
	Difficulty genai.Difficulty     `json:"difficulty"`
	Questions  []model.QuizQuestion `json:"questions"`
	// Answers holds the selected option per question; "" is unanswered.
	Answers []string  `json:"answers"`
	Index   int       `json:"index"`
	State   QuizState `json:"state"`
}

func NewQuizSession(topic string, difficulty genai.Difficulty, qs []model.QuizQuestion) *QuizSession {
	return &QuizSession{
		Topic:      topic,
		Difficulty: difficulty,
		Questions:  qs,
		Answers:    make([]string, len(qs)),
		State:      QuizTaking,
	}
}

// Current is the question at Index.
func (s *QuizSession) Current() model.QuizQuestion {
	return s.Questions[s.Index]
}

// Select records choice for the current question.
func (s *QuizSession) Select(choice string) error {
	if s.State != QuizTaking {
		return ErrQuizFinished
	}
	if !slices.Contains(s.Current().Options, choice) {
		return ErrInvalidChoice
	}
	s.Answers[s.Index] = choice
	return nil
}

// SelectOption records the i-th option (0-based) of the current question.
func (s *QuizSession) SelectOption(i int) error {
	opts := s.Current().Options
	if i < 0 || i >= len(opts) {
		return ErrInvalidChoice
	}
	return s.Select(opts[i])
}

// Next moves forward and reports whether it moved.
func (s *QuizSession) Next() bool {
	if s.State != QuizTaking || s.Index >= len(s.Questions)-1 {
		return false
	}
	s.Index++
	return true
}

// Prev moves back and reports whether it moved.
func (s *QuizSession) Prev() bool {
	if s.State != QuizTaking || s.Index == 0 {
		return false
	}
	s.Index--
	return true
}

// Answered counts questions with a selection.
func (s *QuizSession) Answered() int {
	n := 0
	for _, a := range s.Answers {
		if a != "" {
			n++
		}
	}
	return n
}

// Finish ends the attempt. Unanswered questions count as wrong.
func (s *QuizSession) Finish() {
	s.State = QuizResults
}

// Score counts correct answers.
func (s *QuizSession) Score() (correct, total int) {
	for i, q := range s.Questions {
		if s.Answers[i] == q.CorrectAnswer {
			correct++
		}
	}
	return correct, len(s.Questions)
}

// Percent is the score as a whole percentage.
func (s *QuizSession) Percent() int {
	correct, total := s.Score()
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// QuestionResult is one row of the results review.
type QuestionResult struct {
	model.QuizQuestion
	Selected string `json:"selected"`
	Correct  bool   `json:"correct"`
}

// Review pairs each question with the selection made.
func (s *QuizSession) Review() []QuestionResult {
	out := make([]QuestionResult, len(s.Questions))
	for i, q := range s.Questions {
		out[i] = QuestionResult{QuizQuestion: q, Selected: s.Answers[i], Correct: s.Answers[i] == q.CorrectAnswer}
	}
	return out
}
