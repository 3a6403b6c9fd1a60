package study

import (
	"context"
	"fmt"
	"strings"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/syllabus"
)

// DisclaimerText is shown with answers that are not grounded in the syllabus.
const DisclaimerText = "This answer is not based on your syllabus and may be inaccurate."

// Reply is the tutor's answer to one question.
type Reply struct {
	Question     string `json:"question"`
	Answer       string `json:"answer"`
	FromSyllabus bool   `json:"fromSyllabus"`
}

// Disclaimer is non-empty exactly when the answer is not grounded.
func (r Reply) Disclaimer() string {
	if r.FromSyllabus {
		return ""
	}
	return DisclaimerText
}

// Tutor answers questions about one syllabus and keeps its transcript.
type Tutor struct {
	gen  genai.Generator
	repo *syllabus.Repository
	opts options
}

func NewTutor(gen genai.Generator, repo *syllabus.Repository, opts ...Option) *Tutor {
	return &Tutor{gen: gen, repo: repo, opts: buildOptions(opts)}
}

// Ask sends question with the syllabus transcript so far. The user and
// assistant turns are appended only when the answer arrives; a failure
// leaves the transcript as it was.
func (t *Tutor) Ask(ctx context.Context, src Source, question string) (*Reply, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperr.Validation("question_required", "please enter a question")
	}
	prior, err := t.repo.History(ctx, src.SyllabusID)
	if err != nil {
		return nil, err
	}
	req := genai.AnswerRequest{
		Question:   question,
		SourceText: src.Text,
		MindMap:    src.MindMap,
		PriorTurns: prior,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// The exchange is generated and recorded once per duplicate submission.
	key := debounceKey("tutor", t.repo.User(), src.SyllabusID, len(prior), question)
	res, _, err := run(ctx, t.opts.debounce, key, func(ctx context.Context) (exchange, error) {
		ans, err := t.gen.Answer(ctx, req)
		if err != nil {
			return exchange{}, err
		}
		saveErr := t.repo.AppendTurns(ctx, src.SyllabusID,
			model.Turn{Role: model.RoleUser, Content: question},
			model.Turn{Role: model.RoleAssistant, Content: ans.Answer},
		)
		return exchange{answer: ans, saveErr: saveErr}, nil
	})
	if err != nil {
		t.opts.log.Warn("tutor answer failed", "syllabus_id", src.SyllabusID, "error", err)
		return nil, err
	}
	reply := &Reply{Question: question, Answer: res.answer.Answer, FromSyllabus: res.answer.FromSyllabus}
	if res.saveErr != nil {
		t.opts.log.Error("tutor transcript not saved", "syllabus_id", src.SyllabusID, "error", res.saveErr)
		return reply, fmt.Errorf("save transcript: %w", res.saveErr)
	}
	return reply, nil
}

type exchange struct {
	answer  model.TutorAnswer
	saveErr error
}

// History returns the transcript of src.
func (t *Tutor) History(ctx context.Context, src Source) ([]model.Turn, error) {
	return t.repo.History(ctx, src.SyllabusID)
}

// Reset clears the transcript of src.
func (t *Tutor) Reset(ctx context.Context, src Source) error {
	return t.repo.ClearHistory(ctx, src.SyllabusID)
}
