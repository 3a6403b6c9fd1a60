package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/config"
	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/logger"
	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/study"
	"github.com/rcliao/studymap/internal/syllabus"
)

type fakeGen struct{}

func (fakeGen) Deconstruct(ctx context.Context, doc genai.Document) (model.MindMap, error) {
	return model.MindMap{Topics: []model.Topic{
		model.Node("Biology", "Life science", 8, model.Leaf("Cells"), model.Leaf("Genetics")),
	}}, nil
}

func (fakeGen) GenerateQuiz(ctx context.Context, req genai.QuizRequest) ([]model.QuizQuestion, error) {
	return []model.QuizQuestion{
		{Question: "Unit of life?", Options: []string{"Cell", "Atom"}, CorrectAnswer: "Cell"},
		{Question: "Carrier of heredity?", Options: []string{"DNA", "ATP"}, CorrectAnswer: "DNA"},
	}, nil
}

func (fakeGen) GenerateFlashcards(ctx context.Context, req genai.FlashcardRequest) ([]model.Flashcard, error) {
	return []model.Flashcard{{Question: "Cell", Answer: "Basic unit of life"}}, nil
}

func (fakeGen) Answer(ctx context.Context, req genai.AnswerRequest) (model.TutorAnswer, error) {
	return model.TutorAnswer{Answer: "A cell is the basic unit of life.", FromSyllabus: true}, nil
}

func (fakeGen) GeneratePlan(ctx context.Context, req genai.PlanRequest) (string, error) {
	return "## Day 1\n- Cells", nil
}

func useFakeGenerator(t *testing.T) {
	t.Helper()
	orig := newGenerator
	newGenerator = func(config.Config, *logger.Logger) (genai.Generator, error) { return fakeGen{}, nil }
	t.Cleanup(func() { newGenerator = orig })
}

// execute runs the root command with fresh global flags and returns stdout.
func execute(t *testing.T, args ...string) string {
	t.Helper()
	dbPath, configPath, formatFlag, verbose, ephemeral = "", "", "text", false, false

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetIn(strings.NewReader(""))
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute())
	return out.String()
}

func TestCommandFlow(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	useFakeGenerator(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "studymap.db")
	file := filepath.Join(dir, "syllabus.txt")
	require.NoError(t, os.WriteFile(file, []byte("Unit 1: Cells\nUnit 2: Genetics\n"), 0o644))

	out := execute(t, "--db", db, "whoami")
	assert.Contains(t, out, "Not logged in")

	out = execute(t, "--db", db, "login", "alice")
	assert.Contains(t, out, "Logged in as alice")

	out = execute(t, "--db", db, "upload", file)
	assert.Contains(t, out, "Saved syllabus")
	assert.Contains(t, out, "Cells")

	var items []listItem
	require.NoError(t, json.Unmarshal([]byte(execute(t, "--db", db, "--format", "json", "list")), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "syllabus", items[0].Name)
	assert.Equal(t, 3, items[0].Topics)
	assert.True(t, items[0].Active)

	out = execute(t, "--db", db, "topics")
	assert.Equal(t, "Complete Syllabus\nBiology\nBiology > Cells\nBiology > Genetics\n", out)

	out = execute(t, "--db", db, "quiz", "--answers", "1,2")
	assert.Contains(t, out, "Score: 1/2 (50%)")

	out = execute(t, "--db", db, "ask", "What", "is", "a", "cell?")
	assert.Contains(t, out, "A cell is the basic unit of life.")
	assert.NotContains(t, out, study.DisclaimerText)

	out = execute(t, "--db", db, "plan", "--exam-date", time.Now().AddDate(0, 0, 10).Format(time.DateOnly))
	assert.Contains(t, out, "10 days left")
	assert.Contains(t, out, "## Day 1")

	var snap syllabus.Snapshot
	require.NoError(t, json.Unmarshal([]byte(execute(t, "--db", db, "export")), &snap))
	assert.Equal(t, "alice", snap.User)
	require.Len(t, snap.Syllabi, 1)
	assert.Len(t, snap.Syllabi[0].History, 2)

	out = execute(t, "--db", db, "rm", items[0].ID)
	assert.Contains(t, out, "Deleted "+items[0].ID)

	out = execute(t, "--db", db, "--format", "json", "stats")
	var stats statsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Nil(t, stats.Dashboard)
	assert.Equal(t, "sqlite", stats.Storage.Backend)

	out = execute(t, "--db", db, "logout")
	assert.Contains(t, out, "Logged out")
}

func sampleSession() *study.QuizSession {
	return study.NewQuizSession(genai.EntireSyllabus, genai.Medium, []model.QuizQuestion{
		{Question: "Q1", Options: []string{"A", "B"}, CorrectAnswer: "A"},
		{Question: "Q2", Options: []string{"C", "D"}, CorrectAnswer: "C"},
	})
}

func TestApplyAnswers(t *testing.T) {
	s := sampleSession()
	require.NoError(t, applyAnswers(s, "1, "))
	assert.Equal(t, []string{"A", ""}, s.Answers)
	assert.Equal(t, 0, s.Index)

	err := applyAnswers(sampleSession(), "x")
	assert.Equal(t, "invalid_choice", apperr.CodeOf(err))

	err = applyAnswers(sampleSession(), "3")
	assert.ErrorIs(t, err, study.ErrInvalidChoice)

	err = applyAnswers(sampleSession(), "1,1,1")
	assert.Equal(t, "too_many_answers", apperr.CodeOf(err))
}

func TestTakeQuiz(t *testing.T) {
	s := sampleSession()
	var out bytes.Buffer
	takeQuiz(strings.NewReader("2\nb\n1\n7\n\n"), &out, s)

	assert.Equal(t, []string{"A", ""}, s.Answers)
	assert.Contains(t, out.String(), "Question 1 of 2")
	assert.Contains(t, out.String(), "not an option")

	s.Finish()
	out.Reset()
	renderResults(&out, s)
	assert.Contains(t, out.String(), "Score: 1/2 (50%)")
	assert.Contains(t, out.String(), "(no answer)")
}

func TestBrowseDeck(t *testing.T) {
	d := study.NewFlashcardDeck("Cells", []model.Flashcard{
		{Question: "front 1", Answer: "back 1"},
		{Question: "front 2", Answer: "back 2"},
	})
	var out bytes.Buffer
	browseDeck(strings.NewReader("\nn\nn\nq\n"), &out, d)

	assert.Equal(t, 1, d.Index)
	assert.False(t, d.Flipped)
	assert.Contains(t, out.String(), "back 1")
	assert.Contains(t, out.String(), "last card")
}

func TestParseExamDate(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	d, err := parseExamDate("", now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(study.DefaultExamLead), d)

	d, err = parseExamDate("2026-04-15", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 4, 15, 0, 0, 0, 0, time.UTC), d)

	_, err = parseExamDate("15/04/2026", now)
	assert.Equal(t, "invalid_exam_date", apperr.CodeOf(err))
}

func TestRenderMindMap(t *testing.T) {
	mm := model.MindMap{Topics: []model.Topic{
		model.Node("Biology", "Life science", 8, model.Leaf("Cells")),
		model.Node("Chemistry", "", -1),
	}}
	var out bytes.Buffer
	renderMindMap(&out, "Science", mm)

	s := out.String()
	assert.Contains(t, s, "Science")
	assert.Contains(t, s, "[8]")
	assert.Contains(t, s, "├── ")
	assert.Contains(t, s, "│   └── Cells")
	assert.Contains(t, s, "└── Chemistry")

	out.Reset()
	renderMindMap(&out, "Empty", model.MindMap{})
	assert.Contains(t, out.String(), "(no topics)")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, study.OverloadedMessage, describe(fmt.Errorf("quiz: %w", genai.ErrServiceUnavailable)))
	assert.Equal(t, "boom", describe(fmt.Errorf("boom")))
}

func TestStyles(t *testing.T) {
	assert.NotNil(t, NewStyles(nil))
	theme := DefaultTheme()
	assert.NotEqual(t, theme.Success, theme.Error)
}
