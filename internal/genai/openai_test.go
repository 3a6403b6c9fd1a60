package genai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/model"
)

type fakeAPI struct {
	calls  atomic.Int32
	mu     sync.Mutex
	bodies []map[string]any
	reply  func(w http.ResponseWriter, attempt int)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := int(f.calls.Add(1))
	raw, _ := io.ReadAll(r.Body)
	var body map[string]any
	_ = json.Unmarshal(raw, &body)
	f.mu.Lock()
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()
	f.reply(w, n)
}

func (f *fakeAPI) body(i int) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bodies[i]
}

// writeOutput wraps payload the way the Responses API returns structured text.
func writeOutput(w http.ResponseWriter, payload any) {
	text, ok := payload.(string)
	if !ok {
		b, _ := json.Marshal(payload)
		text = string(b)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"output": []any{map[string]any{
			"type": "message",
			"role": "assistant",
			"content": []any{map[string]any{
				"type": "output_text",
				"text": text,
			}},
		}},
	})
}

func newTestClient(t *testing.T, api *fakeAPI) *OpenAIClient {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := NewOpenAIClient(OpenAIConfig{
		APIKey:     "sk-test",
		BaseURL:    srv.URL,
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return c
}

func TestNewOpenAIClient_MissingKey(t *testing.T) {
	_, err := NewOpenAIClient(OpenAIConfig{APIKey: "  "}, nil)
	assert.Error(t, err)
}

func TestDeconstruct_Text(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		inner := `{"topics":[{"topic":"Cells","definition":"Units of life","weightage":12,"subtopics":["Mitosis",{"topic":"Organelles"}]}]}`
		writeOutput(w, map[string]any{"mindMapData": inner})
	}}
	c := newTestClient(t, api)

	mm, err := c.Deconstruct(context.Background(), Document{Name: "bio.txt", MIMEType: "text/plain", Text: "Unit 1 Cells"})
	require.NoError(t, err)
	require.Len(t, mm.Topics, 1)
	top := mm.Topics[0]
	assert.Equal(t, "Cells", top.Name)
	require.NotNil(t, top.Importance)
	assert.Equal(t, 10, *top.Importance)
	assert.Len(t, top.Children, 2)

	require.Equal(t, int32(1), api.calls.Load())
	body := api.body(0)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	format := body["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, true, format["strict"])

	// Plain text travels as text; only PDFs are attached as files.
	content := body["input"].([]any)[1].(map[string]any)["content"].([]any)
	require.Len(t, content, 2)
	assert.Equal(t, "input_text", content[1].(map[string]any)["type"])
	assert.Contains(t, content[1].(map[string]any)["text"], "Unit 1 Cells")
}

func TestDeconstruct_PDFSentAsFile(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		writeOutput(w, map[string]any{"mindMapData": `{"topics":[{"topic":"Cells","weightage":5}]}`})
	}}
	c := newTestClient(t, api)

	_, err := c.Deconstruct(context.Background(), Document{Name: "bio.pdf", MIMEType: "application/pdf", Data: []byte("%PDF-1.4")})
	require.NoError(t, err)

	raw, _ := json.Marshal(api.body(0))
	assert.Contains(t, string(raw), `"input_file"`)
	assert.Contains(t, string(raw), "data:application/pdf;base64,")
	assert.Contains(t, string(raw), `"bio.pdf"`)
}

func TestDeconstruct_NoTopicsIsMalformed(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		writeOutput(w, map[string]any{"mindMapData": `{"topics":[]}`})
	}}
	c := newTestClient(t, api)

	_, err := c.Deconstruct(context.Background(), Document{MIMEType: "text/plain", Text: "x"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGenerateQuiz(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		writeOutput(w, map[string]any{"quiz": []any{map[string]any{
			"question":      "What divides?",
			"options":       []string{"Cells", "Rocks"},
			"correctAnswer": "Cells",
			"explanation":   "Rocks do not.",
		}}})
	}}
	c := newTestClient(t, api)

	qs, err := c.GenerateQuiz(context.Background(), QuizRequest{Topic: EntireSyllabus, SourceText: "text", Difficulty: Medium, Count: 1})
	require.NoError(t, err)
	require.Len(t, qs, 1)
	assert.Equal(t, "Cells", qs[0].CorrectAnswer)

	raw, _ := json.Marshal(api.body(0))
	assert.Contains(t, string(raw), "whole syllabus")
}

func TestGenerateQuiz_CountOutOfRangeMakesNoRequest(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) { writeOutput(w, "{}") }}
	c := newTestClient(t, api)

	for _, n := range []int{0, 25} {
		_, err := c.GenerateQuiz(context.Background(), QuizRequest{Topic: "Cells", SourceText: "t", Difficulty: Easy, Count: n})
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	}
	assert.Zero(t, api.calls.Load())
}

func TestGenerateQuiz_AnswerNotAmongOptions(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		writeOutput(w, map[string]any{"quiz": []any{map[string]any{
			"question": "Q", "options": []string{"A", "B"}, "correctAnswer": "C", "explanation": "",
		}}})
	}}
	c := newTestClient(t, api)

	_, err := c.GenerateQuiz(context.Background(), QuizRequest{Topic: "Cells", SourceText: "t", Difficulty: Hard, Count: 1})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGenerateFlashcards(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		writeOutput(w, map[string]any{"flashcards": []any{
			map[string]any{"question": "Mitosis", "answer": "Cell division"},
		}})
	}}
	c := newTestClient(t, api)

	cards, err := c.GenerateFlashcards(context.Background(), FlashcardRequest{Topic: "Cells", SourceText: "t"})
	require.NoError(t, err)
	assert.Equal(t, []model.Flashcard{{Question: "Mitosis", Answer: "Cell division"}}, cards)
}

func TestAnswer_RefusalAndPriorTurns(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		writeOutput(w, model.TutorAnswer{Answer: RefusalAnswer, FromSyllabus: false})
	}}
	c := newTestClient(t, api)

	got, err := c.Answer(context.Background(), AnswerRequest{
		Question:   "What is a black hole?",
		SourceText: "Unit 1 Cells",
		PriorTurns: []model.Turn{
			{Role: model.RoleUser, Content: "hi"},
			{Role: model.RoleAssistant, Content: "hello"},
		},
	})
	require.NoError(t, err)
	assert.False(t, got.FromSyllabus)
	assert.Equal(t, RefusalAnswer, got.Answer)

	input := api.body(0)["input"].([]any)
	require.Len(t, input, 4)
	assert.Equal(t, "system", input[0].(map[string]any)["role"])
	assert.Equal(t, "assistant", input[2].(map[string]any)["role"])
	assert.Equal(t, "What is a black hole?", input[3].(map[string]any)["content"])
}

func TestAnswer_FallsBackToOutline(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		writeOutput(w, model.TutorAnswer{Answer: "Cells divide.", FromSyllabus: true})
	}}
	c := newTestClient(t, api)

	mm := model.MindMap{Topics: []model.Topic{model.Node("Cells", "", 5, model.Leaf("Mitosis"))}}
	_, err := c.Answer(context.Background(), AnswerRequest{Question: "What divides?", MindMap: mm})
	require.NoError(t, err)

	system := api.body(0)["input"].([]any)[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, "Syllabus outline:")
	assert.Contains(t, system, "Mitosis")
}

func TestGeneratePlan(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		writeOutput(w, map[string]any{"studySchedule": "## Day 1\n- Cells"})
	}}
	c := newTestClient(t, api)
	today := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	plan, err := c.GeneratePlan(context.Background(), PlanRequest{
		ExamDate: today.AddDate(0, 0, 10), DailyHours: 2,
		Style: StyleSpacedRepetition, Intensity: IntensityMedium,
		SourceText: "Unit 1 Cells", Today: today,
	})
	require.NoError(t, err)
	assert.Contains(t, plan, "Day 1")

	system := api.body(0)["input"].([]any)[0].(map[string]any)["content"].(string)
	assert.Contains(t, system, "2026-03-11")
	assert.Contains(t, system, "spaced_repetition")

	_, err = c.GeneratePlan(context.Background(), PlanRequest{
		ExamDate: today, DailyHours: 2, Style: StyleBalanced, Intensity: IntensityLow,
		SourceText: "x", Today: today,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, int32(1), api.calls.Load())
}

func TestDo_OverloadedBecomesServiceUnavailable(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		http.Error(w, `{"error":{"message":"The model is overloaded"}}`, http.StatusServiceUnavailable)
	}}
	c := newTestClient(t, api)

	_, err := c.GenerateFlashcards(context.Background(), FlashcardRequest{Topic: "Cells", SourceText: "t"})
	assert.ErrorIs(t, err, ErrServiceUnavailable)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, apperr.KindUnavailable, apperr.KindOf(err))
	assert.Equal(t, int32(3), api.calls.Load())
}

func TestDo_RetriesThenSucceeds(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, attempt int) {
		if attempt == 1 {
			w.Header().Set("Retry-After", "0")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		writeOutput(w, map[string]any{"studySchedule": "plan"})
	}}
	c := newTestClient(t, api)
	today := time.Now()

	plan, err := c.GeneratePlan(context.Background(), PlanRequest{
		ExamDate: today.AddDate(0, 0, 3), DailyHours: 1, Style: StyleCramming,
		Intensity: IntensityHigh, SourceText: "t", Today: today,
	})
	require.NoError(t, err)
	assert.Equal(t, "plan", plan)
	assert.Equal(t, int32(2), api.calls.Load())
}

func TestDo_ClientErrorIsNotRetried(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) {
		http.Error(w, "bad schema", http.StatusBadRequest)
	}}
	c := newTestClient(t, api)

	_, err := c.GenerateFlashcards(context.Background(), FlashcardRequest{Topic: "Cells", SourceText: "t"})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))
	var he *httpError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusBadRequest, he.StatusCode)
	assert.Equal(t, int32(1), api.calls.Load())
}

func TestGenerateJSON_UndecodableOutput(t *testing.T) {
	api := &fakeAPI{reply: func(w http.ResponseWriter, _ int) { writeOutput(w, "not json at all") }}
	c := newTestClient(t, api)

	_, err := c.GenerateFlashcards(context.Background(), FlashcardRequest{Topic: "Cells", SourceText: "t"})
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, apperr.KindMalformed, apperr.KindOf(err))
}

func TestOutputText_Refusal(t *testing.T) {
	var resp responsesResponse
	require.NoError(t, json.Unmarshal([]byte(`{"output":[{"type":"message","role":"assistant","content":[{"type":"refusal","refusal":"no"}]}]}`), &resp))
	text, refusal := outputText(resp)
	assert.Empty(t, text)
	assert.Equal(t, "no", refusal)
}

func TestQuizRequestValidate(t *testing.T) {
	ok := QuizRequest{Topic: "Cells", Difficulty: Easy, Count: DefaultQuizQuestions}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Difficulty = "extreme"
	assert.Equal(t, "invalid_difficulty", apperr.CodeOf(bad.Validate()))

	bad = ok
	bad.Topic = strings.Repeat(" ", 3)
	assert.Equal(t, "topic_required", apperr.CodeOf(bad.Validate()))
}
