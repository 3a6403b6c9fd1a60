package genai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcliao/studymap/internal/chunker"
	"github.com/rcliao/studymap/internal/model"
)

const deconstructInstructions = `You analyse exam syllabi and turn them into mind maps.
Read the attached syllabus, identify its main topics and the subtopics within each, and estimate how important each main topic is for the exam on a scale from %d (least) to %d (most).
Return mindMapData: a JSON string of the form {"topics":[{"topic":"...","definition":"one-line definition","weightage":N,"subtopics":[...]}]}.
A subtopic is either a plain string or an object of the same shape. Every main topic must carry a weightage. Keep definitions to one line.`

const quizInstructions = `You write multiple-choice quizzes from course material.
Write exactly %d questions at %s difficulty.
%s
Each question needs at least two options, the correct answer copied exactly from the options, and an explanation of why it is right and the others are wrong.
Use only the syllabus below; do not draw on outside knowledge.`

const flashcardInstructions = `You write study flashcards from course material.
Write between 5 and 10 flashcards on the topic %q. Each card has a short question or term on the front and a concise answer or definition on the back.
Focus on key concepts, definitions and formulas a student should memorise. Use only the syllabus below.`

const tutorInstructions = `You are a patient tutor helping a student understand their course material.
Answer only from the syllabus below. You may explain, summarise, compare sections and answer specific questions; lists and bold text are welcome.
If and only if the syllabus does not cover the question, answer exactly: %q and set fromSyllabus to false. Otherwise set fromSyllabus to true.
Never use outside knowledge.`

const planInstructions = `You build personalised study schedules.
Exam date: %s
Today: %s
Study hours per day: %d
Study style: %s
Intensity: %s
Allocate the syllabus topics across the days until the exam, schedule revision and leave buffer days. For each day give the topics, the time per topic and any suggested resources.
Return the schedule as readable markdown in studySchedule.`

func stringProp() map[string]any { return map[string]any{"type": "string"} }

func objectSchema(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

var (
	mindMapSchema = objectSchema(map[string]any{"mindMapData": stringProp()})

	quizSchema = objectSchema(map[string]any{
		"quiz": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"question":      stringProp(),
				"options":       map[string]any{"type": "array", "items": stringProp()},
				"correctAnswer": stringProp(),
				"explanation":   stringProp(),
			}),
		},
	})

	flashcardSchema = objectSchema(map[string]any{
		"flashcards": map[string]any{
			"type": "array",
			"items": objectSchema(map[string]any{
				"question": stringProp(),
				"answer":   stringProp(),
			}),
		},
	})

	answerSchema = objectSchema(map[string]any{
		"answer":       stringProp(),
		"fromSyllabus": map[string]any{"type": "boolean"},
	})

	planSchema = objectSchema(map[string]any{"studySchedule": stringProp()})
)

var _ Generator = (*OpenAIClient)(nil)

// material packs source text into the prompt budget.
func (c *OpenAIClient) material(text string) string {
	p := chunker.Fit(text, c.cfg.PromptBudget)
	if p.Truncated {
		c.log.Debug("source text truncated for prompt", "budget", p.Budget, "sections", p.Sections)
	}
	return "Syllabus:\n" + p.Text
}

func (c *OpenAIClient) Deconstruct(ctx context.Context, doc Document) (model.MindMap, error) {
	if err := doc.Validate(); err != nil {
		return model.MindMap{}, err
	}
	instructions := fmt.Sprintf(deconstructInstructions, c.cfg.Importance.Min, c.cfg.Importance.Max)

	content := []map[string]any{{"type": "input_text", "text": "Deconstruct this syllabus."}}
	switch {
	case doc.MIMEType == "application/pdf" && len(doc.Data) > 0:
		name := doc.Name
		if name == "" {
			name = "syllabus.pdf"
		}
		content = append(content, map[string]any{
			"type":      "input_file",
			"filename":  name,
			"file_data": doc.DataURI(),
		})
	case strings.TrimSpace(doc.Text) != "":
		content = append(content, map[string]any{"type": "input_text", "text": c.material(doc.Text)})
	default:
		content = append(content, map[string]any{"type": "input_text", "text": c.material(string(doc.Data))})
	}

	var out struct {
		MindMapData string `json:"mindMapData"`
	}
	input := []inputMessage{{Role: "system", Content: instructions}, {Role: "user", Content: content}}
	if err := c.generateJSON(ctx, "syllabus_mind_map", mindMapSchema, input, &out); err != nil {
		return model.MindMap{}, err
	}

	mm, warnings, err := model.ParseMindMap([]byte(out.MindMapData), c.cfg.Importance)
	if err != nil {
		return model.MindMap{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	for _, w := range warnings {
		c.log.Debug("mind map normalized", "path", w.Path, "detail", w.Message)
	}
	return mm, nil
}

func (c *OpenAIClient) GenerateQuiz(ctx context.Context, req QuizRequest) ([]model.QuizQuestion, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	focus := fmt.Sprintf("Focus every question on the topic %q.", req.Topic)
	if req.Topic == EntireSyllabus {
		focus = "Cover a broad range of topics from the whole syllabus."
	}
	input := []inputMessage{
		{Role: "system", Content: fmt.Sprintf(quizInstructions, req.Count, req.Difficulty, focus)},
		{Role: "user", Content: c.material(req.SourceText)},
	}

	var out struct {
		Quiz []model.QuizQuestion `json:"quiz"`
	}
	if err := c.generateJSON(ctx, "quiz", quizSchema, input, &out); err != nil {
		return nil, err
	}
	if err := CheckQuiz(out.Quiz); err != nil {
		return nil, err
	}
	return out.Quiz, nil
}

func (c *OpenAIClient) GenerateFlashcards(ctx context.Context, req FlashcardRequest) ([]model.Flashcard, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	input := []inputMessage{
		{Role: "system", Content: fmt.Sprintf(flashcardInstructions, req.Topic)},
		{Role: "user", Content: c.material(req.SourceText)},
	}

	var out struct {
		Flashcards []model.Flashcard `json:"flashcards"`
	}
	if err := c.generateJSON(ctx, "flashcards", flashcardSchema, input, &out); err != nil {
		return nil, err
	}
	if err := CheckFlashcards(out.Flashcards); err != nil {
		return nil, err
	}
	return out.Flashcards, nil
}

func (c *OpenAIClient) Answer(ctx context.Context, req AnswerRequest) (model.TutorAnswer, error) {
	if err := req.Validate(); err != nil {
		return model.TutorAnswer{}, err
	}
	material := "Syllabus outline:\n" + model.Outline(req.MindMap)
	if strings.TrimSpace(req.SourceText) != "" {
		material = c.material(req.SourceText)
	}

	input := []inputMessage{{Role: "system", Content: fmt.Sprintf(tutorInstructions, RefusalAnswer) + "\n\n" + material}}
	for _, t := range req.PriorTurns {
		input = append(input, inputMessage{Role: string(t.Role), Content: t.Content})
	}
	input = append(input, inputMessage{Role: "user", Content: req.Question})

	var out model.TutorAnswer
	if err := c.generateJSON(ctx, "tutor_answer", answerSchema, input, &out); err != nil {
		return model.TutorAnswer{}, err
	}
	if strings.TrimSpace(out.Answer) == "" {
		return model.TutorAnswer{}, fmt.Errorf("%w: empty answer", ErrMalformedResponse)
	}
	return out, nil
}

func (c *OpenAIClient) GeneratePlan(ctx context.Context, req PlanRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	today := req.Today
	if today.IsZero() {
		today = time.Now()
	}
	input := []inputMessage{
		{Role: "system", Content: fmt.Sprintf(planInstructions,
			req.ExamDate.Format("2006-01-02"), today.Format("2006-01-02"),
			req.DailyHours, req.Style, req.Intensity)},
		{Role: "user", Content: c.material(req.SourceText)},
	}

	var out struct {
		StudySchedule string `json:"studySchedule"`
	}
	if err := c.generateJSON(ctx, "study_plan", planSchema, input, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.StudySchedule) == "" {
		return "", fmt.Errorf("%w: empty schedule", ErrMalformedResponse)
	}
	return out.StudySchedule, nil
}
