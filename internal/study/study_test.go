package study

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/store"
	"github.com/rcliao/studymap/internal/syllabus"
)

// fakeGen is an in-memory genai.Generator.
type fakeGen struct {
	calls atomic.Int32

	mu        sync.Mutex
	lastQuiz  genai.QuizRequest
	lastAsk   genai.AnswerRequest
	lastPlan  genai.PlanRequest
	quizErr   error
	answer    model.TutorAnswer
	answerErr error
	// empty makes quiz and flashcard generation return no items.
	empty bool

	// When set, GenerateQuiz signals entered and waits for release.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeGen) Deconstruct(context.Context, genai.Document) (model.MindMap, error) {
	f.calls.Add(1)
	return sampleMap(), nil
}

func (f *fakeGen) GenerateQuiz(_ context.Context, req genai.QuizRequest) ([]model.QuizQuestion, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastQuiz = req
	err := f.quizErr
	f.mu.Unlock()
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	if err != nil {
		return nil, err
	}
	if f.empty {
		return []model.QuizQuestion{}, nil
	}
	qs := make([]model.QuizQuestion, req.Count)
	for i := range qs {
		qs[i] = model.QuizQuestion{
			Question:      fmt.Sprintf("Q%d", i+1),
			Options:       []string{"right", "wrong"},
			CorrectAnswer: "right",
		}
	}
	return qs, nil
}

func (f *fakeGen) GenerateFlashcards(_ context.Context, req genai.FlashcardRequest) ([]model.Flashcard, error) {
	f.calls.Add(1)
	if f.empty {
		return []model.Flashcard{}, nil
	}
	return []model.Flashcard{
		{Question: "Mitosis", Answer: "Division"},
		{Question: "Meiosis", Answer: "Reduction division"},
	}, nil
}

func (f *fakeGen) Answer(_ context.Context, req genai.AnswerRequest) (model.TutorAnswer, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastAsk = req
	return f.answer, f.answerErr
}

func (f *fakeGen) GeneratePlan(_ context.Context, req genai.PlanRequest) (string, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.lastPlan = req
	f.mu.Unlock()
	return "## Day 1", nil
}

func sampleMap() model.MindMap {
	return model.MindMap{Topics: []model.Topic{
		model.Node("Cells", "Units of life", 8, model.Leaf("Mitosis"), model.Leaf("Meiosis")),
		model.Node("Genetics", "", 5),
	}}
}

func newRepo(t *testing.T) *syllabus.Repository {
	t.Helper()
	repo, err := syllabus.Open(context.Background(), store.NewMemoryStore(0), "alice")
	require.NoError(t, err)
	return repo
}

func newSource(t *testing.T, repo *syllabus.Repository, text string) Source {
	t.Helper()
	ctx := context.Background()
	_, err := repo.Create(ctx, sampleMap(), text, "Bio")
	require.NoError(t, err)
	src, err := ActiveSource(ctx, repo)
	require.NoError(t, err)
	return src
}

func TestTopicChoices(t *testing.T) {
	assert.Equal(t, []string{
		genai.EntireSyllabus,
		"Cells",
		"Cells > Mitosis",
		"Cells > Meiosis",
		"Genetics",
	}, TopicChoices(sampleMap()))
}

func TestActiveSource(t *testing.T) {
	repo := newRepo(t)
	_, err := ActiveSource(context.Background(), repo)
	assert.ErrorIs(t, err, ErrNoActiveSyllabus)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	src := newSource(t, repo, "Unit 1 Cells")
	assert.Equal(t, "Bio", src.Name)
	assert.Equal(t, "Unit 1 Cells", src.Corpus())

	again, err := SourceFor(context.Background(), repo, src.SyllabusID)
	require.NoError(t, err)
	assert.Equal(t, src, again)

	_, err = SourceFor(context.Background(), repo, "missing")
	assert.ErrorIs(t, err, syllabus.ErrNotFound)
}

func TestSource_CorpusFallsBackToOutline(t *testing.T) {
	src := Source{MindMap: sampleMap()}
	assert.Contains(t, src.Corpus(), "- Cells (importance 8): Units of life")
	assert.Contains(t, src.Corpus(), "  - Mitosis")
}

func TestQuizzer_RejectsBeforeCalling(t *testing.T) {
	gen := &fakeGen{}
	q := NewQuizzer(gen)
	_, err := q.Start(context.Background(), Source{Text: "text"}, genai.QuizRequest{
		Topic: "Cell Division", Difficulty: genai.Hard, Count: 25,
	})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Zero(t, gen.calls.Load())
}

func TestQuizzer_Session(t *testing.T) {
	gen := &fakeGen{}
	src := Source{SyllabusID: "s1", Text: "Unit 1 Cells"}
	s, err := NewQuizzer(gen).Start(context.Background(), src, genai.QuizRequest{
		Topic: genai.EntireSyllabus, Difficulty: genai.Easy, Count: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "Unit 1 Cells", gen.lastQuiz.SourceText)
	assert.Equal(t, QuizTaking, s.State)

	assert.False(t, s.Prev())
	assert.ErrorIs(t, s.Select("maybe"), ErrInvalidChoice)
	require.NoError(t, s.Select("right"))
	require.True(t, s.Next())
	require.NoError(t, s.SelectOption(1))
	require.True(t, s.Next())
	assert.False(t, s.Next())
	assert.ErrorIs(t, s.SelectOption(5), ErrInvalidChoice)
	assert.Equal(t, 2, s.Answered())

	s.Finish()
	assert.ErrorIs(t, s.Select("right"), ErrQuizFinished)
	correct, total := s.Score()
	assert.Equal(t, 1, correct)
	assert.Equal(t, 3, total)
	assert.Equal(t, 33, s.Percent())

	review := s.Review()
	assert.True(t, review[0].Correct)
	assert.Equal(t, "wrong", review[1].Selected)
	assert.False(t, review[2].Correct)
}

func TestQuizzer_DebouncesDuplicates(t *testing.T) {
	gen := &fakeGen{entered: make(chan struct{}, 1), release: make(chan struct{})}
	q := NewQuizzer(gen, WithDebouncer(NewDebouncer()))
	src := Source{SyllabusID: "s1", Text: "text"}
	req := genai.QuizRequest{Topic: "Cells", Difficulty: genai.Medium, Count: 2}

	var wg sync.WaitGroup
	results := make([]*QuizSession, 4)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := q.Start(context.Background(), src, req)
			assert.NoError(t, err)
			results[i] = s
		}()
	}
	<-gen.entered
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()

	assert.Equal(t, int32(1), gen.calls.Load())
	for _, s := range results {
		require.NotNil(t, s)
		assert.Len(t, s.Questions, 2)
	}
	// Sessions share questions but not interaction state.
	require.NoError(t, results[0].Select("right"))
	assert.Equal(t, "", results[1].Answers[0])
}

func TestRun_CallerCancellationStopsWaitingOnly(t *testing.T) {
	d := NewDebouncer()
	entered, release := make(chan struct{}), make(chan struct{})
	var done atomic.Bool

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, _, err := run(ctx, d, "k", func(ctx context.Context) (int, error) {
			close(entered)
			<-release
			done.Store(ctx.Err() == nil)
			return 1, nil
		})
		errc <- err
	}()
	<-entered
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)

	close(release)
	v, _, err := run(context.Background(), d, "k", func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Contains(t, []int{1, 2}, v)
	assert.Eventually(t, done.Load, time.Second, 5*time.Millisecond)
}

func TestEmptyGenerationIsMalformed(t *testing.T) {
	ctx := context.Background()
	src := newSource(t, newRepo(t), "Unit 1 Cells")
	gen := &fakeGen{empty: true}

	session, err := NewQuizzer(gen).Start(ctx, src, genai.QuizRequest{Topic: genai.EntireSyllabus, Difficulty: genai.Easy, Count: 3})
	assert.Nil(t, session)
	assert.ErrorIs(t, err, genai.ErrMalformedResponse)

	deck, err := NewFlashcards(gen).Deck(ctx, src, "Cells")
	assert.Nil(t, deck)
	assert.ErrorIs(t, err, genai.ErrMalformedResponse)
	assert.Equal(t, MalformedMessage, Describe(err))
}

func TestFlashcardDeck(t *testing.T) {
	gen := &fakeGen{}
	d, err := NewFlashcards(gen).Deck(context.Background(), Source{Text: "t"}, "Cells")
	require.NoError(t, err)

	assert.Equal(t, "Mitosis", d.Face())
	d.Flip()
	assert.Equal(t, "Division", d.Face())
	assert.False(t, d.Prev())
	assert.True(t, d.Next())
	assert.False(t, d.Flipped, "moving shows the front")
	assert.Equal(t, "Meiosis", d.Face())
	assert.False(t, d.Next())
	assert.Equal(t, 1, d.Index)

	_, err = NewFlashcards(gen).Deck(context.Background(), Source{Text: "t"}, " ")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestPlanner(t *testing.T) {
	gen := &fakeGen{}
	p := NewPlanner(gen)
	today := time.Date(2026, 5, 1, 22, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return today }

	plan, err := p.Plan(context.Background(), Source{SyllabusID: "s1", MindMap: sampleMap()}, genai.PlanRequest{
		ExamDate:   today.AddDate(0, 0, 14),
		DailyHours: 3,
		Style:      genai.StyleFocused,
		Intensity:  genai.IntensityHigh,
	})
	require.NoError(t, err)
	assert.Equal(t, 14, plan.DaysLeft)
	assert.Equal(t, "## Day 1", plan.Schedule)
	assert.Contains(t, gen.lastPlan.SourceText, "Cells")
	assert.Equal(t, today, gen.lastPlan.Today)

	_, err = p.Plan(context.Background(), Source{Text: "t"}, genai.PlanRequest{
		ExamDate: today, DailyHours: 3, Style: genai.StyleFocused, Intensity: genai.IntensityHigh,
	})
	assert.Equal(t, "exam_date_past", apperr.CodeOf(err))

	_, err = p.Plan(context.Background(), Source{Text: "t"}, genai.PlanRequest{
		ExamDate: today.AddDate(0, 0, 2), DailyHours: 17, Style: genai.StyleFocused, Intensity: genai.IntensityHigh,
	})
	assert.Equal(t, "invalid_daily_hours", apperr.CodeOf(err))
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestTutor_RecordsOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	src := newSource(t, repo, "Unit 1 Cells")
	gen := &fakeGen{answerErr: fmt.Errorf("%w: busy", genai.ErrServiceUnavailable)}
	tutor := NewTutor(gen, repo)

	_, err := tutor.Ask(ctx, src, "What is mitosis?")
	require.ErrorIs(t, err, genai.ErrServiceUnavailable)
	history, err := tutor.History(ctx, src)
	require.NoError(t, err)
	assert.Empty(t, history)

	gen.answerErr = nil
	gen.answer = model.TutorAnswer{Answer: "Cell division.", FromSyllabus: true}
	reply, err := tutor.Ask(ctx, src, "  What is mitosis?  ")
	require.NoError(t, err)
	assert.Equal(t, "What is mitosis?", reply.Question)
	assert.Empty(t, reply.Disclaimer())

	gen.answer = model.TutorAnswer{Answer: "And meiosis halves it.", FromSyllabus: true}
	_, err = tutor.Ask(ctx, src, "And meiosis?")
	require.NoError(t, err)
	assert.Len(t, gen.lastAsk.PriorTurns, 2)
	assert.Equal(t, "Unit 1 Cells", gen.lastAsk.SourceText)

	history, _ = tutor.History(ctx, src)
	require.Len(t, history, 4)
	assert.Equal(t, model.Turn{Role: model.RoleUser, Content: "What is mitosis?"}, history[0])
	assert.Equal(t, model.RoleAssistant, history[3].Role)

	require.NoError(t, tutor.Reset(ctx, src))
	history, _ = tutor.History(ctx, src)
	assert.Empty(t, history)
}

func TestTutor_UngroundedAnswerCarriesDisclaimer(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	src := newSource(t, repo, "")
	gen := &fakeGen{answer: model.TutorAnswer{Answer: genai.RefusalAnswer, FromSyllabus: false}}

	reply, err := NewTutor(gen, repo).Ask(ctx, src, "Who won the 1998 World Cup?")
	require.NoError(t, err)
	assert.False(t, reply.FromSyllabus)
	assert.Equal(t, DisclaimerText, reply.Disclaimer())
	assert.Equal(t, genai.RefusalAnswer, reply.Answer)
	// No text stored, so the mind map grounds the question.
	assert.Empty(t, gen.lastAsk.SourceText)
	assert.False(t, gen.lastAsk.MindMap.IsEmpty())
}

func TestTutor_EmptyQuestion(t *testing.T) {
	repo := newRepo(t)
	src := newSource(t, repo, "t")
	gen := &fakeGen{}
	_, err := NewTutor(gen, repo).Ask(context.Background(), src, "   ")
	assert.Equal(t, "question_required", apperr.CodeOf(err))
	assert.Zero(t, gen.calls.Load())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "", Describe(nil))
	assert.Equal(t, OverloadedMessage, Describe(fmt.Errorf("x: %w", genai.ErrServiceUnavailable)))
	assert.Equal(t, MalformedMessage, Describe(fmt.Errorf("%w: bad json", genai.ErrMalformedResponse)))
	assert.Equal(t, GenericMessage, Describe(errors.New("boom")))
	assert.Equal(t, "please enter a question", Describe(apperr.Validation("question_required", "please enter a question")))
	assert.Equal(t, "syllabus not found", Describe(fmt.Errorf("rename x: %w", syllabus.ErrNotFound)))
}
