package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/study"
)

func init() {
	topics := &cobra.Command{
		Use:   "topics",
		Short: "List the topics you can quiz or make flashcards on",
		Run:   runTopics,
	}
	quiz := &cobra.Command{
		Use:   "quiz",
		Short: "Take a multiple-choice quiz on the active syllabus",
		Long: "Generate a multiple-choice quiz and take it. Questions are asked one by one on stdin " +
			"unless --answers gives the choices up front, e.g. --answers 2,1,,4 (blank skips).",
		Run: runQuiz,
	}

	quiz.Flags().StringP("topic", "t", genai.EntireSyllabus, "Topic (see: studymap topics)")
	quiz.Flags().String("difficulty", string(genai.Medium), "easy, medium or hard")
	quiz.Flags().IntP("count", "c", genai.DefaultQuizQuestions, "Number of questions (1-20)")
	quiz.Flags().String("answers", "", "Comma-separated option numbers, one per question")

	RootCmd.AddCommand(topics, quiz)
}

func runTopics(cmd *cobra.Command, args []string) {
	a := openApp(cmd.Context())
	defer a.Close()
	src := a.activeSource(cmd.Context())

	choices := study.TopicChoices(src.MindMap)
	if jsonOutput() {
		printJSON(cmd.OutOrStdout(), choices)
		return
	}
	for _, c := range choices {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
}

func runQuiz(cmd *cobra.Command, args []string) {
	topic, _ := cmd.Flags().GetString("topic")
	difficulty, _ := cmd.Flags().GetString("difficulty")
	count, _ := cmd.Flags().GetInt("count")
	answers, _ := cmd.Flags().GetString("answers")

	req := genai.QuizRequest{Topic: topic, Difficulty: genai.Difficulty(strings.ToLower(difficulty)), Count: count}
	if err := req.Validate(); err != nil {
		exitErr("quiz", err)
	}

	a := openApp(cmd.Context())
	defer a.Close()
	src := a.activeSource(cmd.Context())

	session, err := study.NewQuizzer(a.generator(), study.WithLogger(a.log)).Start(cmd.Context(), src, req)
	if err != nil {
		exitErr("quiz", err)
	}

	w := cmd.OutOrStdout()
	switch {
	case answers != "":
		if err := applyAnswers(session, answers); err != nil {
			exitErr("quiz", err)
		}
	case jsonOutput():
		// Nothing to read from; emit the questions for the caller to take.
		printJSON(w, session)
		return
	default:
		takeQuiz(cmd.InOrStdin(), w, session)
	}
	session.Finish()

	if jsonOutput() {
		correct, total := session.Score()
		printJSON(w, map[string]any{"correct": correct, "total": total, "percent": session.Percent(), "review": session.Review()})
		return
	}
	renderResults(w, session)
}

// applyAnswers records 1-based option numbers in question order. Blank
// entries leave a question unanswered.
func applyAnswers(s *study.QuizSession, list string) error {
	parts := strings.Split(list, ",")
	if len(parts) > len(s.Questions) {
		return apperr.Validation("too_many_answers", "got %d answers for %d questions", len(parts), len(s.Questions))
	}
	for i, p := range parts {
		s.Index = i
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return apperr.Validation("invalid_choice", "answer %d: %q is not an option number", i+1, p)
		}
		if err := s.SelectOption(n - 1); err != nil {
			return fmt.Errorf("answer %d: %w", i+1, err)
		}
	}
	s.Index = 0
	return nil
}

// takeQuiz asks each question on in. An empty line skips, "b" goes back
// and "q" finishes early.
func takeQuiz(in io.Reader, w io.Writer, s *study.QuizSession) {
	sc := bufio.NewScanner(in)
	for {
		renderQuestion(w, s.Index+1, len(s.Questions), s.Current())
		fmt.Fprint(w, styles.Muted.Render(fmt.Sprintf("answer [1-%d], enter to skip, b back, q finish: ", len(s.Current().Options))))
		if !sc.Scan() {
			fmt.Fprintln(w)
			return
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "q":
			return
		case "b":
			s.Prev()
			continue
		case "":
		default:
			n, err := strconv.Atoi(line)
			if err == nil {
				err = s.SelectOption(n - 1)
			}
			if err != nil {
				fmt.Fprintln(w, styles.Error.Render("not an option, try again"))
				continue
			}
		}
		if !s.Next() {
			return
		}
	}
}
