package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/study"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the tutor about the active syllabus",
		Long: "Ask a question answered only from the active syllabus. The conversation is kept per syllabus; " +
			"use --history to read it and --reset to start over.",
		Run: runAsk,
	}

	cmd.Flags().Bool("history", false, "Print the conversation so far")
	cmd.Flags().Bool("reset", false, "Clear the conversation")

	RootCmd.AddCommand(cmd)
}

func runAsk(cmd *cobra.Command, args []string) {
	history, _ := cmd.Flags().GetBool("history")
	reset, _ := cmd.Flags().GetBool("reset")
	question := strings.Join(args, " ")

	a := openApp(cmd.Context())
	defer a.Close()
	src := a.activeSource(cmd.Context())
	w := cmd.OutOrStdout()

	// The generator is only needed for a question.
	var tutor *study.Tutor
	if question != "" {
		tutor = study.NewTutor(a.generator(), a.repo(), study.WithLogger(a.log))
	} else {
		tutor = study.NewTutor(nil, a.repo(), study.WithLogger(a.log))
	}

	switch {
	case reset:
		if err := tutor.Reset(cmd.Context(), src); err != nil {
			exitErr("reset conversation", err)
		}
		if question == "" {
			if jsonOutput() {
				printJSON(w, map[string]any{"ok": true})
			} else {
				fmt.Fprintln(w, "Conversation cleared")
			}
			return
		}
	case history:
		turns, err := tutor.History(cmd.Context(), src)
		if err != nil {
			exitErr("history", err)
		}
		if jsonOutput() {
			printJSON(w, turns)
			return
		}
		renderTurns(w, turns)
		return
	}

	if question == "" {
		exitErr("ask", fmt.Errorf("a question is required"))
	}
	reply, err := tutor.Ask(cmd.Context(), src, question)
	if err != nil && reply == nil {
		exitErr("ask", err)
	}
	if jsonOutput() {
		printJSON(w, map[string]any{"question": reply.Question, "answer": reply.Answer, "fromSyllabus": reply.FromSyllabus, "disclaimer": reply.Disclaimer()})
	} else {
		fmt.Fprintln(w, reply.Answer)
		if d := reply.Disclaimer(); d != "" {
			fmt.Fprintln(w, styles.Warning.Render(d))
		}
	}
	if err != nil {
		// Answered, but the transcript was not saved.
		exitErr("ask", err)
	}
}
