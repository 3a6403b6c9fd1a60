package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/study"
)

func init() {
	cmd := &cobra.Command{
		Use:   "flashcards",
		Short: "Study flashcards on a topic of the active syllabus",
		Long:  "Generate flashcards and print them, or step through them with --interactive (enter flips, n next, p previous, q quit).",
		Run:   runFlashcards,
	}

	cmd.Flags().StringP("topic", "t", genai.EntireSyllabus, "Topic (see: studymap topics)")
	cmd.Flags().BoolP("interactive", "i", false, "Flip through the cards on stdin")

	RootCmd.AddCommand(cmd)
}

func runFlashcards(cmd *cobra.Command, args []string) {
	topic, _ := cmd.Flags().GetString("topic")
	interactive, _ := cmd.Flags().GetBool("interactive")

	a := openApp(cmd.Context())
	defer a.Close()
	src := a.activeSource(cmd.Context())

	deck, err := study.NewFlashcards(a.generator(), study.WithLogger(a.log)).Deck(cmd.Context(), src, topic)
	if err != nil {
		exitErr("flashcards", err)
	}

	w := cmd.OutOrStdout()
	switch {
	case jsonOutput():
		printJSON(w, deck)
	case interactive:
		browseDeck(cmd.InOrStdin(), w, deck)
	default:
		fmt.Fprintln(w, styles.Title.Render(deck.Topic))
		for i, c := range deck.Cards {
			fmt.Fprintf(w, "%s %s\n", styles.Subtitle.Render(fmt.Sprintf("%d.", i+1)), c.Question)
			fmt.Fprintf(w, "   %s\n", styles.Muted.Render(c.Answer))
		}
	}
}

func browseDeck(in io.Reader, w io.Writer, d *study.FlashcardDeck) {
	sc := bufio.NewScanner(in)
	for {
		side := "front"
		if d.Flipped {
			side = "back"
		}
		fmt.Fprintln(w, styles.Subtitle.Render(fmt.Sprintf("Card %d of %d (%s)", d.Index+1, len(d.Cards), side)))
		fmt.Fprintln(w, d.Face())
		fmt.Fprint(w, styles.Muted.Render("enter flip, n next, p previous, q quit: "))
		if !sc.Scan() {
			fmt.Fprintln(w)
			return
		}
		switch strings.TrimSpace(sc.Text()) {
		case "q":
			return
		case "n":
			if !d.Next() {
				fmt.Fprintln(w, styles.Muted.Render("last card"))
			}
		case "p":
			if !d.Prev() {
				fmt.Fprintln(w, styles.Muted.Render("first card"))
			}
		default:
			d.Flip()
		}
	}
}
