package study

import (
	"context"

	"github.com/rcliao/studymap/internal/genai"
	"github.com/rcliao/studymap/internal/model"
)

// Flashcards generates decks.
type Flashcards struct {
	gen  genai.Generator
	opts options
}

func NewFlashcards(gen genai.Generator, opts ...Option) *Flashcards {
	return &Flashcards{gen: gen, opts: buildOptions(opts)}
}

// Deck generates cards on topic and opens a deck on the first card.
func (f *Flashcards) Deck(ctx context.Context, src Source, topic string) (*FlashcardDeck, error) {
	req := genai.FlashcardRequest{Topic: topic, SourceText: src.Corpus()}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	cards, _, err := run(ctx, f.opts.debounce, debounceKey("flashcards", src.SyllabusID, topic),
		func(ctx context.Context) ([]model.Flashcard, error) {
			cards, err := f.gen.GenerateFlashcards(ctx, req)
			if err != nil {
				return nil, err
			}
			return cards, genai.CheckFlashcards(cards)
		})
	if err != nil {
		f.opts.log.Warn("flashcard generation failed", "syllabus_id", src.SyllabusID, "topic", topic, "error", err)
		return nil, err
	}
	return NewFlashcardDeck(topic, cards), nil
}

// FlashcardDeck steps through cards. Moving clamps at both ends and shows
// the front of the new card.
type FlashcardDeck struct {
	Topic   string            `json:"topic"`
	Cards   []model.Flashcard `json:"cards"`
	Index   int               `json:"index"`
	Flipped bool              `json:"flipped"`
}

func NewFlashcardDeck(topic string, cards []model.Flashcard) *FlashcardDeck {
	return &FlashcardDeck{Topic: topic, Cards: cards}
}

// Current returns the card at Index.
func (d *FlashcardDeck) Current() model.Flashcard { return d.Cards[d.Index] }

// Face is the visible side of the current card.
func (d *FlashcardDeck) Face() string {
	if d.Flipped {
		return d.Current().Answer
	}
	return d.Current().Question
}

func (d *FlashcardDeck) Flip() { d.Flipped = !d.Flipped }

func (d *FlashcardDeck) Next() bool {
	if d.Index >= len(d.Cards)-1 {
		return false
	}
	d.Index++
	d.Flipped = false
	return true
}

func (d *FlashcardDeck) Prev() bool {
	if d.Index == 0 {
		return false
	}
	d.Index--
	d.Flipped = false
	return true
}
