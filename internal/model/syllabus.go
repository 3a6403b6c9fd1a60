package model

import (
	"sort"
	"time"
)

// Syllabus is one uploaded document and the mind map derived from it. The
// source text is stored separately.
type Syllabus struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MindMap   MindMap   `json:"mindMap"`
	CreatedAt time.Time `json:"createdAt"`
}

// SortNewestFirst orders by creation time, newest first. Ties fall back to
// the id, which is time-ordered.
func SortNewestFirst(items []Syllabus) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})
}

// Newest returns the most recently created syllabus.
func Newest(items []Syllabus) (Syllabus, bool) {
	if len(items) == 0 {
		return Syllabus{}, false
	}
	best := items[0]
	for _, s := range items[1:] {
		if s.CreatedAt.After(best.CreatedAt) || (s.CreatedAt.Equal(best.CreatedAt) && s.ID > best.ID) {
			best = s
		}
	}
	return best, true
}

// Role is the speaker of a tutor turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a tutor transcript.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// QuizQuestion is a multiple-choice question. CorrectAnswer is one of Options.
type QuizQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// Flashcard has a question on the front and the answer on the back.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// TutorAnswer is the tutor's reply. FromSyllabus is false when the answer
// could not be grounded in the supplied material.
type TutorAnswer struct {
	Answer       string `json:"answer"`
	FromSyllabus bool   `json:"fromSyllabus"`
}
