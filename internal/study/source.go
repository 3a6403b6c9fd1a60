// Package study holds the derived views built on the active syllabus:
// quizzes, flashcards, study plans and the tutor. Views keep only transient
// interaction state; the tutor transcript is the one thing persisted.
package study

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/syllabus"
)

// ErrNoActiveSyllabus is returned when a view needs a syllabus and none is
// selected.
var ErrNoActiveSyllabus = apperr.New(apperr.KindConflict, "no_active_syllabus",
	errors.New("please upload or select a syllabus first"))

// Source is the material a view generates from.
type Source struct {
	SyllabusID string
	Name       string
	MindMap    model.MindMap
	// Text is the stored source text; empty when the blob is missing.
	Text string
}

// Corpus is the text sent to the generator. When the source text is missing
// the mind map outline stands in.
func (s Source) Corpus() string {
	if strings.TrimSpace(s.Text) != "" {
		return s.Text
	}
	return model.Outline(s.MindMap)
}

// ActiveSource loads the active syllabus of repo with its text.
func ActiveSource(ctx context.Context, repo *syllabus.Repository) (Source, error) {
	active, ok := repo.GetActive()
	if !ok {
		return Source{}, ErrNoActiveSyllabus
	}
	return load(ctx, repo, active)
}

// SourceFor loads syllabus id of repo with its text.
func SourceFor(ctx context.Context, repo *syllabus.Repository, id string) (Source, error) {
	s, err := repo.Get(id)
	if err != nil {
		return Source{}, err
	}
	return load(ctx, repo, s)
}

func load(ctx context.Context, repo *syllabus.Repository, s model.Syllabus) (Source, error) {
	text, _, err := repo.Text(ctx, s.ID)
	if err != nil {
		return Source{}, fmt.Errorf("load source %s: %w", s.ID, err)
	}
	return Source{SyllabusID: s.ID, Name: s.Name, MindMap: s.MindMap, Text: text}, nil
}
