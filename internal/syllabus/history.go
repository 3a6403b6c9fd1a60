package syllabus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/store"
)

// History returns the tutor transcript of syllabus id, oldest turn first.
func (r *Repository) History(ctx context.Context, id string) ([]model.Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(id) < 0 {
		return nil, fmt.Errorf("history %s: %w", id, ErrNotFound)
	}
	return r.loadHistory(ctx, id)
}

// AppendTurns adds turns to the end of the transcript of syllabus id.
func (r *Repository) AppendTurns(ctx context.Context, id string, turns ...model.Turn) error {
	for _, t := range turns {
		if t.Role != model.RoleUser && t.Role != model.RoleAssistant {
			return apperr.Validation("invalid_role", "unknown turn role %q", t.Role)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(id) < 0 {
		return fmt.Errorf("append history %s: %w", id, ErrNotFound)
	}
	if len(turns) == 0 {
		return nil
	}
	history, err := r.loadHistory(ctx, id)
	if err != nil {
		return err
	}
	return r.saveHistory(ctx, id, append(history, turns...))
}

// ClearHistory removes the transcript of syllabus id.
func (r *Repository) ClearHistory(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(id) < 0 {
		return fmt.Errorf("clear history %s: %w", id, ErrNotFound)
	}
	if err := r.st.Delete(ctx, ChatKey(r.user, id)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (r *Repository) loadHistory(ctx context.Context, id string) ([]model.Turn, error) {
	raw, err := r.st.Get(ctx, ChatKey(r.user, id))
	if errors.Is(err, store.ErrNotFound) {
		return []model.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	var turns []model.Turn
	if err := json.Unmarshal([]byte(raw), &turns); err != nil {
		r.log.Warn("stored transcript is unreadable; starting a new one", "syllabus_id", id, "error", err)
		return []model.Turn{}, nil
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	return turns, nil
}

func (r *Repository) saveHistory(ctx context.Context, id string, turns []model.Turn) error {
	b, err := json.Marshal(turns)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	if err := r.st.Put(ctx, ChatKey(r.user, id), string(b)); err != nil {
		return storageErr("save history", err)
	}
	return nil
}
