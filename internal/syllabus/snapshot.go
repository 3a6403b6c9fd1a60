package syllabus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/store"
)

// SnapshotVersion is the current export format.
const SnapshotVersion = 1

// Snapshot is a portable copy of one identity's namespace.
type Snapshot struct {
	Version    int             `json:"version"`
	User       string          `json:"user"`
	ExportedAt time.Time       `json:"exported_at"`
	ActiveID   string          `json:"active_id,omitempty"`
	Syllabi    []SnapshotEntry `json:"syllabi"`
}

// SnapshotEntry is one syllabus with its source text and transcript. Text
// is nil when the stored blob was missing.
type SnapshotEntry struct {
	model.Syllabus
	Text    *string      `json:"text,omitempty"`
	History []model.Turn `json:"history,omitempty"`
}

// Export returns every syllabus in stored order.
func (r *Repository) Export(ctx context.Context) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := &Snapshot{
		Version:    SnapshotVersion,
		User:       r.user,
		ExportedAt: r.now().UTC(),
		ActiveID:   r.active,
		Syllabi:    make([]SnapshotEntry, 0, len(r.items)),
	}
	for _, s := range r.items {
		e := SnapshotEntry{Syllabus: s}
		text, err := r.st.Get(ctx, TextKey(r.user, s.ID))
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("export %s: %w", s.ID, err)
		default:
			e.Text = &text
		}
		history, err := r.loadHistory(ctx, s.ID)
		if err != nil {
			return nil, fmt.Errorf("export %s: %w", s.ID, err)
		}
		if len(history) > 0 {
			e.History = history
		}
		snap.Syllabi = append(snap.Syllabi, e)
	}
	return snap, nil
}

// Import adds the syllabi of snap that are not already present, keeping
// their ids, names and timestamps. Texts and transcripts are written before
// the collection; on failure they are removed and nothing is imported.
func (r *Repository) Import(ctx context.Context, snap *Snapshot) (int, error) {
	if snap == nil {
		return 0, apperr.Validation("empty_snapshot", "nothing to import")
	}
	if snap.Version > SnapshotVersion {
		return 0, apperr.Validation("unsupported_snapshot", "snapshot version %d is newer than supported version %d",
			snap.Version, SnapshotVersion)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := r.snapshot()
	seen := make(map[string]bool, len(next))
	for _, s := range next {
		seen[s.ID] = true
	}

	var written []string
	rollback := func() {
		for _, key := range written {
			if err := r.st.Delete(ctx, key); err != nil {
				r.log.Error("could not roll back import", "key", key, "error", err)
			}
		}
	}

	imported := 0
	for _, e := range snap.Syllabi {
		if e.ID == "" || e.Name == "" || seen[e.ID] {
			continue
		}
		if e.Text != nil {
			key := TextKey(r.user, e.ID)
			if err := r.st.Put(ctx, key, *e.Text); err != nil {
				rollback()
				return 0, storageErr("import source text", err)
			}
			written = append(written, key)
		}
		if len(e.History) > 0 {
			if err := r.saveHistory(ctx, e.ID, e.History); err != nil {
				rollback()
				return 0, err
			}
			written = append(written, ChatKey(r.user, e.ID))
		}
		seen[e.ID] = true
		next = append(next, e.Syllabus)
		imported++
	}
	if imported == 0 {
		return 0, nil
	}

	if err := r.persist(ctx, next); err != nil {
		rollback()
		return 0, err
	}
	r.items = next

	if r.active == "" && snap.ActiveID != "" && r.indexOf(snap.ActiveID) >= 0 {
		if err := r.st.Put(ctx, ActiveKey(r.user), snap.ActiveID); err != nil {
			r.log.Warn("could not persist active syllabus", "error", err)
		}
		r.active = snap.ActiveID
	}
	return imported, nil
}
