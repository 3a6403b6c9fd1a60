// Package syllabus owns one identity's collection of saved syllabi, the
// active-syllabus pointer, source texts and tutor transcripts.
package syllabus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/logger"
	"github.com/rcliao/studymap/internal/model"
	"github.com/rcliao/studymap/internal/store"
)

var (
	// ErrNotFound is returned for ids that are not in the collection.
	ErrNotFound = apperr.New(apperr.KindNotFound, "syllabus_not_found", errors.New("syllabus not found"))

	// ErrStorageQuotaExceeded is returned when storage rejects a write. The
	// collection is left as it was.
	ErrStorageQuotaExceeded = apperr.New(apperr.KindStorage, "storage_quota_exceeded",
		errors.New("the item could not be saved because storage is full"))
)

// Storage keys. The layout is shared with any other client of the same
// namespace, so it must not change.
func CollectionKey(user string) string { return user + "_syllabuses" }
func TextKey(user, id string) string { return user + "_syllabus_text_" + id }
func ActiveKey(user string) string { return user + "_activeSyllabusId" }
func ChatKey(user, id string) string { return user + "_chat_" + id }
func corruptCollectionKey(user string) string { return user + "_syllabuses_corrupt" }

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// WithLogger sets the logger for storage warnings.
func WithLogger(log *logger.Logger) Option {
	return func(r *Repository) {
		if log != nil {
			r.log = log
		}
	}
}

// Repository is the syllabus collection of one identity. All methods are
// safe for concurrent use; mutations are serialized.
type Repository struct {
	mu      sync.Mutex
	st      store.Store
	user    string
	items   []model.Syllabus
	active  string
	now     func() time.Time
	entropy io.Reader
	log     *logger.Logger
}

// Open loads user's namespace from st.
func Open(ctx context.Context, st store.Store, user string, opts ...Option) (*Repository, error) {
	if strings.TrimSpace(user) == "" {
		return nil, apperr.Validation("identity_required", "a user name is required")
	}
	r := &Repository{
		st:      st,
		user:    user,
		now:     time.Now,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("user", user)

	if err := r.load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) load(ctx context.Context) error {
	raw, err := r.st.Get(ctx, CollectionKey(r.user))
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.items = nil
	case err != nil:
		return fmt.Errorf("load syllabi: %w", err)
	default:
		var items []model.Syllabus
		if err := json.Unmarshal([]byte(raw), &items); err != nil {
			r.log.Warn("stored syllabus collection is unreadable; starting empty", "error", err)
			if perr := r.st.Put(ctx, corruptCollectionKey(r.user), raw); perr != nil {
				r.log.Error("could not preserve unreadable collection", "error", perr)
			}
			items = nil
		}
		r.items = items
	}

	active, err := r.st.Get(ctx, ActiveKey(r.user))
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.active = ""
	case err != nil:
		return fmt.Errorf("load active syllabus: %w", err)
	default:
		r.active = active
	}
	if r.active != "" && r.indexOf(r.active) < 0 {
		r.active = ""
		if newest, ok := model.Newest(r.items); ok {
			r.active = newest.ID
		}
	}
	return nil
}

// User returns the identity this repository belongs to.
func (r *Repository) User() string { return r.user }

// Create saves a new syllabus and makes it active. The source text is
// written before the collection that references it; if the collection write
// fails the text is removed again.
func (r *Repository) Create(ctx context.Context, mm model.MindMap, sourceText, displayName string) (model.Syllabus, error) {
	name := strings.TrimSpace(displayName)
	if name == "" {
		return model.Syllabus{}, apperr.Validation("name_required", "a display name is required")
	}
	if mm.IsEmpty() {
		return model.Syllabus{}, apperr.Validation("empty_mind_map", "the mind map has no topics")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s := model.Syllabus{
		ID:        r.newID(),
		Name:      name,
		MindMap:   mm,
		CreatedAt: r.now().UTC(),
	}
	log := r.log.With("syllabus_id", s.ID)

	textKey := TextKey(r.user, s.ID)
	if err := r.st.Put(ctx, textKey, sourceText); err != nil {
		return model.Syllabus{}, storageErr("save source text", err)
	}

	next := append(r.snapshot(), s)
	if err := r.persist(ctx, next); err != nil {
		if derr := r.st.Delete(ctx, textKey); derr != nil {
			log.Error("could not roll back source text", "error", derr)
		}
		return model.Syllabus{}, err
	}
	r.items = next

	r.active = s.ID
	if err := r.st.Put(ctx, ActiveKey(r.user), s.ID); err != nil {
		// The collection is saved; only the selection is lost on reload.
		log.Warn("could not persist active syllabus", "error", err)
	}
	return s, nil
}

// Rename changes a syllabus' display name. Renaming to the current name
// writes nothing.
func (r *Repository) Rename(ctx context.Context, id, newName string) error {
	name := strings.TrimSpace(newName)
	if name == "" {
		return apperr.Validation("name_required", "a display name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("rename %s: %w", id, ErrNotFound)
	}
	if r.items[i].Name == name {
		return nil
	}
	next := r.snapshot()
	next[i].Name = name
	if err := r.persist(ctx, next); err != nil {
		return err
	}
	r.items = next
	return nil
}

// Delete removes a syllabus with its source text and transcript. Deleting
// the active syllabus promotes the newest remaining one.
func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	next := r.snapshot()
	next = append(next[:i], next[i+1:]...)
	if err := r.persist(ctx, next); err != nil {
		return err
	}
	r.items = next

	log := r.log.With("syllabus_id", id)
	for _, key := range []string{TextKey(r.user, id), ChatKey(r.user, id)} {
		if err := r.st.Delete(ctx, key); err != nil {
			log.Warn("could not remove syllabus data", "key", key, "error", err)
		}
	}

	if r.active != id {
		return nil
	}
	r.active = ""
	if newest, ok := model.Newest(r.items); ok {
		r.active = newest.ID
	}
	var err error
	if r.active == "" {
		err = r.st.Delete(ctx, ActiveKey(r.user))
	} else {
		err = r.st.Put(ctx, ActiveKey(r.user), r.active)
	}
	if err != nil {
		log.Warn("could not persist active syllabus", "error", err)
	}
	return nil
}

// SetActive selects id. Unknown ids are ignored.
func (r *Repository) SetActive(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(id) < 0 || r.active == id {
		return nil
	}
	if err := r.st.Put(ctx, ActiveKey(r.user), id); err != nil {
		return storageErr("save active syllabus", err)
	}
	r.active = id
	return nil
}

// List returns a copy of the collection in stored order.
func (r *Repository) List() []model.Syllabus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot()
}

// Get returns one syllabus.
func (r *Repository) Get(id string) (model.Syllabus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return model.Syllabus{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return r.items[i], nil
}

// GetActive returns the active syllabus, if any.
func (r *Repository) GetActive() (model.Syllabus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i := r.indexOf(r.active); i >= 0 {
		return r.items[i], true
	}
	return model.Syllabus{}, false
}

// Text returns the stored source text of id. A missing text blob is
// reported as ok=false, not as an error.
func (r *Repository) Text(ctx context.Context, id string) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.indexOf(id) < 0 {
		return "", false, fmt.Errorf("text %s: %w", id, ErrNotFound)
	}
	text, err := r.st.Get(ctx, TextKey(r.user, id))
	if errors.Is(err, store.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load source text: %w", err)
	}
	return text, true, nil
}

func (r *Repository) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range r.items {
		if r.items[i].ID == id {
			return i
		}
	}
	return -1
}

func (r *Repository) snapshot() []model.Syllabus {
	out := make([]model.Syllabus, len(r.items))
	copy(out, r.items)
	return out
}

func (r *Repository) persist(ctx context.Context, items []model.Syllabus) error {
	if items == nil {
		items = []model.Syllabus{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode syllabi: %w", err)
	}
	if err := r.st.Put(ctx, CollectionKey(r.user), string(b)); err != nil {
		return storageErr("save syllabi", err)
	}
	return nil
}

func (r *Repository) newID() string {
	for {
		id := ulid.MustNew(ulid.Timestamp(r.now()), r.entropy).String()
		if r.indexOf(id) < 0 {
			return id
		}
	}
}

func storageErr(op string, err error) error {
	if errors.Is(err, store.ErrQuotaExceeded) {
		return fmt.Errorf("%s: %w", op, ErrStorageQuotaExceeded)
	}
	return fmt.Errorf("%s: %w", op, err)
}
