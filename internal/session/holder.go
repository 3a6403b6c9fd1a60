// Package session tracks the current identity and hands out the syllabus
// repository for it.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/store"
	"github.com/rcliao/studymap/internal/syllabus"
)

// Key is the session-scoped storage key holding the current identity. It is
// not namespaced.
const Key = "user"

// Identity name length bounds.
const (
	MinNameLength = 3
	MaxNameLength = 64
)

// ErrNotLoggedIn is returned when no identity is set.
var ErrNotLoggedIn = apperr.New(apperr.KindUnauthenticated, "not_logged_in", errors.New("please log in first"))

// ValidateName trims name and checks it can serve as a storage namespace.
// Underscores are rejected because they separate the namespace from the
// rest of each key.
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return "", apperr.Validation("name_required", "a user name is required")
	case len(name) < MinNameLength:
		return "", apperr.Validation("name_too_short", "user name must be at least %d characters", MinNameLength)
	case len(name) > MaxNameLength:
		return "", apperr.Validation("name_too_long", "user name must be at most %d characters", MaxNameLength)
	case strings.ContainsRune(name, '_'):
		return "", apperr.Validation("name_invalid", "user name must not contain underscores")
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		return "", apperr.Validation("name_invalid", "user name must not contain control characters")
	}
	return name, nil
}

// Holder is the single-user session used by the CLI. It is not safe for
// concurrent use.
type Holder struct {
	st   store.Store
	opts []syllabus.Option
	user string
	repo *syllabus.Repository
}

// NewHolder returns a logged-out holder. opts are passed to every
// repository it opens.
func NewHolder(st store.Store, opts ...syllabus.Option) *Holder {
	return &Holder{st: st, opts: opts}
}

// Restore re-attaches the identity saved by an earlier Login, if any.
func (h *Holder) Restore(ctx context.Context) error {
	name, err := h.st.Get(ctx, Key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	if name, err = ValidateName(name); err != nil {
		// A hand-edited or foreign value; treat as logged out.
		return nil
	}
	return h.attach(ctx, name)
}

// Login sets the current identity and loads its namespace.
func (h *Holder) Login(ctx context.Context, name string) error {
	name, err := ValidateName(name)
	if err != nil {
		return err
	}
	if err := h.attach(ctx, name); err != nil {
		return err
	}
	if err := h.st.Put(ctx, Key, name); err != nil {
		h.user, h.repo = "", nil
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// Logout clears the identity. Persisted syllabi are left untouched.
func (h *Holder) Logout(ctx context.Context) error {
	h.user, h.repo = "", nil
	if err := h.st.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Current returns the logged-in identity.
func (h *Holder) Current() (string, bool) {
	return h.user, h.user != ""
}

// Repository returns the logged-in identity's repository.
func (h *Holder) Repository() (*syllabus.Repository, error) {
	if h.repo == nil {
		return nil, ErrNotLoggedIn
	}
	return h.repo, nil
}

func (h *Holder) attach(ctx context.Context, name string) error {
	repo, err := syllabus.Open(ctx, h.st, name, h.opts...)
	if err != nil {
		return err
	}
	h.user, h.repo = name, repo
	return nil
}
