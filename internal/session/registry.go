package session

import (
	"context"
	"sync"

	"github.com/rcliao/studymap/internal/store"
	"github.com/rcliao/studymap/internal/syllabus"
)

// CookieName carries the identity on HTTP requests, standing in for the
// session-scoped Key.
const CookieName = "studymap_user"

// Registry caches one repository per identity for the HTTP server. Entries
// live as long as the registry: logging out only drops the cookie, so a
// namespace is never loaded twice.
type Registry struct {
	mu    sync.Mutex
	st    store.Store
	opts  []syllabus.Option
	repos map[string]*syllabus.Repository
}

// NewRegistry returns an empty registry over st.
func NewRegistry(st store.Store, opts ...syllabus.Option) *Registry {
	return &Registry{st: st, opts: opts, repos: map[string]*syllabus.Repository{}}
}

// Repository returns the repository for name, loading it on first use.
func (r *Registry) Repository(ctx context.Context, name string) (*syllabus.Repository, error) {
	name, err := ValidateName(name)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if repo, ok := r.repos[name]; ok {
		return repo, nil
	}
	repo, err := syllabus.Open(ctx, r.st, name, r.opts...)
	if err != nil {
		return nil, err
	}
	r.repos[name] = repo
	return repo, nil
}

// Len reports how many identities are loaded.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.repos)
}
