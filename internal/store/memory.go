package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a map-backed Store. Nothing survives Close.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]string
	quota int64
	size  int64
}

// NewMemoryStore returns an empty store. quota caps the total bytes of
// stored values; zero means unlimited.
func NewMemoryStore(quota int64) *MemoryStore {
	return &MemoryStore{data: map[string]string{}, quota: quota}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Put(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.size - int64(len(s.data[key])) + int64(len(value))
	if s.quota > 0 && next > s.quota {
		return ErrQuotaExceeded
	}
	s.data[key] = value
	s.size = next
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[key]; ok {
		s.size -= int64(len(v))
		delete(s.data, key)
	}
	return nil
}

func (s *MemoryStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := []string{}
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *MemoryStore) Usage(_ context.Context) (*Usage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b := newUsage("memory", s.quota)
	for _, k := range keys {
		b.add(k, int64(len(s.data[k])))
	}
	return b.done(), nil
}

func (s *MemoryStore) Close() error { return nil }
