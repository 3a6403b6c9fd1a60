// Package store provides the key-value storage interface and its SQLite,
// in-memory and Redis implementations.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/rcliao/studymap/internal/apperr"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = apperr.New(apperr.KindNotFound, "key_not_found", errors.New("key not found"))

	// ErrQuotaExceeded is returned by Put when the write would exceed the
	// configured storage quota. The store is left unchanged.
	ErrQuotaExceeded = apperr.New(apperr.KindStorage, "storage_quota_exceeded", errors.New("storage quota exceeded"))
)

// Store defines the key-value storage interface. Values are opaque strings;
// callers own the encoding.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key, value string) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists keys with the given prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Usage reports key and byte counts.
	Usage(ctx context.Context) (*Usage, error)

	// Close closes the store.
	Close() error
}

// Namespace returns the identity prefix of key: the text before the first
// underscore, or the whole key when there is none.
func Namespace(key string) string {
	if i := strings.IndexByte(key, '_'); i >= 0 {
		return key[:i]
	}
	return key
}
