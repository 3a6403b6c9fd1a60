package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_Wrapped(t *testing.T) {
	base := New(KindNotFound, "syllabus_not_found", errors.New("syllabus not found"))
	wrapped := fmt.Errorf("rename: %w", base)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, "syllabus_not_found", CodeOf(wrapped))
	assert.True(t, errors.Is(wrapped, base))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(wrapped))
}

func TestKindOf_PlainError(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "internal_error", CodeOf(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestValidation(t *testing.T) {
	err := Validation("bad_count", "count must be between %d and %d", 1, 20)
	assert.Equal(t, "count must be between 1 and 20", err.Error())
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))
}

func TestHTTPStatus_Kinds(t *testing.T) {
	cases := map[Kind]int{
		KindUnauthenticated: http.StatusUnauthorized,
		KindConflict:        http.StatusConflict,
		KindUnavailable:     http.StatusServiceUnavailable,
		KindMalformed:       http.StatusBadGateway,
		KindStorage:         http.StatusInsufficientStorage,
	}
	for kind, want := range cases {
		assert.Equal(t, want, HTTPStatus(New(kind, "", nil)), kind.String())
	}
}

func TestError_MessageFallbacks(t *testing.T) {
	assert.Equal(t, "quota_exceeded", New(KindStorage, "quota_exceeded", nil).Error())
	assert.Equal(t, "storage error", New(KindStorage, "", nil).Error())
}
