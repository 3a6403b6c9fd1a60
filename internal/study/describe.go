package study

import (
	"errors"

	"github.com/rcliao/studymap/internal/apperr"
	"github.com/rcliao/studymap/internal/genai"
)

// Messages shown for collaborator failures.
const (
	OverloadedMessage = "The AI model is currently overloaded. Please try again in a few moments."
	MalformedMessage  = "The AI returned a response we could not understand. Please try again."
	GenericMessage    = "Something went wrong. Please try again."
)

// Describe turns err into a message for the user. Validation, not-found and
// storage errors carry their own text.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	if genai.IsRetryable(err) {
		return OverloadedMessage
	}
	var e *apperr.Error
	if !errors.As(err, &e) {
		return GenericMessage
	}
	switch e.Kind {
	case apperr.KindMalformed:
		return MalformedMessage
	case apperr.KindInternal:
		return GenericMessage
	}
	return e.Error()
}
