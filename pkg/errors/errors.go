// Package errors provides coded, user-facing errors for chatdash.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes for categorizing errors.
const (
	ErrConfig = "CONFIG"
	ErrProbe  = "PROBE"
	ErrStore  = "STORE"
	ErrServer = "SERVER"
)

// Error is a structured error with a code, message, suggestion and optional cause.
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a structured error with the given code, message and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{Code: code, Message: message, Suggestion: suggestion}
}

// WrapWithCode wraps err with a code, message and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{Code: code, Message: message, Suggestion: suggestion, Cause: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s: %s", e.Code, e.Message))
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %s", e.Cause.Error()))
	}
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf(" (%s)", e.Suggestion))
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err is, or wraps, an *Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var cdErr *Error
	if errors.As(err, &cdErr) {
		return cdErr.Code == code
	}
	return false
}
