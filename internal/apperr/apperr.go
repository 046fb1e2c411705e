// Package apperr defines the error vocabulary surfaced to clients
// (spec.md §7). Errors are plain wrapped stdlib errors in the teacher's
// idiom (fmt.Errorf with %w) tagged with a Kind so the API layer and the
// orchestrator can decide status codes and response shaping without string
// matching.
package apperr

import (
	"errors"
	"fmt"
)

// Kind enumerates the error vocabulary from spec.md §7.
type Kind string

const (
	BadRequest               Kind = "bad_request"
	Unauthorized             Kind = "unauthorized"
	Forbidden                Kind = "forbidden"
	DependencyInstallFailure Kind = "dependency_install_failure"
	ExecutionFailure         Kind = "execution_failure"
	OutputFormatFailure      Kind = "output_format_failure"
	Internal                 Kind = "internal"
)

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an *Error of the given kind around an existing error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from err, defaulting to Internal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
