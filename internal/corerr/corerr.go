// Package corerr implements the classified error taxonomy of spec.md §7.
// Core operations return a *CoreError for every failure a caller must
// branch on, so that ControlServer can map it to an HTTP status code
// and the Runner can decide whether to retry. Unexpected storage or
// encoding errors pass through unwrapped; ControlServer treats those as
// Internal.
package corerr

import (
	"errors"
	"fmt"
)

// Kind classifies why a Core operation failed.
type Kind string

const (
	// KindNotFound: the referenced session/queue/task does not exist.
	KindNotFound Kind = "not_found"
	// KindPrecondition: the operation is invalid for the entity's
	// current state (e.g. completing a task that isn't running).
	KindPrecondition Kind = "precondition"
	// KindValidation: malformed input (empty summary, bad timeout,
	// unknown tool, duplicate queue name).
	KindValidation Kind = "validation"
	// KindConflict: an optimistic-concurrency loss (two claimers, one
	// loses). Recovered locally by the caller; never surfaced as fatal.
	KindConflict Kind = "conflict"
	// KindTransient: the store is busy/locked. Core does not retry it;
	// it is returned to the caller as-is.
	KindTransient Kind = "transient"
	// KindInternal: unexpected failure.
	KindInternal Kind = "internal"
)

// CoreError is the error type returned by every Core and Store
// operation that can fail in a way a caller must branch on.
type CoreError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *CoreError) Unwrap() error { return e.Cause }

// ErrConflict is the sentinel used for optimistic-concurrency loss,
// playing the role beads' ErrAlreadyClaimed plays for its ClaimIssue
// compare-and-swap: a distinguishable marker the caller checks with
// errors.Is rather than string-matching.
var ErrConflict = errors.New("conflict: lost the race for this task")

// NotFound builds a NotFound CoreError, e.g. NotFound("task", id).
func NotFound(kind, id string) *CoreError {
	return &CoreError{Kind: KindNotFound, Message: fmt.Sprintf("%s %q not found", kind, id)}
}

// Precondition builds a Precondition CoreError naming the observed
// status, per spec.md §7 ("with the observed status included").
func Precondition(msg string) *CoreError {
	return &CoreError{Kind: KindPrecondition, Message: msg}
}

// Validation builds a Validation CoreError.
func Validation(msg string) *CoreError {
	return &CoreError{Kind: KindValidation, Message: msg}
}

// Conflict builds a Conflict CoreError wrapping ErrConflict.
func Conflict(msg string) *CoreError {
	return &CoreError{Kind: KindConflict, Message: msg, Cause: ErrConflict}
}

// Transient builds a Transient CoreError wrapping the underlying cause.
func Transient(msg string, cause error) *CoreError {
	return &CoreError{Kind: KindTransient, Message: msg, Cause: cause}
}

// Internal builds an Internal CoreError wrapping the underlying cause.
func Internal(msg string, cause error) *CoreError {
	return &CoreError{Kind: KindInternal, Message: msg, Cause: cause}
}

// Is reports whether err is a CoreError of the given Kind.
func Is(err error, kind Kind) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}
