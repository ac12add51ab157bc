package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for things that are simply missing. Callers match with
// errors.Is and translate to 404s or "invalid link" states.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrVersionNotFound  = errors.New("version not found")
	ErrShareNotFound    = errors.New("share link not found")
	ErrShareExpired     = errors.New("share link expired")
)

// ValidationError reports invalid input on a user-initiated action
// (empty identifier, blank title). Always surfaced, never swallowed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidation builds a ValidationError.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// PersistenceError wraps a store read/write failure. Background paths
// (autosave debounce, autosnapshot ticks) log it and flip a status
// indicator; explicit user actions propagate it.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistence wraps err as a PersistenceError for the given operation.
func NewPersistence(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// TransientNetworkError marks a realtime channel drop. The editor stays
// locally usable; the channel state machine handles reconnection.
type TransientNetworkError struct {
	Err error
}

func (e *TransientNetworkError) Error() string {
	return fmt.Sprintf("transient network error: %v", e.Err)
}

func (e *TransientNetworkError) Unwrap() error { return e.Err }
