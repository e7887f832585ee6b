package domain

import (
	"errors"
	"fmt"
)

// KeyPrefix namespaces every key the service writes to the store.
const KeyPrefix = "donorsearch:"

var (
	// ErrNotFound signals a missing search session.
	ErrNotFound = errors.New("search not found")
	// ErrInvalidRequest signals malformed or out-of-range input.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidConfig signals a configuration that must not be started with.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrSearchClosed signals a pass reported against a terminal session.
	ErrSearchClosed = errors.New("search already closed")
	// ErrConflict signals a concurrent pass on the same session.
	ErrConflict = errors.New("search is being updated")
)

// ValidationError wraps ErrInvalidRequest with the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidRequest.Error(), e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

// NewValidationError creates a validation error for field.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
