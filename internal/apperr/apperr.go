// Package apperr defines the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds. Services wrap these; handlers map them to HTTP statuses with errors.Is.
var (
	// ErrUnauthenticated means no valid identity is attached to the request.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the identity is valid but lacks the privilege or ownership.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation means the caller supplied malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound means the resource is absent or not visible to the caller.
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable means the backing store timed out or failed. Retryable.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrInvalidCredentials means login failed. Unknown email and wrong password are not distinguished.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict means a uniqueness constraint was violated.
	ErrConflict = errors.New("conflict")
)

// ValidationError reports which input field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidation creates a ValidationError for field.
func NewValidation(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// StoreUnavailable wraps a store failure so it matches ErrStoreUnavailable
// while keeping the cause for logs.
func StoreUnavailable(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, cause)
}
