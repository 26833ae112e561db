package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed required input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a uniqueness violation such as a taken username.
	ErrConflict = errors.New("conflict")
	// ErrSelfConfirmation is returned when an owner tries to confirm their own pin.
	ErrSelfConfirmation = errors.New("cannot confirm your own pin")
	// ErrNotFound is returned for absent records and for pins the actor cannot see.
	ErrNotFound = errors.New("not found")
	// ErrPermission is returned when the actor lacks the right to perform an operation.
	ErrPermission = errors.New("permission denied")
	// ErrUnauthenticated is returned when credentials are missing or invalid.
	ErrUnauthenticated = errors.New("authentication required")
)

// ValidationError describes one invalid field. It matches ErrValidation with errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
