// Package apperrors defines the error taxonomy shared by the service
// layer and the HTTP boundary. Handlers translate these into status codes
// in one place; everything below the boundary works with errors.Is.
package apperrors

import (
	"errors"
	"fmt"
)

var (
	// ErrAuth covers invalid, expired or unknown credentials. It never
	// says which part of the check failed.
	ErrAuth = errors.New("authentication failed")

	// ErrPermissionDenied means the principal lacks the required action on
	// the resource. Permission checks are fail-closed.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict means a state transition was attempted from an invalid
	// source status, or a concurrent transition won the compare-and-set.
	ErrConflict = errors.New("conflict")

	// ErrImmutableRole means a built-in role was targeted by an edit or
	// delete. Distinct from ErrPermissionDenied: the caller may well have
	// permission, the role itself is protected.
	ErrImmutableRole = errors.New("built-in roles cannot be modified")
)

// ValidationError marks malformed input detected by the service layer.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for a single field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFound wraps ErrNotFound with the entity kind and id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
}

// Conflict wraps ErrConflict with a human-readable cause.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}
