package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrStateConflict indicates the entity's current state forbids the operation.
	ErrStateConflict = errors.New("state conflict")
)
