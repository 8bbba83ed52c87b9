package store

import "errors"

var (
	// ErrNotFound is returned when a record does not exist, or exists
	// under a different owner. Callers cannot tell the two apart.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when a user insert violates the
	// email uniqueness constraint.
	ErrDuplicateEmail = errors.New("email already registered")
)
