package variables

import "errors"

// Domain errors for the custom variable store.
var (
	// ErrNotFound is returned when deleting a variable that does not exist.
	ErrNotFound = errors.New("variables: not found")

	// ErrInvalidName is returned for an empty variable name.
	ErrInvalidName = errors.New("variables: invalid name")

	// ErrPersistence wraps a failed save. The store logs it and keeps the
	// in-memory change.
	ErrPersistence = errors.New("variables: persistence failure")
)
