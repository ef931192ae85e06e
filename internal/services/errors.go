package services

import (
	"errors"
	"fmt"
)

// ErrInvalidInput marks caller mistakes: malformed ids, non-positive limits,
// empty interaction kinds. These are rejected before any store access.
var ErrInvalidInput = errors.New("invalid input")

// ErrUnavailable is returned when an optional collaborator is not configured.
var ErrUnavailable = errors.New("feature unavailable")

// DependencyError wraps a failure of the store, embedder or message bus.
type DependencyError struct {
	Op  string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *DependencyError) Unwrap() error {
	return e.Err
}

func dependencyError(op string, err error) error {
	return &DependencyError{Op: op, Err: err}
}

func invalidInput(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsDependencyError reports whether err was caused by an unavailable dependency.
func IsDependencyError(err error) bool {
	var depErr *DependencyError
	return errors.As(err, &depErr)
}
