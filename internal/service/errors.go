package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrValidation is returned when input is malformed or violates an invariant
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when an operation clashes with the current state
	ErrConflict = errors.New("conflict")

	// ErrNoRouteAvailable is returned when no datacenter can take the traffic
	ErrNoRouteAvailable = errors.New("no route available")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func conflictError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// newID returns a random identifier with a readable prefix
func newID(prefix string) string {
	return prefix + "-" + uuid.NewString()
}
