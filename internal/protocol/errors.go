package protocol

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by every package in this module. Callers match them with
// errors.Is; the wrapped message carries the specifics.
var (
	// ErrValidation marks malformed or out-of-range input. Never retryable.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks a reference to an unknown agent, service, order,
	// message, or knowledge entry.
	ErrNotFound = errors.New("not found")
	// ErrPermission marks an actor attempting an operation it does not own.
	ErrPermission = errors.New("permission denied")
	// ErrInvalidState marks an order transition from a terminal or
	// incompatible state.
	ErrInvalidState = errors.New("invalid state")
	// ErrStorage marks an unreachable or corrupt shared medium. This is the
	// only kind callers should retry.
	ErrStorage = errors.New("storage failure")
)

func Validationf(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func Permissionf(format string, args ...any) error {
	return wrap(ErrPermission, format, args...)
}

func InvalidStatef(format string, args ...any) error {
	return wrap(ErrInvalidState, format, args...)
}

func Storagef(format string, args ...any) error {
	return wrap(ErrStorage, format, args...)
}

func wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}
