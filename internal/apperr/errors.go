// Package apperr holds the error kinds shared by the store, the core services
// and the HTTP layer. Every constructor wraps one of the sentinels so callers
// can classify with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrPersistence       = errors.New("persistence error")
	ErrConflict          = errors.New("conflict")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInternal          = errors.New("internal error")
)

func Validation(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, a...))
}

func NotFound(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, a...))
}

func InvalidTransition(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidTransition, fmt.Sprintf(format, a...))
}

func Conflict(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, a...))
}

func Unauthorized(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, fmt.Sprintf(format, a...))
}

// Persistence wraps a storage failure. The cause stays reachable through
// errors.Is / errors.As alongside ErrPersistence.
func Persistence(err error, format string, a ...interface{}) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrPersistence, fmt.Sprintf(format, a...))
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, fmt.Sprintf(format, a...), err)
}

// Internal wraps a failure that is neither bad input nor storage, such as a
// hashing error.
func Internal(err error, format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s: %w", ErrInternal, fmt.Sprintf(format, a...), err)
}

func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }

func IsPersistence(err error) bool { return errors.Is(err, ErrPersistence) }

func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

func IsInternal(err error) bool { return errors.Is(err, ErrInternal) }

// Kind returns a short machine-readable name for err, used in API error bodies.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return "validation_error"
	case IsNotFound(err):
		return "not_found"
	case IsInvalidTransition(err):
		return "invalid_transition"
	case IsConflict(err):
		return "conflict"
	case IsUnauthorized(err):
		return "unauthorized"
	case IsPersistence(err):
		return "persistence_error"
	default:
		return "internal_error"
	}
}
