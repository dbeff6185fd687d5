package domain

import (
	"errors"
	"fmt"
)

// Error kinds returned by the booking and billing core. Every error raised by
// a service wraps exactly one of them; callers classify with errors.Is.
var (
	ErrValidation    = errors.New("validation error")
	ErrCapacity      = errors.New("capacity error")
	ErrState         = errors.New("state error")
	ErrAuthorization = errors.New("authorization error")
	ErrNotFound      = errors.New("not found")
	ErrUpstream      = errors.New("upstream error")
	// ErrConflict reports a conditional write that lost a race.
	ErrConflict = errors.New("conflict")
)

func Validationf(format string, args ...any) error {
	return wrapf(ErrValidation, format, args...)
}

func Capacityf(format string, args ...any) error {
	return wrapf(ErrCapacity, format, args...)
}

func Statef(format string, args ...any) error {
	return wrapf(ErrState, format, args...)
}

func Authorizationf(format string, args ...any) error {
	return wrapf(ErrAuthorization, format, args...)
}

func NotFoundf(format string, args ...any) error {
	return wrapf(ErrNotFound, format, args...)
}

// Upstreamf wraps cause (may be nil) as an upstream failure.
func Upstreamf(cause error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if cause == nil {
		return fmt.Errorf("%w: %s", ErrUpstream, msg)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, msg, cause)
}

func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
