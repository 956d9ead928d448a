package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable is returned when rows cannot be fetched or written, e.g. because the
	// request was cancelled or the backend failed.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrFamilyNotAllowed is returned when a mutation targets a column family that was never
	// created.
	ErrFamilyNotAllowed = errors.New("column family not allowed")
	// ErrInvalidRange is returned for a row range whose end sorts before its start.
	ErrInvalidRange = errors.New("invalid row range")
)

// Error wraps a sentinel error with additional context
type Error struct {
	err     error  // The underlying sentinel error
	context string // Additional error context
}

// Error satisfies the error interface
func (e *Error) Error() string {
	if e.context == "" {
		return e.err.Error()
	}
	return fmt.Sprintf("%s: %s", e.err.Error(), e.context)
}

// Unwrap implements the errors.Unwrap interface for compatibility with errors.Is/As
func (e *Error) Unwrap() error {
	return e.err
}

// NewError creates a new storage error with context. Backends outside this package use it to
// report the same sentinels.
func NewError(err error, format string, args ...interface{}) *Error {
	return &Error{
		err:     err,
		context: fmt.Sprintf(format, args...),
	}
}
