package filter

import (
	"errors"
	"fmt"
)

// ErrInvalidFilter is wrapped by every error Compile returns for a malformed filter tree.
var ErrInvalidFilter = errors.New("invalid filter")

// InvalidFilterError wraps ErrInvalidFilter with the location of the offending node.
type InvalidFilterError struct {
	err     error  // The underlying sentinel error
	Path    string // Location of the node, e.g. chain[1].cells_per_column
	Context string // Additional error context
}

// Error satisfies the error interface
func (e *InvalidFilterError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.err.Error(), e.Context)
	}
	return fmt.Sprintf("%s: %s: %s", e.err.Error(), e.Path, e.Context)
}

// Unwrap implements the errors.Unwrap interface for compatibility with errors.Is/As
func (e *InvalidFilterError) Unwrap() error {
	return e.err
}

func newInvalidFilterError(path, format string, args ...interface{}) *InvalidFilterError {
	return &InvalidFilterError{
		err:     ErrInvalidFilter,
		Path:    path,
		Context: fmt.Sprintf(format, args...),
	}
}
