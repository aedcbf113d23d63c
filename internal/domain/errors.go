package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrHoldingNotFound is returned when an operation names a symbol that is not held.
var ErrHoldingNotFound = errors.New("holding not found")

// ValidationError reports caller input (or a fetched value) that cannot be used.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// NewValidationError builds a ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// FetchError wraps a failure of the primary price source call.
type FetchError struct {
	Op      string
	Symbols []string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s failed for [%s]: %v", e.Op, strings.Join(e.Symbols, ","), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MigrationError describes why a persisted passive block could not be migrated.
// It is logged, never returned to callers of the migrator.
type MigrationError struct {
	Version interface{}
	Reason  string
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("cannot migrate passive investment state (version %v): %s", e.Version, e.Reason)
}

// ConversionError wraps a failed currency conversion.
type ConversionError struct {
	From string
	To   string
	Err  error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert %s->%s: %v", e.From, e.To, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsFetchError reports whether err is (or wraps) a FetchError.
func IsFetchError(err error) bool {
	var f *FetchError
	return errors.As(err, &f)
}
