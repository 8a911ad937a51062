package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel for missing rows; repositories translate
// pgx.ErrNoRows into it so callers never import pgx.
var ErrNotFound = errors.New("not found")

// ConflictError marks an operation rejected because of the current state of
// the data: a second open shift, an illegal order transition, a duplicate
// username. Callers must not retry blindly.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

func Conflictf(format string, args ...any) error {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// ValidationError marks input that can never succeed, e.g. a clock-out time
// not after the clock-in time.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

func Invalidf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
