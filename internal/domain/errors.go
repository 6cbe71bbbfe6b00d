package domain

import (
	"errors"
	"fmt"
)

// Common domain errors raised by the ranking engine.
var (
	// ErrInvalidConfig indicates that a tournament configuration was rejected
	// before any round started.
	ErrInvalidConfig = errors.New("invalid tournament configuration")

	// ErrInvalidJudgment indicates that a comparator produced a verdict the
	// engine cannot use.
	ErrInvalidJudgment = errors.New("invalid judgment")

	// ErrComparatorTimeout indicates that a single comparison exceeded its
	// per-match timeout.
	ErrComparatorTimeout = errors.New("comparator timed out")

	// ErrComparatorPanic indicates that a comparator panicked and the panic
	// was recovered by the executor.
	ErrComparatorPanic = errors.New("comparator panicked")

	// ErrUnknownPlayer indicates an outcome referencing a player that is not
	// part of the tournament.
	ErrUnknownPlayer = errors.New("unknown player")

	// ErrDuplicatePaper indicates that two candidates share an ID.
	ErrDuplicatePaper = errors.New("duplicate paper id")
)

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %v", e.Entity, e.Errors)
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// ComparatorError records why a match could not be decided. It is stored on
// error outcomes and never aborts a tournament.
type ComparatorError struct {
	PaperA   string
	PaperB   string
	Round    int
	Attempts int
	Err      error
}

// Error implements the error interface for ComparatorError.
func (e *ComparatorError) Error() string {
	return fmt.Sprintf("comparison %s vs %s (round %d) failed after %d attempt(s): %v",
		e.PaperA, e.PaperB, e.Round, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *ComparatorError) Unwrap() error { return e.Err }

// NewComparatorError wraps err with the identity of the failed match.
func NewComparatorError(m Match, attempts int, err error) *ComparatorError {
	return &ComparatorError{
		PaperA:   m.PlayerA,
		PaperB:   m.PlayerB,
		Round:    m.Round,
		Attempts: attempts,
		Err:      err,
	}
}
