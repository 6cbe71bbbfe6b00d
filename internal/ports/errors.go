package ports

import (
	"errors"
	"fmt"
)

// Common infrastructure errors that can occur during external service
// interactions.
var (
	// ErrRateLimited indicates that the service has rate limited the request.
	ErrRateLimited = errors.New("rate limited")

	// ErrServiceUnavailable indicates that the external service is unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidResponse indicates that the service returned an invalid
	// response.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrBudgetExceeded indicates that a configured call budget is spent.
	ErrBudgetExceeded = errors.New("budget exceeded")
)

// LLMError represents an error from an LLM-backed operation.
type LLMError struct {
	// Model is the identifier of the LLM model that generated the error.
	Model string

	// Operation is the name of the operation that failed.
	Operation string

	// Err is the underlying error that occurred.
	Err error
}

// Error implements the error interface for LLMError.
func (e *LLMError) Error() string {
	return fmt.Sprintf("LLM error: model=%s, operation=%s, err=%v", e.Model, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *LLMError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried.
func (e *LLMError) IsRetryable() bool {
	return errors.Is(e.Err, ErrRateLimited) ||
		errors.Is(e.Err, ErrServiceUnavailable) ||
		errors.Is(e.Err, ErrTimeout)
}

// NewLLMError creates a new LLMError with the given details.
func NewLLMError(model, operation string, err error) *LLMError {
	return &LLMError{
		Model:     model,
		Operation: operation,
		Err:       err,
	}
}
