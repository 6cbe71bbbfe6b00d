package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/papernavigator/papernav/internal/ports"
)

// Errors returned by providers and the client.
var (
	ErrEmptyAPIKey      = errors.New("API key cannot be empty")
	ErrEmptyResponse    = errors.New("empty response from API")
	ErrNoResponseChoice = errors.New("no response choices returned")
)

// ErrorType classifies provider failures so middleware can decide whether
// a request is worth repeating.
type ErrorType int

// Error categories.
const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	ErrorTypeContentPolicy
	ErrorTypeNetwork
	ErrorTypeTimeout
)

// String returns the snake_case name of t.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeAuthentication:
		return "authentication"
	case ErrorTypeRateLimit:
		return "rate_limit"
	case ErrorTypeBadRequest:
		return "bad_request"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeServerError:
		return "server_error"
	case ErrorTypeContentPolicy:
		return "content_policy"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ProviderError is a provider failure normalized across SDKs.
type ProviderError struct {
	Type       ErrorType
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	msg := e.Provider + " error"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	msg += " [" + e.Type.String() + "]"
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the SDK error.
func (e *ProviderError) Unwrap() error { return e.Err }

// Is lets callers match a ProviderError against the infrastructure sentinels
// in ports, e.g. errors.Is(err, ports.ErrRateLimited).
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ports.ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ports.ErrServiceUnavailable:
		return e.Type == ErrorTypeServerError || e.Type == ErrorTypeNetwork
	case ports.ErrTimeout:
		return e.Type == ErrorTypeTimeout
	}
	return false
}

// IsRetryable reports whether the failure is transient.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	default:
		return false
	}
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, typ ErrorType, status int, message string, err error) *ProviderError {
	return &ProviderError{Type: typ, Provider: provider, StatusCode: status, Message: message, Err: err}
}

// IsRetryable reports whether err is worth another attempt. Errors that do
// not carry a classification are retried; authentication, bad request and
// content policy failures are not, and neither is an open circuit.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return true
}

// classifyStatus maps an HTTP status code from provider name to a
// ProviderError.
func classifyStatus(provider string, status int, message string, err error) *ProviderError {
	var typ ErrorType
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		typ = ErrorTypeAuthentication
		message = provider + " authentication failed"
	case status == http.StatusTooManyRequests:
		typ = ErrorTypeRateLimit
		message = provider + " rate limit exceeded"
	case status == http.StatusNotFound:
		typ = ErrorTypeNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		typ = ErrorTypeTimeout
	case status >= 500:
		typ = ErrorTypeServerError
	case status >= 400:
		typ = ErrorTypeBadRequest
	default:
		typ = ErrorTypeUnknown
	}
	return NewProviderError(provider, typ, status, message, err)
}

// classifyContext maps a context error, or returns nil when err is not one.
func classifyContext(provider string, err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return NewProviderError(provider, ErrorTypeTimeout, 0, "context deadline exceeded", err)
	case errors.Is(err, context.Canceled):
		return NewProviderError(provider, ErrorTypeNetwork, 0, "request canceled", err)
	}
	return nil
}
