// Package errors provides the error handling system for reprompt.
// It includes structured error types, JSON response formatting, request ID
// tracking, the network/timeout classifier used to build friendly messages,
// and integrated logging with Uber's zap logger.
//
// The package is used by the API client, the transformation orchestrator,
// the CLI and the HTTP service so that every surface reports failures the
// same way:
//
//   - Structured JSON error responses with type information
//   - A reserved timeout marker that upstream callers can recognise
//   - One friendly message for every network or timeout failure
//   - Integrated logging with zap
//
// Basic usage:
//
//	// Simple error response
//	errors.Error(w, "Something went wrong", http.StatusBadRequest)
//
//	// Type-specific error with context
//	errors.ErrorWithType(w, "Invalid input", errors.ValidationError, http.StatusBadRequest)
//
// For more complex scenarios, use the constructors in types.go:
//
//	err := errors.NewValidationError(requestID, "count out of range", map[string]interface{}{
//	    "field": "count",
//	    "error": "must be between 1 and 10",
//	})
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the module.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// If nil is provided, the function will do nothing to prevent
// accidentally disabling logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType represents the categories of errors that can occur while
// transforming prompts. Each type maps to an HTTP status code and to the
// way the CLI reports the failure.
type ErrorType string

const (
	// ValidationError represents input validation failures
	ValidationError ErrorType = "validation_error"

	// ConfigError represents configuration-related errors, such as a missing API key
	ConfigError ErrorType = "config_error"

	// ProviderError represents errors returned by the completion API
	ProviderError ErrorType = "provider_error"

	// TimeoutError represents a completion call that exceeded its deadline
	TimeoutError ErrorType = "timeout_error"

	// NetworkError represents a failure to reach the completion API
	NetworkError ErrorType = "network_error"

	// BusyError represents a transformation rejected because another one
	// is already running for the same document
	BusyError ErrorType = "busy_error"

	// EmptyResultError represents a completion that returned no content
	EmptyResultError ErrorType = "empty_result"

	// RateLimitError represents rate limiting errors
	RateLimitError ErrorType = "rate_limit_error"

	// AuthenticationError represents API key authentication failures on the local service
	AuthenticationError ErrorType = "authentication_error"

	// NotFoundError represents resource not found errors
	NotFoundError ErrorType = "not_found"

	// InternalError represents unexpected internal errors
	InternalError ErrorType = "internal_error"
)

// RepromptError is our custom error type that implements the error interface
// and provides additional context about the error. It is designed to be
// serialized to JSON for API responses while maintaining internal error
// context for logging and debugging.
type RepromptError struct {
	// Type categorizes the error for client handling
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific request
	RequestID string `json:"request_id"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	// err is the underlying error (not exposed in JSON)
	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *RepromptError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *RepromptError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *RepromptError) Is(target error) bool {
	t, ok := target.(*RepromptError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WriteError formats and writes a RepromptError to an http.ResponseWriter.
// It sets the appropriate content type and status code, then writes
// the error as a JSON response.
func WriteError(w http.ResponseWriter, err *RepromptError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	json.NewEncoder(w).Encode(err)
}

// Error is a drop-in replacement for http.Error that creates and writes
// a RepromptError with the InternalError type. It automatically includes
// the request ID from the response headers if available.
func Error(w http.ResponseWriter, message string, code int) {
	ErrorWithType(w, message, InternalError, code)
}

// ErrorWithType is like Error but allows specifying the error type.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	requestID := w.Header().Get("X-Request-ID")
	err := &RepromptError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
	}
	WriteError(w, err)
}
