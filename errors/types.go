package errors

import (
	"fmt"
	"net/http"
	"time"
)

// NewError creates a new RepromptError with the given parameters.
// It is a general-purpose constructor that allows full control over
// the error's fields. For most cases, you should use one of the
// specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, "template execution failed", 500, "req_123", nil, tmplErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *RepromptError {
	return &RepromptError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewValidationError creates a validation error with appropriate defaults.
// Use this for any request validation failures, such as:
//   - An empty prompt or selection
//   - An example count outside 1..10
//   - A malformed response format
//
// Example:
//
//	err := NewValidationError("req_123", "Invalid prompt", map[string]interface{}{
//	    "field": "prompt",
//	    "error": "must not be empty",
//	})
func NewValidationError(requestID, message string, validationDetails map[string]interface{}) *RepromptError {
	return &RepromptError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusBadRequest,
		RequestID: requestID,
		Details:   validationDetails,
	}
}

// NewConfigError creates a configuration error. The most common case is a
// missing API key, reported to the user as a settings hint.
func NewConfigError(message string, err error) *RepromptError {
	return &RepromptError{
		Type:    ConfigError,
		Message: message,
		Code:    http.StatusInternalServerError,
		err:     err,
	}
}

// NewProviderError creates a provider error. The message is kept as the
// raw failure text so that callers can show it unmodified.
func NewProviderError(requestID string, message string, err error) *RepromptError {
	return &RepromptError{
		Type:      ProviderError,
		Message:   message,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewTimeoutError creates the distinguished timeout error. Its message always
// contains TimeoutMarker.
func NewTimeoutError(timeout time.Duration, err error) *RepromptError {
	return &RepromptError{
		Type:    TimeoutError,
		Message: TimeoutMessage(timeout),
		Code:    http.StatusGatewayTimeout,
		Details: map[string]interface{}{
			"timeout": timeout.String(),
		},
		err: err,
	}
}

// NewNetworkError creates a network error carrying the friendly message.
// The original failure stays reachable through Unwrap.
func NewNetworkError(requestID string, err error) *RepromptError {
	return &RepromptError{
		Type:      NetworkError,
		Message:   NetworkMessage,
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		err:       err,
	}
}

// NewBusyError creates the error returned when a document already has a
// transformation in flight.
func NewBusyError(requestID, document string) *RepromptError {
	return &RepromptError{
		Type:      BusyError,
		Message:   fmt.Sprintf("a transformation is already running for %s", document),
		Code:      http.StatusConflict,
		RequestID: requestID,
		Details: map[string]interface{}{
			"document": document,
		},
	}
}

// NewEmptyResultError creates the error returned when the completion API
// answered without content. Callers must not write anything in that case.
func NewEmptyResultError(requestID, operation string) *RepromptError {
	return &RepromptError{
		Type:      EmptyResultError,
		Message:   fmt.Sprintf("%s returned no content", operation),
		Code:      http.StatusBadGateway,
		RequestID: requestID,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewRateLimitError creates a rate limit error with appropriate defaults.
//
// Example:
//
//	err := NewRateLimitError("req_123", 30)
func NewRateLimitError(requestID string, retryAfter int) *RepromptError {
	return &RepromptError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"retry_after": retryAfter,
		},
	}
}

// NewAuthError creates an authentication error for the local HTTP service.
func NewAuthError(requestID, message string, err error) *RepromptError {
	return &RepromptError{
		Type:      AuthenticationError,
		Message:   message,
		Code:      http.StatusUnauthorized,
		RequestID: requestID,
		err:       err,
		Details: map[string]interface{}{
			"suggestion": "Send a configured key in the X-API-Key header",
		},
	}
}

// NewInternalError creates an internal error with appropriate defaults.
// Use this for unexpected errors that are not covered by other error types.
//
// Example:
//
//	err := NewInternalError("req_123", tmplErr)
func NewInternalError(requestID string, err error) *RepromptError {
	return &RepromptError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}
