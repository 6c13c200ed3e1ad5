package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

// TimeoutMarker is the reserved substring carried by every timeout error.
// Upstream callers match on it to recognise timeouts without type assertions.
const TimeoutMarker = "magical nap"

// NetworkMessage is the single user-facing message for network and timeout failures.
const NetworkMessage = "🦄 Oops! The AI couldn't reach the cloud (network error or timeout). " +
	"Check your internet connection, try again, or give the unicorns a little break! 🦄"

// TimeoutMessage renders the timeout error text for the given deadline.
func TimeoutMessage(timeout time.Duration) string {
	return fmt.Sprintf("🦄 Oops! The AI is taking a %s (request timed out after %d seconds). "+
		"Check your network connection, try again, or give the unicorns a little break! 🦄",
		TimeoutMarker, int(timeout.Round(time.Second)/time.Second))
}

// networkSubstrings are matched against error text, in addition to the
// typed checks in IsNetworkError.
var networkSubstrings = []string{
	"ENOTFOUND",
	"getaddrinfo",
	"Failed to fetch",
	"network",
	"timeout",
	TimeoutMarker,
}

// IsNetworkError reports whether err is a connectivity or timeout failure.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var re *RepromptError
	if errors.As(err, &re) && (re.Type == TimeoutError || re.Type == NetworkError) {
		return true
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := err.Error()
	for _, s := range networkSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// IsType reports whether err is a RepromptError of the given type.
func IsType(err error, errType ErrorType) bool {
	var re *RepromptError
	return errors.As(err, &re) && re.Type == errType
}

// Classify rewrites network and timeout failures into a NetworkError with the
// friendly message. RepromptErrors of any other type are returned as is, and
// any other error becomes a ProviderError whose message is the original text.
func Classify(requestID string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if IsNetworkError(err) {
		return NewNetworkError(requestID, err)
	}

	var re *RepromptError
	if errors.As(err, &re) {
		return err
	}
	return NewProviderError(requestID, err.Error(), err)
}

// UserMessage returns the text that should be shown to a person for err.
// RepromptErrors show their Message. Other errors show their full text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var re *RepromptError
	if errors.As(err, &re) {
		return re.Message
	}
	return err.Error()
}
