package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "dns failure text", err: errors.New("getaddrinfo ENOTFOUND api.perplexity.ai"), want: true},
		{name: "browser fetch failure", err: errors.New("TypeError: Failed to fetch"), want: true},
		{name: "generic network", err: errors.New("network unreachable"), want: true},
		{name: "timeout text", err: errors.New("read tcp: i/o timeout"), want: true},
		{name: "timeout marker", err: errors.New("the AI is taking a magical nap"), want: true},
		{name: "timeout error type", err: NewTimeoutError(time.Second, nil), want: true},
		{name: "deadline exceeded", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: true},
		{name: "dns error type", err: &net.DNSError{Err: "no such host", Name: "api.perplexity.ai"}, want: true},
		{name: "dial error", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, want: true},
		{name: "provider body", err: errors.New(`{"error":{"message":"Invalid model 'gpt'"}}`), want: false},
		{name: "validation error", err: NewValidationError("", "bad", nil), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNetworkError(tt.err))
		})
	}
}

func TestClassify(t *testing.T) {
	t.Run("network failures get the friendly message", func(t *testing.T) {
		err := Classify("req-1", errors.New("dial tcp: lookup api.perplexity.ai: no such host getaddrinfo"))

		var re *RepromptError
		require.True(t, errors.As(err, &re))
		assert.Equal(t, NetworkError, re.Type)
		assert.Equal(t, NetworkMessage, re.Message)
		assert.Equal(t, "req-1", re.RequestID)
	})

	t.Run("timeouts are rewritten too", func(t *testing.T) {
		err := Classify("", NewTimeoutError(60*time.Second, nil))
		assert.Equal(t, NetworkMessage, UserMessage(err))
		assert.True(t, errors.Is(err, &RepromptError{Type: TimeoutError}))
	})

	t.Run("other api errors keep their text", func(t *testing.T) {
		raw := errors.New(`{"error":"invalid api key"}`)
		err := Classify("", raw)
		assert.Equal(t, `{"error":"invalid api key"}`, UserMessage(err))
		assert.True(t, IsType(err, ProviderError))
		assert.ErrorIs(t, err, raw)
	})

	t.Run("typed errors pass through", func(t *testing.T) {
		busy := NewBusyError("", "doc")
		assert.Same(t, busy, Classify("", busy))
	})

	t.Run("cancellation is not rewritten", func(t *testing.T) {
		assert.Equal(t, context.Canceled, Classify("", context.Canceled))
	})

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, Classify("", nil))
	})
}

func TestTimeoutMessage(t *testing.T) {
	msg := TimeoutMessage(60 * time.Second)
	assert.Equal(t, "🦄 Oops! The AI is taking a magical nap (request timed out after 60 seconds). "+
		"Check your network connection, try again, or give the unicorns a little break! 🦄", msg)
}
