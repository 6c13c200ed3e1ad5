package mocks

import (
	"context"
	"sync"

	"github.com/teilomillet/reprompt/sonar"
)

// MockCompleter implements sonar.Completer for tests without making API calls.
//
// Key features:
// 1. Configurable responses through CompleteFunc
// 2. Every request is recorded for later inspection
// 3. Honors context cancellation before answering
//
// Example usage:
//
//	completer := NewMockCompleter(func(ctx context.Context, req *sonar.ChatRequest) (*sonar.ChatResponse, error) {
//	    return Reply("structured prompt"), nil
//	})
type MockCompleter struct {
	CompleteFunc func(context.Context, *sonar.ChatRequest) (*sonar.ChatResponse, error)

	mu       sync.Mutex
	requests []*sonar.ChatRequest
}

// Verify at compile time that MockCompleter implements sonar.Completer
var _ sonar.Completer = (*MockCompleter)(nil)

// NewMockCompleter creates a MockCompleter. If completeFunc is nil every call
// answers with an empty completion.
func NewMockCompleter(completeFunc func(context.Context, *sonar.ChatRequest) (*sonar.ChatResponse, error)) *MockCompleter {
	return &MockCompleter{CompleteFunc: completeFunc}
}

// NewStaticCompleter answers every call with content.
func NewStaticCompleter(content string) *MockCompleter {
	return NewMockCompleter(func(context.Context, *sonar.ChatRequest) (*sonar.ChatResponse, error) {
		return Reply(content), nil
	})
}

// ChatCompletions records req and delegates to CompleteFunc.
func (m *MockCompleter) ChatCompletions(ctx context.Context, req *sonar.ChatRequest) (*sonar.ChatResponse, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return Reply(""), nil
}

// Requests returns the requests received so far.
func (m *MockCompleter) Requests() []*sonar.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*sonar.ChatRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request, or nil.
func (m *MockCompleter) LastRequest() *sonar.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Reply builds a single-choice response carrying content.
func Reply(content string) *sonar.ChatResponse {
	return &sonar.ChatResponse{
		ID:    "mock-completion",
		Model: sonar.DefaultModel,
		Choices: []sonar.Choice{{
			Index:   0,
			Message: sonar.Message{Role: sonar.RoleAssistant, Content: content},
		}},
	}
}
