package validation

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTiktoken implements a mock tokenizer for testing
type mockTiktoken struct {
	countTokens func(string) int
}

func (m *mockTiktoken) Encode(text string, allowedSpecial, disallowedSpecial []string) []int {
	tokens := make([]int, m.countTokens(text))
	for i := range tokens {
		tokens[i] = i
	}
	return tokens
}

func (m *mockTiktoken) Decode(tokens []int) string {
	return ""
}

func (m *mockTiktoken) CountTokens(text string) int {
	return m.countTokens(text)
}

// wordCounter counts whitespace-separated words as tokens.
func wordCounter() *TokenCounter {
	return NewTokenCounterWithTokenizer(&mockTiktoken{countTokens: func(s string) int {
		return len(strings.Fields(s))
	}})
}

func newRequest(contentType, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/transform", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req
}

func TestDecodeAndValidate(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name        string
		contentType string
		body        string
		dst         func() interface{}
		wantCode    int
		wantKey     string
	}{
		{
			name:        "valid transform",
			contentType: "application/json",
			body:        `{"prompt": "write a parser", "search_context_size": "high"}`,
			dst:         func() interface{} { return &TransformBody{} },
		},
		{
			name:        "charset parameter is accepted",
			contentType: "application/json; charset=utf-8",
			body:        `{"prompt": "x"}`,
			dst:         func() interface{} { return &RunBody{} },
		},
		{
			name:        "missing content type",
			contentType: "",
			body:        `{"prompt": "x"}`,
			dst:         func() interface{} { return &RunBody{} },
			wantCode:    http.StatusBadRequest,
			wantKey:     "header:Content-Type",
		},
		{
			name:        "malformed json",
			contentType: "application/json",
			body:        `{"prompt": `,
			dst:         func() interface{} { return &RunBody{} },
			wantCode:    http.StatusBadRequest,
			wantKey:     "body",
		},
		{
			name:        "unknown field",
			contentType: "application/json",
			body:        `{"prompt": "x", "temperature": 0.2}`,
			dst:         func() interface{} { return &RunBody{} },
			wantCode:    http.StatusBadRequest,
			wantKey:     "body",
		},
		{
			name:        "missing prompt",
			contentType: "application/json",
			body:        `{}`,
			dst:         func() interface{} { return &TransformBody{} },
			wantCode:    http.StatusUnprocessableEntity,
			wantKey:     "prompt",
		},
		{
			name:        "bad context size",
			contentType: "application/json",
			body:        `{"prompt": "x", "search_context_size": "huge"}`,
			dst:         func() interface{} { return &TransformBody{} },
			wantCode:    http.StatusUnprocessableEntity,
			wantKey:     "search_context_size",
		},
		{
			name:        "examples count too high",
			contentType: "application/json",
			body:        `{"text": "<instruction>x</instruction>", "count": 11}`,
			dst:         func() interface{} { return &ExamplesBody{} },
			wantCode:    http.StatusUnprocessableEntity,
			wantKey:     "count",
		},
		{
			name:        "examples from selection only",
			contentType: "application/json",
			body:        `{"selection": "summarise a log file"}`,
			dst:         func() interface{} { return &ExamplesBody{} },
		},
		{
			name:        "examples with neither text nor selection",
			contentType: "application/json",
			body:        `{"count": 2}`,
			dst:         func() interface{} { return &ExamplesBody{} },
			wantCode:    http.StatusUnprocessableEntity,
			wantKey:     "text",
		},
		{
			name:        "blank score text passes",
			contentType: "application/json",
			body:        `{"text": ""}`,
			dst:         func() interface{} { return &ScoreBody{} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.DecodeAndValidate(newRequest(tt.contentType, tt.body), tt.dst())
			if tt.wantCode == 0 {
				assert.Nil(t, err)
				return
			}
			require.NotNil(t, err)
			assert.Equal(t, tt.wantCode, err.Code)
			assert.Contains(t, err.Details, tt.wantKey)
		})
	}
}

func TestDecodeAndValidateTokenLimit(t *testing.T) {
	v := NewValidator(WithTokenLimit(3, "sonar"), WithCounter(wordCounter()))

	var ok RunBody
	assert.Nil(t, v.DecodeAndValidate(newRequest("application/json", `{"prompt": "one two three"}`), &ok))

	var tooLong RunBody
	err := v.DecodeAndValidate(newRequest("application/json", `{"prompt": "one two three four"}`), &tooLong)
	require.NotNil(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, err.Code)
	assert.Equal(t, "Token limit exceeded", err.Message)
	assert.Equal(t, 3, err.Details["limit"])
}

func TestTokenLimitDisabled(t *testing.T) {
	// No counter is built when the limit is off
	v := NewValidator(WithTokenLimit(0, "sonar"))
	var body RunBody
	assert.Nil(t, v.DecodeAndValidate(newRequest("application/json", `{"prompt": "a b c d e f"}`), &body))
	assert.Nil(t, v.counter)
}

func TestTokenCounter(t *testing.T) {
	tc := wordCounter()
	assert.Equal(t, 4, tc.CountText("a quick brown fox"))

	tests := []struct {
		name    string
		text    string
		max     int
		wantErr string
	}{
		{name: "within limit", text: "a b", max: 2},
		{name: "over limit", text: "a b c", max: 2, wantErr: "prompt tokens (3) exceeds the limit (2)"},
		{name: "invalid limit", text: "a", max: 0, wantErr: "invalid max_prompt_tokens"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tc.ValidateTokens(tt.text, tt.max)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
