package validation

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// FallbackEncoding is used when tiktoken does not know the model name.
// Sonar models are not in tiktoken's table, so this is the common case.
const FallbackEncoding = "cl100k_base"

// Tokenizer defines the interface for token counting
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
	CountTokens(text string) int
}

// tiktokenWrapper wraps tiktoken to implement our Tokenizer interface
type tiktokenWrapper struct {
	*tiktoken.Tiktoken
}

func (t *tiktokenWrapper) CountTokens(text string) int {
	tokens := t.Encode(text, nil, nil)
	return len(tokens)
}

// TransformBody is the body of POST /v1/transform.
type TransformBody struct {
	Prompt            string `json:"prompt" validate:"required"`
	Document          string `json:"document,omitempty" validate:"omitempty,max=1024"`
	InferStack        *bool  `json:"infer_stack,omitempty"`
	Model             string `json:"model,omitempty" validate:"omitempty,max=128"`
	SearchContextSize string `json:"search_context_size,omitempty" validate:"omitempty,oneof=low medium high"`
}

// ExamplesBody is the body of POST /v1/examples. Either the document text or
// a selection must be given.
type ExamplesBody struct {
	Text              string `json:"text" validate:"required_without=Selection"`
	Selection         string `json:"selection,omitempty"`
	Count             int    `json:"count,omitempty" validate:"omitempty,min=1,max=10"`
	Document          string `json:"document,omitempty" validate:"omitempty,max=1024"`
	Model             string `json:"model,omitempty" validate:"omitempty,max=128"`
	SearchContextSize string `json:"search_context_size,omitempty" validate:"omitempty,oneof=low medium high"`
}

// RunBody is the body of POST /v1/run.
type RunBody struct {
	Prompt            string `json:"prompt" validate:"required"`
	Model             string `json:"model,omitempty" validate:"omitempty,max=128"`
	SearchContextSize string `json:"search_context_size,omitempty" validate:"omitempty,oneof=low medium high"`
}

// ScoreBody is the body of POST /v1/score. Blank text is reported by the
// scorer itself, not rejected here.
type ScoreBody struct {
	Text string `json:"text"`
}

// PromptText returns the text whose size is checked against the token
// limit. Bodies without prompt text return "".
func (b *TransformBody) PromptText() string { return b.Prompt }
func (b *ExamplesBody) PromptText() string  { return b.Text + b.Selection }
func (b *RunBody) PromptText() string       { return b.Prompt }
func (b *ScoreBody) PromptText() string     { return b.Text }

// TokenCounter handles token counting for prompts using tiktoken
type TokenCounter struct {
	encoding Tokenizer
}

// NewTokenCounter creates a token counter for the specified model. Models
// tiktoken does not know use FallbackEncoding.
func NewTokenCounter(model string) (*TokenCounter, error) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding(FallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding for model %s: %v", model, err)
		}
	}
	return &TokenCounter{encoding: &tiktokenWrapper{encoding}}, nil
}

// NewTokenCounterWithTokenizer creates a counter backed by t.
func NewTokenCounterWithTokenizer(t Tokenizer) *TokenCounter {
	return &TokenCounter{encoding: t}
}

// CountText counts the tokens in text.
func (tc *TokenCounter) CountText(text string) int {
	return tc.encoding.CountTokens(text)
}

// ValidateTokens checks that text fits in maxTokens.
func (tc *TokenCounter) ValidateTokens(text string, maxTokens int) error {
	if maxTokens <= 0 {
		return fmt.Errorf("invalid max_prompt_tokens: must be greater than 0")
	}

	total := tc.CountText(text)
	if total > maxTokens {
		return fmt.Errorf("prompt tokens (%d) exceeds the limit (%d)", total, maxTokens)
	}
	return nil
}
