// Package transform runs the prompt operations end to end: it gathers the
// project stack and house rules, composes the request, calls the completion
// API and shapes the result for re-insertion into a document.
package transform

import (
	"time"

	"github.com/teilomillet/reprompt/rules"
	"github.com/teilomillet/reprompt/sonar"
	"github.com/teilomillet/reprompt/tags"
)

// Operation names used in progress events, logs and metrics.
const (
	OpTransform = "transform"
	OpExamples  = "examples"
	OpRun       = "run"
)

// Example count bounds.
const (
	DefaultExampleCount = 3
	MinExampleCount     = 1
	MaxExampleCount     = 10
)

// TransformRequest asks for a terse prompt to be turned into a structured one.
type TransformRequest struct {
	// Prompt is the selected text to transform.
	Prompt string
	// Document identifies the document being edited. Only one operation may
	// run per document at a time. Empty disables the check.
	Document string
	// Root is the workspace directory probed for the project stack. Empty
	// uses the orchestrator's workspace root.
	Root string
	// InferStack appends the detected project stack to the prompt.
	InferStack bool
	// Rules is the house rules snapshot to apply. Nil applies none.
	Rules *rules.Snapshot

	Model             string
	SearchContextSize string
	RequestID         string
}

// Result is the outcome of a transformation. Nothing has been written
// anywhere; the caller replaces the selection with Text.
type Result struct {
	Text string `json:"text"`
	// Regions are the tagged blocks of Text, offsets relative to Text.
	Regions     []tags.Region `json:"regions"`
	Stats       Stats         `json:"stats"`
	StackBlock  string        `json:"stack_block,omitempty"`
	RulesSource string        `json:"rules_source,omitempty"`
	Model       string        `json:"model"`
}

// ExamplesRequest asks for examples of an instruction to be generated and
// placed in the document's <examples> block.
type ExamplesRequest struct {
	// Text is the full content of the document.
	Text string
	// Selection is the selected text, if any.
	Selection string
	// Count is the number of examples. Zero uses the configured default.
	Count int

	Document          string
	Model             string
	SearchContextSize string
	RequestID         string
}

// ExamplesResult carries the updated document.
type ExamplesResult struct {
	Text        string        `json:"text"`
	Examples    string        `json:"examples"`
	Instruction string        `json:"instruction"`
	Count       int           `json:"count"`
	Regions     []tags.Region `json:"regions"`
	Elapsed     time.Duration `json:"elapsed"`
}

// RunRequest sends a prompt to the API as is.
type RunRequest struct {
	Prompt            string
	Model             string
	SearchContextSize string
	RequestID         string
}

// RunResult carries the raw API response.
type RunResult struct {
	Response    *sonar.ChatResponse `json:"response"`
	Content     string              `json:"content"`
	Elapsed     time.Duration       `json:"elapsed"`
	ElapsedText string              `json:"elapsed_text"`
}
