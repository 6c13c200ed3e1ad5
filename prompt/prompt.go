// Package prompt composes the messages sent to the completion API: the
// system prompt used to transform a terse request into a structured prompt,
// and the request for illustrative examples of an instruction.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "sonar"

	// DefaultSearchContextSize is used when the configured size is unknown.
	DefaultSearchContextSize = "medium"

	// StackHeader opens the detected stack block appended to a request.
	StackHeader = "[Project Stack Detected]"
)

var (
	optimizeTmpl = template.Must(template.New("optimize").Parse(optimizeSystemText))
	examplesTmpl = template.Must(template.New("examples").Parse(examplesText))
)

type optimizeData struct {
	Rules string
}

type examplesData struct {
	Count       int
	Instruction string
}

// BuildOptimizeSystemPrompt renders the transformation system prompt with the
// given house rules. Empty rules leave the section empty.
func BuildOptimizeSystemPrompt(rules string) string {
	var buf bytes.Buffer
	// The template only substitutes a string field, so execution cannot fail
	// on valid data.
	if err := optimizeTmpl.Execute(&buf, optimizeData{Rules: rules}); err != nil {
		panic(fmt.Sprintf("render optimize prompt: %v", err))
	}
	return buf.String()
}

// BuildExamplesPrompt renders the request for count examples of instruction.
func BuildExamplesPrompt(count int, instruction string) (string, error) {
	if count < 1 {
		return "", fmt.Errorf("example count must be at least 1, got %d", count)
	}

	var buf bytes.Buffer
	if err := examplesTmpl.Execute(&buf, examplesData{Count: count, Instruction: instruction}); err != nil {
		return "", fmt.Errorf("render examples prompt: %w", err)
	}
	return buf.String(), nil
}

// ResolveModel returns m, or DefaultModel when m is blank.
func ResolveModel(m string) string {
	if strings.TrimSpace(m) == "" {
		return DefaultModel
	}
	return m
}

// ResolveSearchContextSize returns s when it is low, medium or high and
// DefaultSearchContextSize otherwise.
func ResolveSearchContextSize(s string) string {
	switch s {
	case "low", "medium", "high":
		return s
	default:
		return DefaultSearchContextSize
	}
}

// FormatStackBlock renders detected stack lines as the block appended to a
// prompt. No lines renders as "".
func FormatStackBlock(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return "\n\n" + StackHeader + "\n" + strings.Join(lines, "\n") + "\n"
}
