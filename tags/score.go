package tags

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Prompt length bounds, in characters.
const (
	MinPromptLength = 200
	MaxPromptLength = 2000
)

// LowScoreThreshold is the score below which a prompt is flagged as weak.
const LowScoreThreshold = 3

// ErrNoPrompt is the message shown when there is nothing to score.
const ErrNoPrompt = "No prompt found to score."

var actionVerbRe = regexp.MustCompile(`(?i)\b(create|build|implement|add|remove|update|validate|test|generate|refactor|design|write)\b`)

type check struct {
	pass       func(text string) bool
	detail     string
	suggestion string
}

var checks = []check{
	{
		pass:       hasBlock(Context),
		detail:     "Has <context> section.",
		suggestion: "Add a <context> section.",
	},
	{
		pass:       hasBlock(Instruction),
		detail:     "Has <instruction> section.",
		suggestion: "Add an <instruction> section.",
	},
	{
		pass:       hasBlock(Examples),
		detail:     "Has <examples> section.",
		suggestion: "Add an <examples> section.",
	},
	{
		pass: func(text string) bool {
			n := utf8.RuneCountInString(text)
			return n >= MinPromptLength && n <= MaxPromptLength
		},
		detail:     "Length is within recommended bounds.",
		suggestion: fmt.Sprintf("Keep prompt length between %d and %d characters.", MinPromptLength, MaxPromptLength),
	},
	{
		pass:       actionVerbRe.MatchString,
		detail:     "Uses action verbs.",
		suggestion: "Use action verbs in your instructions.",
	},
}

func hasBlock(tag string) func(string) bool {
	re := blockPattern(tag)
	return re.MatchString
}

// Score is the result of scoring a prompt against the structure checklist.
type Score struct {
	Score       int      `json:"score"`
	Max         int      `json:"max"`
	Details     []string `json:"details"`
	Suggestions []string `json:"suggestions"`
}

// Low reports whether the score is below LowScoreThreshold.
func (s Score) Low() bool {
	return s.Score < LowScoreThreshold
}

// Summary is the one-line form of the score.
func (s Score) Summary() string {
	return fmt.Sprintf("Prompt Score: %d/%d", s.Score, s.Max)
}

// String renders the full report: the summary, a bullet per passed check
// and, when any check failed, the list of suggestions.
func (s Score) String() string {
	var b strings.Builder
	b.WriteString(s.Summary())
	b.WriteString("\n\n")
	for i, d := range s.Details {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("• " + d)
	}
	if len(s.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:\n")
		for i, sg := range s.Suggestions {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("- " + sg)
		}
	}
	return b.String()
}

// ScorePrompt runs every check against text. It returns false when text is
// blank.
func ScorePrompt(text string) (Score, bool) {
	if strings.TrimSpace(text) == "" {
		return Score{}, false
	}

	s := Score{Max: len(checks), Details: []string{}, Suggestions: []string{}}
	for _, c := range checks {
		if c.pass(text) {
			s.Score++
			s.Details = append(s.Details, c.detail)
		} else {
			s.Suggestions = append(s.Suggestions, c.suggestion)
		}
	}
	return s, true
}
