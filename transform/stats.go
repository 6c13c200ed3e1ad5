package transform

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

// TokenCounter counts the tokens of a text.
type TokenCounter interface {
	CountText(text string) int
}

// Stats describes how a transformation changed a prompt.
type Stats struct {
	OriginalChars    int           `json:"original_chars"`
	OriginalWords    int           `json:"original_words"`
	TransformedChars int           `json:"transformed_chars"`
	TransformedWords int           `json:"transformed_words"`
	ExpansionRatio   float64       `json:"expansion_ratio"`
	ExpansionPercent int           `json:"expansion_percent"`
	Elapsed          time.Duration `json:"elapsed"`
	ElapsedText      string        `json:"elapsed_text"`

	OriginalTokens    int `json:"original_tokens,omitempty"`
	TransformedTokens int `json:"transformed_tokens,omitempty"`
}

// ComputeStats compares original with transformed. counter may be nil, in
// which case token counts are left at zero. original must not be empty.
func ComputeStats(original, transformed string, elapsed time.Duration, counter TokenCounter) Stats {
	o := utf8.RuneCountInString(original)
	t := utf8.RuneCountInString(transformed)

	s := Stats{
		OriginalChars:    o,
		OriginalWords:    len(strings.Fields(original)),
		TransformedChars: t,
		TransformedWords: len(strings.Fields(transformed)),
		Elapsed:          elapsed,
		ElapsedText:      FormatElapsed(elapsed),
	}
	if o > 0 {
		ratio := float64(t) / float64(o)
		s.ExpansionRatio = math.Round(ratio*100) / 100
		s.ExpansionPercent = int(math.Round((ratio - 1) * 100))
	}
	if counter != nil {
		s.OriginalTokens = counter.CountText(original)
		s.TransformedTokens = counter.CountText(transformed)
	}
	return s
}

// Summary is the one-line success message of a transformation.
func (s Stats) Summary() string {
	return fmt.Sprintf("Prompt transformed successfully! Expanded by %d%%.", s.ExpansionPercent)
}

// String renders the stats as a small report.
func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Characters: %d → %d\n", s.OriginalChars, s.TransformedChars)
	fmt.Fprintf(&b, "Words: %d → %d\n", s.OriginalWords, s.TransformedWords)
	if s.OriginalTokens > 0 || s.TransformedTokens > 0 {
		fmt.Fprintf(&b, "Tokens: %d → %d\n", s.OriginalTokens, s.TransformedTokens)
	}
	fmt.Fprintf(&b, "Expansion: %.2fx (%+d%%)\n", s.ExpansionRatio, s.ExpansionPercent)
	fmt.Fprintf(&b, "Time: %s", s.ElapsedText)
	return b.String()
}

// FormatElapsed renders d as milliseconds below one second, seconds with two
// decimals below one minute, and minutes plus seconds otherwise.
func FormatElapsed(d time.Duration) string {
	ms := d.Milliseconds()
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.2fs", float64(ms)/1000)
	default:
		return fmt.Sprintf("%dm %.1fs", ms/60000, float64(ms%60000)/1000)
	}
}
