package transform

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type wordCounter struct{}

func (wordCounter) CountText(text string) int { return len(strings.Fields(text)) }

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "0ms"},
		{999 * time.Millisecond, "999ms"},
		{time.Second, "1.00s"},
		{1500 * time.Millisecond, "1.50s"},
		{59990 * time.Millisecond, "59.99s"},
		{61500 * time.Millisecond, "1m 1.5s"},
		{3*time.Minute + 300*time.Millisecond, "3m 0.3s"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatElapsed(tt.in))
		})
	}
}

func TestComputeStats(t *testing.T) {
	s := ComputeStats("one two", "one two\nthree  four five", 1200*time.Millisecond, nil)

	assert.Equal(t, 7, s.OriginalChars)
	assert.Equal(t, 2, s.OriginalWords)
	assert.Equal(t, 24, s.TransformedChars)
	assert.Equal(t, 5, s.TransformedWords)
	assert.Equal(t, 3.43, s.ExpansionRatio)
	assert.Equal(t, 243, s.ExpansionPercent)
	assert.Equal(t, "1.20s", s.ElapsedText)
	assert.Zero(t, s.OriginalTokens)
	assert.Equal(t, "Prompt transformed successfully! Expanded by 243%.", s.Summary())
}

func TestComputeStatsCountsRunes(t *testing.T) {
	s := ComputeStats("héllo", "héllo wörld", 0, wordCounter{})
	assert.Equal(t, 5, s.OriginalChars)
	assert.Equal(t, 11, s.TransformedChars)
	assert.Equal(t, 2.2, s.ExpansionRatio)
	assert.Equal(t, 120, s.ExpansionPercent)
	assert.Equal(t, 1, s.OriginalTokens)
	assert.Equal(t, 2, s.TransformedTokens)
}

func TestComputeStatsShrink(t *testing.T) {
	s := ComputeStats("a much longer prompt", "short", 0, nil)
	assert.Equal(t, -75, s.ExpansionPercent)
	assert.Equal(t, 0.25, s.ExpansionRatio)
}

func TestStatsString(t *testing.T) {
	s := Stats{
		OriginalChars:    10,
		TransformedChars: 25,
		OriginalWords:    2,
		TransformedWords: 5,
		ExpansionRatio:   2.5,
		ExpansionPercent: 150,
		ElapsedText:      "850ms",
	}
	want := "Characters: 10 → 25\nWords: 2 → 5\nExpansion: 2.50x (+150%)\nTime: 850ms"
	assert.Equal(t, want, s.String())
}
