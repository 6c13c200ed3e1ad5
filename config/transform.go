package config

import "fmt"

// TransformConfig defines how a prompt transformation is prepared and reported.
type TransformConfig struct {
	// InferStack appends the detected project stack to the system prompt
	InferStack bool `yaml:"infer_stack"`

	// ShowStats reports size statistics after a transformation
	ShowStats bool `yaml:"show_stats"`

	// ProgressTheme selects the progress messages: random, magical, tech or cooking
	ProgressTheme string `yaml:"progress_theme"`

	// CountTokens adds token counts to the statistics. The tokenizer
	// encoding is fetched on first use.
	CountTokens bool `yaml:"count_tokens"`
}

// Validate checks the transform settings.
func (t TransformConfig) Validate() error {
	switch t.ProgressTheme {
	case "random", "magical", "tech", "cooking":
		// Valid themes
	default:
		return fmt.Errorf("invalid progress theme: %s", t.ProgressTheme)
	}
	return nil
}
