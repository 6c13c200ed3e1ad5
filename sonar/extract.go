package sonar

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// patternMatchTimeout bounds a single regex match against model output.
const patternMatchTimeout = time.Second

// ExtractContent returns the trimmed content of the first choice, or "" when
// the response carries none.
func ExtractContent(resp *ChatResponse) string {
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// ExtractJSONFromContent parses the JSON object starting at the last '{' of
// content. Reasoning models prefix their answer with a <think> block, so the
// object is expected at the end. It returns nil when nothing parses.
func ExtractJSONFromContent(content string) map[string]interface{} {
	var out map[string]interface{}
	if !DecodeJSONFromContent(content, &out) {
		return nil
	}
	return out
}

// DecodeJSONFromContent is ExtractJSONFromContent decoding into v. It
// reports whether decoding succeeded.
func DecodeJSONFromContent(content string, v interface{}) bool {
	start := strings.LastIndex(content, "{")
	if start < 0 {
		return false
	}
	return json.Unmarshal([]byte(content[start:]), v) == nil
}

// compilePattern compiles pattern with ECMAScript semantics, the dialect the
// API expects for regex response formats. Lookaround is supported.
func compilePattern(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, regexp2.ECMAScript)
	if err != nil {
		return nil, err
	}
	re.MatchTimeout = patternMatchTimeout
	return re, nil
}

// ExtractRegexMatch returns the first match of pattern in content.
func ExtractRegexMatch(content, pattern string) (string, bool, error) {
	re, err := compilePattern(pattern)
	if err != nil {
		return "", false, err
	}
	m, err := re.FindStringMatch(content)
	if err != nil {
		return "", false, err
	}
	if m == nil {
		return "", false, nil
	}
	return m.String(), true, nil
}
