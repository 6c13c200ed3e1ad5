// Package rules loads the optional house rules of a project: a single file
// in the workspace root whose name contains ".rpmt." and ends in .rpmt.md,
// .rpmt.json, .rpmt.yaml or .rpmt.yml. The rules are flattened into text
// that is spliced into the transformation system prompt.
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Marker is the substring every rules file name contains.
const Marker = ".rpmt."

var extensions = []string{".rpmt.md", ".rpmt.json", ".rpmt.yaml", ".rpmt.yml"}

// Status is the outcome of a load.
type Status int

const (
	NotFound Status = iota
	Found
	Malformed
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case Malformed:
		return "malformed"
	default:
		return "not_found"
	}
}

// MarshalText renders the status by name in JSON responses.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of loading the rules of one root.
type Result struct {
	Status Status `json:"status"`
	Rules  string `json:"rules"`
	Source string `json:"source,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// IsCandidate reports whether name is an accepted rules file name.
func IsCandidate(name string) bool {
	if !strings.Contains(name, Marker) {
		return false
	}
	for _, ext := range extensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// Load reads the house rules of root. Entries are considered in name order.
// The first regular candidate file decides the result: if it fails to parse
// the result is Malformed and later candidates are not tried.
func Load(root string, logger *zap.Logger) Result {
	if logger == nil {
		logger = zap.NewNop()
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		logger.Warn("Failed to read workspace directory", zap.String("root", root), zap.Error(err))
		return Result{Status: NotFound, Reason: err.Error()}
	}

	for _, entry := range entries {
		name := entry.Name()
		if !IsCandidate(name) {
			continue
		}

		path := filepath.Join(root, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			logger.Debug("Skipping non-file rules candidate", zap.String("file", name))
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("Failed to read rules file", zap.String("file", name), zap.Error(err))
			return Result{Status: Malformed, Source: name, Reason: err.Error()}
		}

		text, err := parse(name, data)
		if err != nil {
			logger.Warn("Failed to parse rules file", zap.String("file", name), zap.Error(err))
			return Result{Status: Malformed, Source: name, Reason: err.Error()}
		}

		logger.Info("Loaded house rules", zap.String("file", name))
		return Result{Status: Found, Rules: text, Source: name}
	}

	return Result{Status: NotFound}
}

func parse(name string, data []byte) (string, error) {
	switch {
	case strings.HasSuffix(name, ".md"):
		return strings.TrimSpace(string(data)), nil
	case strings.HasSuffix(name, ".json"):
		return parseJSON(data)
	default:
		return parseYAML(data)
	}
}

type entry struct {
	key   string
	value interface{}
}

func render(entries []entry) string {
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, "• "+e.key+": "+formatValue(e.value))
	}
	return strings.Join(lines, "\n")
}

// parseJSON renders a JSON object, or an array by index, keeping document
// order. Any other JSON value is rejected.
func parseJSON(data []byte) (string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("parse JSON: %w", err)
	}

	var entries []entry
	switch tok {
	case json.Delim('{'):
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return "", fmt.Errorf("parse JSON: %w", err)
			}
			var v interface{}
			if err := dec.Decode(&v); err != nil {
				return "", fmt.Errorf("parse JSON: %w", err)
			}
			entries = setEntry(entries, keyTok.(string), v)
		}
	case json.Delim('['):
		for i := 0; dec.More(); i++ {
			var v interface{}
			if err := dec.Decode(&v); err != nil {
				return "", fmt.Errorf("parse JSON: %w", err)
			}
			entries = append(entries, entry{key: strconv.Itoa(i), value: v})
		}
	default:
		return "", fmt.Errorf("parse JSON: rules must be an object, got %v", tok)
	}

	// Closing delimiter, then nothing but whitespace
	if _, err := dec.Token(); err != nil {
		return "", fmt.Errorf("parse JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return "", fmt.Errorf("parse JSON: unexpected data after rules")
	}

	return render(entries), nil
}

// setEntry keeps the first position of a repeated key and its last value.
func setEntry(entries []entry, key string, v interface{}) []entry {
	for i := range entries {
		if entries[i].key == key {
			entries[i].value = v
			return entries
		}
	}
	return append(entries, entry{key: key, value: v})
}

// parseYAML renders a mapping, or a sequence by index, keeping document
// order. A scalar or empty document falls back to the trimmed text.
func parseYAML(data []byte) (string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse YAML: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return strings.TrimSpace(string(data)), nil
	}

	node := doc.Content[0]
	for node.Kind == yaml.AliasNode && node.Alias != nil {
		node = node.Alias
	}

	var entries []entry
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			var key interface{}
			if err := node.Content[i].Decode(&key); err != nil {
				return "", fmt.Errorf("parse YAML: %w", err)
			}
			var v interface{}
			if err := node.Content[i+1].Decode(&v); err != nil {
				return "", fmt.Errorf("parse YAML: %w", err)
			}
			entries = setEntry(entries, formatValue(key), v)
		}
	case yaml.SequenceNode:
		for i, item := range node.Content {
			var v interface{}
			if err := item.Decode(&v); err != nil {
				return "", fmt.Errorf("parse YAML: %w", err)
			}
			entries = append(entries, entry{key: strconv.Itoa(i), value: v})
		}
	default:
		// A null document is not a mapping either.
		return strings.TrimSpace(string(data)), nil
	}

	return render(entries), nil
}

// formatValue renders a decoded value on one line. Lists are joined with
// ", " and nested mappings are written as compact JSON.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	case map[interface{}]interface{}:
		return formatValue(stringKeys(val))
	default:
		return fmt.Sprint(val)
	}
}

func stringKeys(m map[interface{}]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if inner, ok := v.(map[interface{}]interface{}); ok {
			v = stringKeys(inner)
		}
		out[fmt.Sprint(k)] = v
	}
	return out
}
