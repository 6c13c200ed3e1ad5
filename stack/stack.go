// Package stack infers the technology stack of a project from well-known
// marker files in its root directory. Detection never fails: missing,
// unreadable or malformed markers simply contribute nothing.
package stack

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/teilomillet/reprompt/prompt"
)

// Status is the outcome of probing one marker.
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

// Probe is the result of checking a single marker file.
type Probe struct {
	Marker string   `json:"marker"`
	Status Status   `json:"status"`
	Lines  []string `json:"lines,omitempty"`
	Reason string   `json:"reason,omitempty"`
}

// Report collects the probes of one detection run, in check order.
type Report struct {
	Root   string  `json:"root"`
	Probes []Probe `json:"probes"`
}

// Lines returns every hint line in check order.
func (r Report) Lines() []string {
	var lines []string
	for _, p := range r.Probes {
		lines = append(lines, p.Lines...)
	}
	return lines
}

// Block renders the hints as the block appended to a prompt, or "".
func (r Report) Block() string {
	return prompt.FormatStackBlock(r.Lines())
}

// StackDetector inspects a project root.
type StackDetector interface {
	// Detect returns the rendered stack block for root, or "".
	Detect(root string) string
}

// FileSystemDetector is the production StackDetector implementation.
// It operates entirely on the local filesystem and keeps no state between
// calls, so every call reflects the files as they are now.
type FileSystemDetector struct {
	logger *zap.Logger
}

// Verify at compile time that FileSystemDetector implements StackDetector
var _ StackDetector = (*FileSystemDetector)(nil)

// NewFileSystemDetector constructs a FileSystemDetector.
func NewFileSystemDetector(logger *zap.Logger) *FileSystemDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemDetector{logger: logger}
}

// Detect implements StackDetector.
func (d *FileSystemDetector) Detect(root string) string {
	return d.Inspect(root).Block()
}

// Inspect probes every marker in the fixed check order.
func (d *FileSystemDetector) Inspect(root string) Report {
	report := Report{Root: root}
	for _, m := range markers {
		p := m.probe(d, root, m.name)
		if p.Reason != "" {
			d.logger.Debug("Stack marker skipped",
				zap.String("marker", p.Marker),
				zap.String("status", p.Status.String()),
				zap.String("reason", p.Reason),
			)
		}
		report.Probes = append(report.Probes, p)
	}
	return report
}

// Detect runs a FileSystemDetector without logging.
func Detect(root string) string {
	return NewFileSystemDetector(nil).Detect(root)
}

type marker struct {
	name  string
	probe func(d *FileSystemDetector, root, name string) Probe
}

// markers is the check order of the stack block.
var markers = []marker{
	{"package.json", (*FileSystemDetector).probePackageJSON},
	{"requirements.txt", (*FileSystemDetector).probeRequirements},
	{"pyproject.toml", presence("Detected pyproject.toml (Python, Poetry or PEP 517/518).")},
	{"composer.json", (*FileSystemDetector).probeComposer},
	{"Gemfile", presence("Detected Ruby project (Gemfile present).")},
	{"pom.xml", presence("Detected Java project (Maven pom.xml present).")},
	{"build.gradle", presence("Detected Java project (Gradle build.gradle present).")},
	{"*.csproj", (*FileSystemDetector).probeCsproj},
	{"go.mod", presence("Detected Go project (go.mod present).")},
	{"Cargo.toml", presence("Detected Rust project (Cargo.toml present).")},
}

// readMarker reads root/name. A missing, unreadable or empty file yields a
// NotFound probe.
func readMarker(root, name string) ([]byte, *Probe) {
	data, err := os.ReadFile(filepath.Join(root, name))
	switch {
	case err == nil && len(data) == 0:
		return nil, &Probe{Marker: name, Status: NotFound, Reason: "empty file"}
	case err == nil:
		return data, nil
	case os.IsNotExist(err):
		return nil, &Probe{Marker: name, Status: NotFound}
	default:
		return nil, &Probe{Marker: name, Status: NotFound, Reason: err.Error()}
	}
}

func presence(line string) func(*FileSystemDetector, string, string) Probe {
	return func(_ *FileSystemDetector, root, name string) Probe {
		if _, miss := readMarker(root, name); miss != nil {
			return *miss
		}
		return Probe{Marker: name, Status: Found, Lines: []string{line}}
	}
}

func (d *FileSystemDetector) probePackageJSON(root, name string) Probe {
	data, miss := readMarker(root, name)
	if miss != nil {
		return *miss
	}

	fields, err := topLevelFields(data)
	if err != nil {
		return Probe{Marker: name, Status: Malformed, Reason: err.Error()}
	}

	lines := []string{"Detected Node.js project."}
	for _, section := range []struct{ key, label string }{
		{"dependencies", "Dependencies"},
		{"devDependencies", "DevDependencies"},
		{"scripts", "NPM Scripts"},
	} {
		if keys, ok := objectKeys(fields[section.key]); ok {
			lines = append(lines, section.label+": "+strings.Join(keys, ", "))
		}
	}
	return Probe{Marker: name, Status: Found, Lines: lines}
}

func (d *FileSystemDetector) probeRequirements(root, name string) Probe {
	data, miss := readMarker(root, name)
	if miss != nil {
		return *miss
	}

	var reqs []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		reqs = append(reqs, line)
	}
	return Probe{Marker: name, Status: Found, Lines: []string{
		"Detected Python project.",
		"Requirements: " + strings.Join(reqs, ", "),
	}}
}

func (d *FileSystemDetector) probeComposer(root, name string) Probe {
	data, miss := readMarker(root, name)
	if miss != nil {
		return *miss
	}

	fields, err := topLevelFields(data)
	if err != nil {
		return Probe{Marker: name, Status: Malformed, Reason: err.Error()}
	}

	lines := []string{"Detected PHP project (Composer)."}
	if keys, ok := objectKeys(fields["require"]); ok {
		lines = append(lines, "Composer require: "+strings.Join(keys, ", "))
	}
	return Probe{Marker: name, Status: Found, Lines: lines}
}

func (d *FileSystemDetector) probeCsproj(root, name string) Probe {
	matches, err := doublestar.Glob(os.DirFS(root), name)
	if err != nil {
		return Probe{Marker: name, Status: NotFound, Reason: err.Error()}
	}
	if len(matches) == 0 {
		if _, statErr := os.Stat(root); statErr != nil {
			return Probe{Marker: name, Status: NotFound, Reason: statErr.Error()}
		}
		return Probe{Marker: name, Status: NotFound}
	}
	return Probe{Marker: name, Status: Found, Lines: []string{"Detected .NET project (.csproj present)."}}
}

// topLevelFields decodes a JSON document. A valid document that is not an
// object has no fields.
func topLevelFields(data []byte) (map[string]json.RawMessage, error) {
	if !json.Valid(data) {
		return nil, fmt.Errorf("invalid JSON")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return map[string]json.RawMessage{}, nil
	}
	return fields, nil
}

// objectKeys returns the keys of a JSON object in document order, dropping
// repeated keys. It reports false when raw is not a non-null object.
func objectKeys(raw json.RawMessage) ([]string, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil, false
	}

	keys := []string{}
	seen := map[string]bool{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, false
		}
		key, _ := tok.(string)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
		// Skip the value
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return nil, false
		}
	}
	return keys, true
}
