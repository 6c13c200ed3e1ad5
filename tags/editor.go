// Package tags edits the XML-like tagged regions of a prompt document:
// <context>, <instruction>, <examples>, <constraints> and <format>.
// All offsets are byte offsets into the UTF-8 document text.
package tags

import (
	"regexp"
	"strings"
)

// Recognized tag names, in the order a structured prompt uses them.
const (
	Context     = "context"
	Instruction = "instruction"
	Examples    = "examples"
	Constraints = "constraints"
	Format      = "format"
)

// Names lists the recognized tags in prompt order.
var Names = []string{Context, Instruction, Examples, Constraints, Format}

// Region is the span of one tagged block, from the start of its opening tag
// to the end of its closing tag.
type Region struct {
	Tag   string `json:"tag"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

var (
	openTagRe        = regexp.MustCompile(`(?i)<(context|instruction|examples|constraints|format)>`)
	instructionClose = regexp.MustCompile(`(?i)</instruction>`)
	instructionBody  = regexp.MustCompile(`(?i)<instruction>([\s\S]*?)</instruction>`)
	wrappedExamples  = regexp.MustCompile(`(?is)^<examples>.*</examples>$`)
)

// blockPattern matches the first <tag>...</tag> block, non-greedy and case
// insensitive, spanning lines.
func blockPattern(tag string) *regexp.Regexp {
	t := regexp.QuoteMeta(tag)
	return regexp.MustCompile(`(?is)<` + t + `>.*?</` + t + `>`)
}

// FindBlock returns the span of the first tag block in doc.
func FindBlock(doc, tag string) (Region, bool) {
	loc := blockPattern(tag).FindStringIndex(doc)
	if loc == nil {
		return Region{}, false
	}
	return Region{Tag: strings.ToLower(tag), Start: loc[0], End: loc[1]}, true
}

// UpsertTaggedBlock replaces the first tag block of doc with block. Without
// one, block is inserted right after the first </instruction>, or appended
// to the document, surrounded by newlines. Text outside the replaced span
// or insertion point is left untouched.
func UpsertTaggedBlock(doc, tag, block string) string {
	if r, ok := FindBlock(doc, tag); ok {
		return doc[:r.Start] + block + doc[r.End:]
	}

	insert := "\n" + block + "\n"
	if loc := instructionClose.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + insert + doc[loc[1]:]
	}
	return doc + insert
}

// HighlightTaggedRegions returns the span of every recognized tag block in
// text. Nested blocks are not reported: scanning resumes after the end of
// each match. An opening tag without its closing tag is skipped.
func HighlightTaggedRegions(text string) []Region {
	var regions []Region
	pos := 0
	for pos < len(text) {
		loc := openTagRe.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[0]
		openEnd := pos + loc[1]
		name := strings.ToLower(text[pos+loc[2] : pos+loc[3]])

		closeRe := regexp.MustCompile(`(?i)</` + name + `>`)
		closeLoc := closeRe.FindStringIndex(text[openEnd:])
		if closeLoc == nil {
			pos = start + 1
			continue
		}

		end := openEnd + closeLoc[1]
		regions = append(regions, Region{Tag: name, Start: start, End: end})
		pos = end
	}
	return regions
}

// ExtractInstruction picks the instruction to generate examples for: the
// trimmed selection when it is not blank, else the body of the first
// <instruction> block in the selection or the document, else the whole
// trimmed document. The result is "" when all of them are blank.
func ExtractInstruction(selection, doc string) string {
	if s := strings.TrimSpace(selection); s != "" {
		return s
	}
	for _, src := range []string{selection, doc} {
		if m := instructionBody.FindStringSubmatch(src); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return strings.TrimSpace(doc)
}

// WrapExamples wraps content in an <examples> block unless it already is one.
func WrapExamples(content string) string {
	if wrappedExamples.MatchString(content) {
		return content
	}
	return "<examples>\n" + content + "\n</examples>"
}

// InsertExamples wraps content and upserts it as the <examples> block of doc.
func InsertExamples(doc, content string) string {
	return UpsertTaggedBlock(doc, Examples, WrapExamples(content))
}
