package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpsertTaggedBlock(t *testing.T) {
	block := "<examples>\nnew\n</examples>"

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			name: "replaces existing block in place",
			doc:  "<instruction>Do X</instruction>\n<examples>old\nlines</examples>\nTail",
			want: "<instruction>Do X</instruction>\n<examples>\nnew\n</examples>\nTail",
		},
		{
			name: "existing block match is case insensitive",
			doc:  "head <EXAMPLES>old</Examples> tail",
			want: "head <examples>\nnew\n</examples> tail",
		},
		{
			name: "only the first block is replaced",
			doc:  "<examples>a</examples><examples>b</examples>",
			want: "<examples>\nnew\n</examples><examples>b</examples>",
		},
		{
			name: "inserted after instruction",
			doc:  "A<instruction>x</instruction>B",
			want: "A<instruction>x</instruction>\n<examples>\nnew\n</examples>\nB",
		},
		{
			name: "appended at end",
			doc:  "hello",
			want: "hello\n<examples>\nnew\n</examples>\n",
		},
		{
			name: "empty document",
			doc:  "",
			want: "\n<examples>\nnew\n</examples>\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UpsertTaggedBlock(tt.doc, Examples, block))
		})
	}
}

func TestHighlightTaggedRegions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []Region
	}{
		{
			name: "two blocks",
			text: "<context>a</context> text <instruction>b</instruction>",
			want: []Region{
				{Tag: Context, Start: 0, End: 20},
				{Tag: Instruction, Start: 26, End: 54},
			},
		},
		{
			name: "unclosed opening tag is skipped",
			text: "<context>open <format>f</format>",
			want: []Region{{Tag: Format, Start: 14, End: 32}},
		},
		{
			name: "nested block is covered by the outer one",
			text: "<context><format>x</format></context>",
			want: []Region{{Tag: Context, Start: 0, End: 37}},
		},
		{
			name: "case insensitive",
			text: "<Format>x</FORMAT>",
			want: []Region{{Tag: Format, Start: 0, End: 18}},
		},
		{
			name: "constraints block",
			text: "<constraints>\nno globals\n</constraints>",
			want: []Region{{Tag: Constraints, Start: 0, End: 39}},
		},
		{
			name: "unknown tags are ignored",
			text: "<note>x</note>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HighlightTaggedRegions(tt.text))
		})
	}
}

func TestExtractInstruction(t *testing.T) {
	tests := []struct {
		name      string
		selection string
		doc       string
		want      string
	}{
		{
			name:      "selection wins",
			selection: "  Sort the list  ",
			doc:       "<instruction>ignored</instruction>",
			want:      "Sort the list",
		},
		{
			name: "instruction block in document",
			doc:  "<context>c</context>\n<instruction>\n  Parse dates\n</instruction>",
			want: "Parse dates",
		},
		{
			name: "whole document without a block",
			doc:  "\n Summarize the article \n",
			want: "Summarize the article",
		},
		{
			name:      "blank selection falls back to document",
			selection: "   ",
			doc:       "<INSTRUCTION>Count words</INSTRUCTION>",
			want:      "Count words",
		},
		{
			name: "nothing at all",
			doc:  "  \n ",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractInstruction(tt.selection, tt.doc))
		})
	}
}

func TestWrapExamples(t *testing.T) {
	assert.Equal(t, "<examples>\nA -> B\n</examples>", WrapExamples("A -> B"))

	wrapped := "<examples>\nA -> B\n</examples>"
	assert.Equal(t, wrapped, WrapExamples(wrapped))
	assert.Equal(t, "<Examples>x</EXAMPLES>", WrapExamples("<Examples>x</EXAMPLES>"))
}

func TestInsertExamples(t *testing.T) {
	doc := "<instruction>Translate</instruction>"
	got := InsertExamples(doc, "hola -> hello")
	assert.Equal(t, "<instruction>Translate</instruction>\n<examples>\nhola -> hello\n</examples>\n", got)

	// Running again replaces rather than duplicates
	again := InsertExamples(got, "adios -> bye")
	assert.Equal(t, "<instruction>Translate</instruction>\n<examples>\nadios -> bye\n</examples>\n", again)
}

func TestFindBlock(t *testing.T) {
	r, ok := FindBlock("x <format>json</format>", Format)
	assert.True(t, ok)
	assert.Equal(t, Region{Tag: Format, Start: 2, End: 23}, r)

	_, ok = FindBlock("no blocks", Context)
	assert.False(t, ok)
}
