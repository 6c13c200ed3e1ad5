package tags

import (
	"path/filepath"
	"strings"
)

// promptSuffixes are the file name endings treated as prompt documents.
var promptSuffixes = []string{
	".md",
	".prompt.md",
	".reprompt",
	".reprompt.md",
	".cursor.md",
	"copilot-instructions.md",
	".rpmt.md",
}

// NotPromptFileMessage is shown when a command is run on another file type.
const NotPromptFileMessage = "Reprompt only works on .md, .prompt.md, .reprompt, .reprompt.md, .cursor.md, or copilot-instructions.md files."

// IsPromptFile reports whether the file at path is a prompt document,
// judged by its base name, case-insensitively.
func IsPromptFile(path string) bool {
	name := strings.ToLower(filepath.Base(path))
	for _, suffix := range promptSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
