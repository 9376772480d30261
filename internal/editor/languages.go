package editor

import "strings"

// Plaintext is the language reported for unknown extensions.
const Plaintext = "plaintext"

var languages = map[string]string{
	"js":      "javascript",
	"jsx":     "javascript",
	"ts":      "typescript",
	"tsx":     "typescript",
	"html":    "html",
	"css":     "css",
	"json":    "json",
	"md":      "markdown",
	"py":      "python",
	"java":    "java",
	"c":       "c",
	"cpp":     "cpp",
	"go":      "go",
	"rs":      "rust",
	"php":     "php",
	"rb":      "ruby",
	"sh":      "shell",
	"yml":     "yaml",
	"yaml":    "yaml",
	"xml":     "xml",
	"sql":     "sql",
	"graphql": "graphql",
}

// Language returns the editor language for a file name, matched on the
// lower-cased text after the last dot.
func Language(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return Plaintext
	}
	if lang, ok := languages[strings.ToLower(name[i+1:])]; ok {
		return lang
	}
	return Plaintext
}
