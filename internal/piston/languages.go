package piston

import "strings"

// pistonNames maps the editor-facing language identifiers onto the names the
// Piston runtime registry uses. Aliases (js, py, c++, ...) collapse onto the
// canonical name.
var pistonNames = map[string]string{
	"javascript": "javascript",
	"js":         "javascript",
	"typescript": "typescript",
	"ts":         "typescript",
	"python":     "python",
	"py":         "python",
	"java":       "java",
	"cpp":        "cpp",
	"c++":        "cpp",
	"c":          "c",
	"csharp":     "csharp",
	"c#":         "csharp",
	"go":         "go",
	"rust":       "rust",
	"php":        "php",
	"ruby":       "ruby",
	"swift":      "swift",
	"kotlin":     "kotlin",
	"scala":      "scala",
	"bash":       "bash",
	"sh":         "bash",
}

// MapLanguage translates a language identifier to Piston's naming scheme.
// Matching is case-insensitive. Unknown languages pass through lowercased:
// Piston is the authority on what it supports, so there is no failure mode
// here.
func MapLanguage(language string) string {
	lower := strings.ToLower(language)
	if name, ok := pistonNames[lower]; ok {
		return name
	}
	return lower
}
