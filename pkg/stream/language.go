package stream

import "strings"

// langByExt maps file extensions to language tags for the watch surface.
var langByExt = map[string]string{
	"ts":         "typescript",
	"tsx":        "typescript",
	"js":         "javascript",
	"jsx":        "javascript",
	"py":         "python",
	"sql":        "sql",
	"css":        "css",
	"html":       "html",
	"json":       "json",
	"md":         "markdown",
	"yml":        "yaml",
	"yaml":       "yaml",
	"sh":         "bash",
	"bash":       "bash",
	"zsh":        "bash",
	"rs":         "rust",
	"go":         "go",
	"rb":         "ruby",
	"java":       "java",
	"swift":      "swift",
	"kt":         "kotlin",
	"c":          "c",
	"cpp":        "cpp",
	"h":          "c",
	"toml":       "toml",
	"xml":        "xml",
	"svg":        "xml",
	"graphql":    "graphql",
	"gql":        "graphql",
	"dockerfile": "dockerfile",
}

// Language derives a language tag from a filename's extension. Unknown
// extensions (and extensionless names) map to "text" rather than failing.
func Language(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return "text"
	}
	ext := strings.ToLower(filename[idx+1:])
	if lang, ok := langByExt[ext]; ok {
		return lang
	}
	return "text"
}
