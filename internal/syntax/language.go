// Package syntax provides tree-sitter backed syntax validation for the
// languages the pipeline edits.
package syntax

import (
	"path/filepath"
	"strings"
)

// DetectLanguage determines the programming language from file extension or
// filename.
func DetectLanguage(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".go":
		return "go"
	case ".py", ".pyw":
		return "python"
	case ".ts":
		return "typescript"
	case ".js", ".mjs":
		return "javascript"
	case ".tsx":
		return "tsx"
	case ".jsx":
		return "jsx"
	case ".sh", ".bash", ".zsh":
		return "bash"
	default:
		return ""
	}
}

// SupportedValidationLanguages returns the languages with a wired tree-sitter
// grammar.
func SupportedValidationLanguages() []string {
	return []string{"go", "python", "typescript", "javascript", "tsx", "jsx", "bash"}
}

// IsValidationSupported reports whether language has a wired grammar.
func IsValidationSupported(language string) bool {
	language = strings.ToLower(strings.TrimSpace(language))
	for _, l := range SupportedValidationLanguages() {
		if l == language {
			return true
		}
	}
	return false
}
