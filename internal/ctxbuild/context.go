// Package ctxbuild assembles a token-bounded code context for a task and
// trims it back under budget in a fixed priority order.
package ctxbuild

import (
	"fmt"
	"sort"
	"strings"

	"github.com/codefionn/patchflink/internal/tokens"
)

// RelatedFunction is one ranked symbol-level retrieval hit.
type RelatedFunction struct {
	File   string  `json:"file"`
	Line   int     `json:"line"`
	Symbol string  `json:"symbol"`
	Score  float64 `json:"score"`
}

// CodeContext is the working context for one pipeline attempt. It is owned
// exclusively by that attempt and discarded once patch generation begins.
// TokenCount always reflects the current field contents; every mutator
// recounts before returning.
type CodeContext struct {
	Goal             string            `json:"goal"`
	FileSnippets     map[string]string `json:"file_snippets"`
	BlobContents     map[string]string `json:"blob_contents"`
	RelatedFunctions []RelatedFunction `json:"related_functions,omitempty"`
	Imports          []string          `json:"imports,omitempty"`
	ErrorPatterns    []string          `json:"error_patterns,omitempty"`
	SkeletonPatches  []string          `json:"skeleton_patches,omitempty"`
	TokenCount       int               `json:"token_count"`

	estimator *tokens.Estimator
}

// NewCodeContext creates an empty context for a goal.
func NewCodeContext(goal string, estimator *tokens.Estimator) *CodeContext {
	c := &CodeContext{
		Goal:         goal,
		FileSnippets: make(map[string]string),
		BlobContents: make(map[string]string),
		estimator:    estimator,
	}
	c.recount()
	return c
}

// recount recomputes TokenCount from current contents. Kept cheap enough to
// run after every mutation so the count can never go stale.
func (c *CodeContext) recount() {
	total := c.estimator.Count(c.Goal)
	for path, snippet := range c.FileSnippets {
		total += c.estimator.Count(path) + c.estimator.Count(snippet)
	}
	for id, content := range c.BlobContents {
		total += c.estimator.Count(id) + c.estimator.Count(content)
	}
	for _, fn := range c.RelatedFunctions {
		total += c.estimator.Count(fmt.Sprintf("%s:%d %s %.2f", fn.File, fn.Line, fn.Symbol, fn.Score))
	}
	for _, imp := range c.Imports {
		total += c.estimator.Count(imp)
	}
	for _, pattern := range c.ErrorPatterns {
		total += c.estimator.Count(pattern)
	}
	for _, patch := range c.SkeletonPatches {
		total += c.estimator.Count(patch)
	}
	c.TokenCount = total
}

// SetFileSnippet stores line-numbered content for a target file.
func (c *CodeContext) SetFileSnippet(path, content string) {
	c.FileSnippets[path] = content
	c.recount()
}

// SetBlobContent stores resolved blob or tool-result text under a key.
func (c *CodeContext) SetBlobContent(key, content string) {
	c.BlobContents[key] = content
	c.recount()
}

// AddRelatedFunctions appends retrieval hits.
func (c *CodeContext) AddRelatedFunctions(fns ...RelatedFunction) {
	c.RelatedFunctions = append(c.RelatedFunctions, fns...)
	c.recount()
}

// AddImports appends import lines, deduplicated against existing entries.
func (c *CodeContext) AddImports(imports ...string) {
	seen := make(map[string]bool, len(c.Imports))
	for _, imp := range c.Imports {
		seen[imp] = true
	}
	for _, imp := range imports {
		if !seen[imp] {
			seen[imp] = true
			c.Imports = append(c.Imports, imp)
		}
	}
	c.recount()
}

// AddErrorPattern appends an error-handling example or failure hint.
func (c *CodeContext) AddErrorPattern(pattern string) {
	c.ErrorPatterns = append(c.ErrorPatterns, pattern)
	c.recount()
}

// SetSkeletonPatches stores the task's illustrative patch hints.
func (c *CodeContext) SetSkeletonPatches(patches []string) {
	c.SkeletonPatches = patches
	c.recount()
}

// ItemCount returns the number of gathered context items, used by the
// refiner to tell the model how much it already has.
func (c *CodeContext) ItemCount() int {
	return len(c.FileSnippets) + len(c.BlobContents) + len(c.RelatedFunctions) +
		len(c.Imports) + len(c.ErrorPatterns)
}

// RenderPrompt formats the context as prompt text for patch generation.
func (c *CodeContext) RenderPrompt() string {
	var sb strings.Builder

	sb.WriteString("Goal: " + c.Goal + "\n\n")

	if len(c.FileSnippets) > 0 {
		sb.WriteString("## Target files (line-numbered)\n\n")
		for _, path := range sortedKeys(c.FileSnippets) {
			sb.WriteString(fmt.Sprintf("### %s\n%s\n\n", path, c.FileSnippets[path]))
		}
	}

	if len(c.BlobContents) > 0 {
		sb.WriteString("## Related code\n\n")
		for _, id := range sortedKeys(c.BlobContents) {
			sb.WriteString(fmt.Sprintf("### %s\n%s\n\n", id, c.BlobContents[id]))
		}
	}

	if len(c.RelatedFunctions) > 0 {
		sb.WriteString("## Related symbols\n\n")
		for _, fn := range c.RelatedFunctions {
			sb.WriteString(fmt.Sprintf("- %s:%d %s (score %.2f)\n", fn.File, fn.Line, fn.Symbol, fn.Score))
		}
		sb.WriteString("\n")
	}

	if len(c.Imports) > 0 {
		sb.WriteString("## Imports in target files\n\n")
		for _, imp := range c.Imports {
			sb.WriteString(imp + "\n")
		}
		sb.WriteString("\n")
	}

	if len(c.ErrorPatterns) > 0 {
		sb.WriteString("## Error handling notes\n\n")
		for _, pattern := range c.ErrorPatterns {
			sb.WriteString(pattern + "\n\n")
		}
	}

	if len(c.SkeletonPatches) > 0 {
		sb.WriteString("## Illustrative sketches (not applicable as-is)\n\n")
		for _, patch := range c.SkeletonPatches {
			sb.WriteString(patch + "\n\n")
		}
	}

	return sb.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
