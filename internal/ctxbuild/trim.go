package ctxbuild

import (
	"strings"

	"github.com/codefionn/patchflink/internal/consts"
)

// trim shrinks the context until it fits the budget, or until every
// trimmable field is at its floor. File snippets go last: they are the most
// load-bearing input for patch generation. The token count is re-estimated
// after every single removal.
func (b *Builder) trim(cc *CodeContext) {
	if cc.TokenCount <= b.budget {
		return
	}
	b.log.Debug("trimming context: %d tokens over budget %d", cc.TokenCount, b.budget)

	// 1. Drop error patterns one at a time, least relevant (last) first.
	for cc.TokenCount > b.budget && len(cc.ErrorPatterns) > 0 {
		cc.ErrorPatterns = cc.ErrorPatterns[:len(cc.ErrorPatterns)-1]
		cc.recount()
	}

	// 2. Cap imports.
	if cc.TokenCount > b.budget && len(cc.Imports) > consts.TrimImportsCap {
		cc.Imports = cc.Imports[:consts.TrimImportsCap]
		cc.recount()
	}

	// 3. Cap related functions.
	if cc.TokenCount > b.budget && len(cc.RelatedFunctions) > consts.TrimRelatedFunctionsCap {
		cc.RelatedFunctions = cc.RelatedFunctions[:consts.TrimRelatedFunctionsCap]
		cc.recount()
	}

	// 4. Remove the single largest blob, repeatedly, keeping at least two.
	for cc.TokenCount > b.budget && len(cc.BlobContents) > consts.TrimBlobFloor {
		delete(cc.BlobContents, largestEntry(cc.BlobContents))
		cc.recount()
	}

	// 5. Halve the largest file snippets, each at most once.
	halved := make(map[string]bool, len(cc.FileSnippets))
	for cc.TokenCount > b.budget {
		key := largestUnhalved(cc.FileSnippets, halved)
		if key == "" {
			break
		}
		cc.FileSnippets[key] = halveSnippet(cc.FileSnippets[key])
		halved[key] = true
		cc.recount()
	}

	if cc.TokenCount > b.budget {
		b.log.Warn("context still over budget after trimming: %d > %d", cc.TokenCount, b.budget)
	}
}

// largestEntry returns the key of the longest value in m.
func largestEntry(m map[string]string) string {
	var key string
	size := -1
	for k, v := range m {
		if len(v) > size || (len(v) == size && k < key) {
			key, size = k, len(v)
		}
	}
	return key
}

func largestUnhalved(m map[string]string, halved map[string]bool) string {
	var key string
	size := -1
	for k, v := range m {
		if halved[k] {
			continue
		}
		if len(v) > size || (len(v) == size && k < key) {
			key, size = k, len(v)
		}
	}
	return key
}

// halveSnippet keeps the first half of a snippet's lines, marking the cut.
func halveSnippet(snippet string) string {
	lines := strings.Split(snippet, "\n")
	if len(lines) < 2 {
		return snippet
	}
	half := lines[:len(lines)/2]
	return strings.Join(half, "\n") + "\n ... (truncated)"
}
