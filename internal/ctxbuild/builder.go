package ctxbuild

import (
	"context"
	"fmt"
	"strings"

	"github.com/codefionn/patchflink/internal/consts"
	"github.com/codefionn/patchflink/internal/fs"
	"github.com/codefionn/patchflink/internal/logger"
	"github.com/codefionn/patchflink/internal/retrieval"
	"github.com/codefionn/patchflink/internal/task"
	"github.com/codefionn/patchflink/internal/tokens"
)

// Builder assembles a CodeContext for a task under a token budget.
// The retriever may be nil, in which case retrieval-backed steps are skipped.
type Builder struct {
	fs        fs.FileSystem
	retriever retrieval.Retriever
	estimator *tokens.Estimator
	budget    int
	log       *logger.Logger
}

// NewBuilder creates a context builder. budget <= 0 selects the default.
func NewBuilder(filesystem fs.FileSystem, retriever retrieval.Retriever, estimator *tokens.Estimator, budget int) *Builder {
	if budget <= 0 {
		budget = consts.DefaultTokenBudget
	}
	return &Builder{
		fs:        filesystem,
		retriever: retriever,
		estimator: estimator,
		budget:    budget,
		log:       logger.Global().WithPrefix("ctxbuild"),
	}
}

// Budget returns the active token budget.
func (b *Builder) Budget() int {
	return b.budget
}

// Build gathers context for the task and trims it under the budget.
func (b *Builder) Build(ctx context.Context, spec *task.Spec) (*CodeContext, error) {
	cc := NewCodeContext(spec.Goal, b.estimator)
	cc.SetSkeletonPatches(spec.SkeletonPatches)

	b.resolveBlobs(ctx, spec, cc)

	if err := b.loadTargetFiles(ctx, spec, cc); err != nil {
		return nil, err
	}

	b.searchRelatedFunctions(ctx, spec, cc)
	b.collectImports(ctx, spec, cc)
	b.searchErrorPatterns(ctx, spec, cc)

	b.trim(cc)

	b.log.Info("built context for task %s: %d items, %d tokens (budget %d)",
		spec.ID, cc.ItemCount(), cc.TokenCount, b.budget)
	return cc, nil
}

// resolveBlobs fetches previously retrieved chunks named by blob ids.
// Failures are logged and skipped; blob ids are hints, not requirements.
func (b *Builder) resolveBlobs(ctx context.Context, spec *task.Spec, cc *CodeContext) {
	if b.retriever == nil {
		return
	}

	count := 0
	for _, id := range spec.BlobIDs {
		if count >= consts.MaxBlobsPerTask {
			break
		}

		ref, err := task.ParseBlobRef(id)
		if err != nil {
			b.log.Warn("skipping blob id: %v", err)
			continue
		}

		snippet, err := b.retriever.GetSnippet(ctx, ref.Path, ref.StartLine, ref.EndLine, 0)
		if err != nil {
			b.log.Warn("failed to fetch blob %s: %v", id, err)
			continue
		}

		if !ref.Matches(snippet) {
			b.log.Debug("blob %s content hash changed since indexing", id)
		}

		cc.SetBlobContent(id, snippet)
		count++
	}
}

// loadTargetFiles reads each target path and stores it with 1-based line
// numbers in the fixed "%4d: " format the diff prompt depends on.
func (b *Builder) loadTargetFiles(ctx context.Context, spec *task.Spec, cc *CodeContext) error {
	for i, path := range spec.Paths {
		if i >= consts.MaxTargetFiles {
			break
		}

		exists, err := b.fs.Exists(ctx, path)
		if err != nil {
			return fmt.Errorf("failed to stat target %s: %w", path, err)
		}
		if !exists {
			// New files have no content to show; generation handles creation.
			cc.SetFileSnippet(path, "(new file)")
			continue
		}

		lines, err := b.fs.ReadFileLines(ctx, path, 1, 0)
		if err != nil {
			return fmt.Errorf("failed to read target %s: %w", path, err)
		}
		cc.SetFileSnippet(path, NumberLines(lines, 1))
	}
	return nil
}

// searchRelatedFunctions queries the retriever with the goal text, keeping
// only symbol-level results.
func (b *Builder) searchRelatedFunctions(ctx context.Context, spec *task.Spec, cc *CodeContext) {
	if b.retriever == nil {
		return
	}

	filters := &retrieval.Filters{
		ChunkTypes: []string{retrieval.ChunkFunction, retrieval.ChunkMethod, retrieval.ChunkClass},
	}
	results, err := b.retriever.Search(ctx, spec.Goal, consts.MaxRelatedFunctions, filters)
	if err != nil {
		b.log.Warn("related-function search failed: %v", err)
		return
	}

	fns := make([]RelatedFunction, 0, len(results))
	for _, r := range results {
		fns = append(fns, RelatedFunction{
			File:   r.FilePath,
			Line:   r.StartLine,
			Symbol: r.SymbolName,
			Score:  r.Score,
		})
	}
	cc.AddRelatedFunctions(fns...)
}

// collectImports scans target files for import-style lines.
func (b *Builder) collectImports(ctx context.Context, spec *task.Spec, cc *CodeContext) {
	var imports []string
	for i, path := range spec.Paths {
		if i >= consts.MaxTargetFiles {
			break
		}
		lines, err := b.fs.ReadFileLines(ctx, path, 1, 0)
		if err != nil {
			continue
		}
		for _, line := range lines {
			trimmed := strings.TrimSpace(line)
			if isImportLine(trimmed) {
				imports = append(imports, trimmed)
			}
		}
	}
	cc.AddImports(imports...)
}

// isImportLine matches Python-style import statements by line prefix.
func isImportLine(line string) bool {
	if strings.HasPrefix(line, "import ") {
		return true
	}
	return strings.HasPrefix(line, "from ") && strings.Contains(line, " import ")
}

// searchErrorPatterns looks up error-handling examples when the goal talks
// about errors or exceptions.
func (b *Builder) searchErrorPatterns(ctx context.Context, spec *task.Spec, cc *CodeContext) {
	if b.retriever == nil {
		return
	}

	goal := strings.ToLower(spec.Goal)
	if !strings.Contains(goal, "error") && !strings.Contains(goal, "exception") {
		return
	}

	results, err := b.retriever.Search(ctx, "error handling try except raise", consts.MaxErrorPatternHits, nil)
	if err != nil {
		b.log.Warn("error-pattern search failed: %v", err)
		return
	}
	for _, r := range results {
		cc.AddErrorPattern(r.Content)
	}
}

// NumberLines renders lines with 1-based numbers in the "%4d: " format.
func NumberLines(lines []string, start int) string {
	var sb strings.Builder
	for i, line := range lines {
		sb.WriteString(fmt.Sprintf("%4d: %s\n", start+i, line))
	}
	return sb.String()
}
