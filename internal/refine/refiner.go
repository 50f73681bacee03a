package refine

import (
	"context"
	"fmt"
	"strings"

	"github.com/codefionn/patchflink/internal/consts"
	"github.com/codefionn/patchflink/internal/ctxbuild"
	"github.com/codefionn/patchflink/internal/fs"
	"github.com/codefionn/patchflink/internal/llm"
	"github.com/codefionn/patchflink/internal/logger"
	"github.com/codefionn/patchflink/internal/retrieval"
	"github.com/codefionn/patchflink/internal/task"
)

const refinerSystemPrompt = `You decide which code lookups are needed before writing a patch.
Reply with ONLY a JSON array of tool calls, no prose. Available tools:
  {"tool": "readFile", "path": "<path>", "startLine": <optional>, "endLine": <optional>}
  {"tool": "searchCode", "query": "<free text>"}
  {"tool": "findSymbol", "name": "<function, method or class name>"}
Reply with [] if the gathered context is already sufficient.`

// Refiner asks the model which extra lookups it wants and executes a bounded
// number of them, appending results to the context. Every tool execution is
// isolated: a failing call is logged and skipped, never aborting refinement.
type Refiner struct {
	client    llm.Client
	retriever retrieval.Retriever
	fs        fs.FileSystem
	log       *logger.Logger
}

// NewRefiner creates a refiner. The retriever may be nil; search and symbol
// lookups then report as unavailable and are skipped like any failed call.
func NewRefiner(client llm.Client, retriever retrieval.Retriever, filesystem fs.FileSystem) *Refiner {
	return &Refiner{
		client:    client,
		retriever: retriever,
		fs:        filesystem,
		log:       logger.Global().WithPrefix("refine"),
	}
}

// Refine runs one refinement round against the context. It returns the
// number of tool results appended. A failure to obtain or parse the model's
// tool-call request degrades to zero lookups, not an error: refinement is an
// optimization, not a gate.
func (r *Refiner) Refine(ctx context.Context, spec *task.Spec, cc *ctxbuild.CodeContext) int {
	raw, err := r.client.CompleteStructured(ctx, &llm.CompletionRequest{
		Messages:     []*llm.Message{{Role: "user", Content: r.buildPrompt(spec, cc)}},
		SystemPrompt: refinerSystemPrompt,
		Temperature:  0.3,
		MaxTokens:    1024,
	})
	if err != nil {
		r.log.Warn("tool-call request failed: %v", err)
		return 0
	}

	calls, parseErrs := ParseToolCalls(raw)
	for _, perr := range parseErrs {
		r.log.Warn("skipping tool call: %v", perr)
	}
	if len(calls) > consts.MaxRefinementToolCalls {
		calls = calls[:consts.MaxRefinementToolCalls]
	}

	appended := 0
	searchN := 0
	for _, call := range calls {
		key, text, err := r.execute(ctx, call, &searchN)
		if err != nil {
			r.log.Warn("tool call %s failed: %v", call.Describe(), err)
			continue
		}
		cc.SetBlobContent(key, text)
		appended++
		r.log.Debug("tool call %s appended %d bytes as %s", call.Describe(), len(text), key)
	}
	return appended
}

func (r *Refiner) buildPrompt(spec *task.Spec, cc *ctxbuild.CodeContext) string {
	var sb strings.Builder
	sb.WriteString("Goal: " + spec.Goal + "\n")
	sb.WriteString(fmt.Sprintf("Context items already gathered: %d\n", cc.ItemCount()))
	sb.WriteString("Target files:\n")
	for _, path := range spec.Paths {
		sb.WriteString("  - " + path + "\n")
	}
	sb.WriteString("\nWhich lookups do you need before writing the patch?")
	return sb.String()
}

// execute dispatches one tool call. The type switch is exhaustive over the
// closed ToolCall set.
func (r *Refiner) execute(ctx context.Context, call ToolCall, searchN *int) (key, text string, err error) {
	switch c := call.(type) {
	case ReadFileCall:
		to := c.EndLine
		from := c.StartLine
		if from < 1 {
			from = 1
		}
		lines, err := r.fs.ReadFileLines(ctx, c.Path, from, to)
		if err != nil {
			return "", "", err
		}
		if len(lines) == 0 {
			return "", "", fmt.Errorf("no lines in range")
		}
		return "tool_read:" + c.Path, ctxbuild.NumberLines(lines, from), nil

	case SearchCodeCall:
		if r.retriever == nil {
			return "", "", fmt.Errorf("no retriever available")
		}
		results, err := r.retriever.Search(ctx, c.Query, 5, nil)
		if err != nil {
			return "", "", err
		}
		if len(results) == 0 {
			return "", "", fmt.Errorf("no results for %q", c.Query)
		}
		*searchN++
		return fmt.Sprintf("tool_search_%d", *searchN), formatSearchResults(results), nil

	case FindSymbolCall:
		if r.retriever == nil {
			return "", "", fmt.Errorf("no retriever available")
		}
		results, err := r.retriever.Search(ctx, c.Name, 3, &retrieval.Filters{
			ChunkTypes: []string{retrieval.ChunkFunction, retrieval.ChunkMethod, retrieval.ChunkClass},
		})
		if err != nil {
			return "", "", err
		}
		if len(results) == 0 {
			return "", "", fmt.Errorf("symbol %q not found", c.Name)
		}
		return "tool_symbol:" + c.Name, formatSearchResults(results), nil

	default:
		// Unreachable while ToolCall stays sealed.
		return "", "", fmt.Errorf("unhandled tool call %T", call)
	}
}

func formatSearchResults(results []retrieval.SearchResult) string {
	var sb strings.Builder
	for i, res := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("%s:%d-%d", res.FilePath, res.StartLine, res.EndLine))
		if res.SymbolName != "" {
			sb.WriteString(" (" + res.SymbolName + ")")
		}
		sb.WriteString("\n" + res.Content + "\n")
	}
	return sb.String()
}
