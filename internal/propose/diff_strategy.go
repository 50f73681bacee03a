package propose

import (
	"context"
	"fmt"
	"strings"

	"github.com/codefionn/patchflink/internal/consts"
	"github.com/codefionn/patchflink/internal/diffformat"
	"github.com/codefionn/patchflink/internal/llm"
)

const diffSystemPrompt = `You write minimal, correct unified diffs for code changes.
Formatting rules, all mandatory:
- File headers use exactly "--- a/<path>" and "+++ b/<path>".
- Hunk headers use exactly "@@ -<start>,<count> +<start>,<count> @@" and the
  numbers must match the actual line numbers of the shown file content.
- Include 3 lines of unchanged context around each change.
- No trailing whitespace on any line.
- Output only the diff, inside one fenced code block.`

// ProposeDiff runs the diff strategy for one attempt.
func (p *Proposer) ProposeDiff(ctx context.Context, req *Request) *PatchResult {
	prompt, temperature := p.buildDiffPrompt(req)

	resp, err := p.client.CompleteWithRequest(ctx, &llm.CompletionRequest{
		Messages:     []*llm.Message{{Role: "user", Content: prompt}},
		SystemPrompt: diffSystemPrompt,
		Temperature:  temperature,
		MaxTokens:    consts.DefaultGenerateMaxTokens,
	})
	if err != nil {
		return &PatchResult{
			Strategy:     StrategyDiff,
			ErrorMessage: fmt.Sprintf("diff generation failed: %v", err),
		}
	}

	result := &PatchResult{
		Strategy:   StrategyDiff,
		TokensUsed: resp.Usage.Total(),
	}

	diffText, err := diffformat.ExtractDiff(resp.Content)
	if err != nil {
		result.ErrorMessage = err.Error()
		return result
	}

	if err := diffformat.Validate(diffText); err != nil {
		p.log.Debug("diff invalid (%v), attempting repair", err)
		diffText = diffformat.Repair(diffText)
		if err := diffformat.Validate(diffText); err != nil {
			result.ErrorMessage = fmt.Sprintf("diff malformed beyond repair: %v", err)
			return result
		}
	}

	result.Success = true
	result.PatchContent = diffText
	result.FilesModified = diffformat.ModifiedFiles(diffText)
	return result
}

// buildDiffPrompt chooses between targeted refinement (prior patch failed
// with concrete errors, fixed low temperature) and a fresh or blind-retry
// prompt (temperature escalates per attempt).
func (p *Proposer) buildDiffPrompt(req *Request) (string, float64) {
	var sb strings.Builder

	if req.PriorPatch != "" && len(req.PriorErrors) > 0 {
		sb.WriteString(req.Context.RenderPrompt())
		sb.WriteString("\nThe previous patch failed validation.\n\nFailing patch:\n```diff\n")
		sb.WriteString(req.PriorPatch)
		sb.WriteString("```\n\nErrors:\n")
		errs := req.PriorErrors
		if len(errs) > consts.MaxErrorLinesInPrompt {
			errs = errs[:consts.MaxErrorLinesInPrompt]
		}
		for _, e := range errs {
			sb.WriteString("- " + e + "\n")
		}
		sb.WriteString("\nProduce a corrected unified diff that fixes exactly these errors.")
		return sb.String(), consts.RefineTemperature
	}

	sb.WriteString(req.Context.RenderPrompt())
	sb.WriteString("\nWrite a unified diff implementing the goal against the target files above.")

	temperature := consts.BaseTemperature + float64(req.Attempt)*consts.RetryTemperatureStep
	if temperature > consts.MaxTemperature {
		temperature = consts.MaxTemperature
	}
	return sb.String(), temperature
}
