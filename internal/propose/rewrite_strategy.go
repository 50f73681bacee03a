package propose

import (
	"context"
	"fmt"
	"strings"

	"github.com/codefionn/patchflink/internal/consts"
	"github.com/codefionn/patchflink/internal/diffformat"
	"github.com/codefionn/patchflink/internal/llm"
)

const rewriteSystemPrompt = `You rewrite source files to implement a requested change.
Change only what is necessary, preserve everything else exactly, and output
the COMPLETE file inside one fenced code block. No commentary inside the block.`

// Marker phrases some models emit instead of fences.
var rewriteMarkers = []string{
	"Here is the complete file:",
	"Here's the complete file:",
	"The complete file:",
}

// ProposeRewrite runs the whole-file fallback strategy: each target file is
// regenerated in full and written directly to the working tree. The unified
// diff in the result exists only for reporting and the commit message; the
// applier's diff path is bypassed entirely.
func (p *Proposer) ProposeRewrite(ctx context.Context, req *Request) *PatchResult {
	result := &PatchResult{Strategy: StrategyRewrite}

	if len(req.Paths) == 0 {
		result.ErrorMessage = "rewrite strategy requires target paths"
		return result
	}

	var reportDiff strings.Builder
	for i, path := range req.Paths {
		if i >= consts.MaxTargetFiles {
			break
		}

		original, err := p.fs.ReadFile(ctx, path)
		if err != nil {
			result.ErrorMessage = fmt.Sprintf("cannot read %s for rewrite: %v", path, err)
			return result
		}

		resp, err := p.client.CompleteWithRequest(ctx, &llm.CompletionRequest{
			Messages:     []*llm.Message{{Role: "user", Content: p.buildRewritePrompt(req, path, string(original))}},
			SystemPrompt: rewriteSystemPrompt,
			Temperature:  consts.RefineTemperature,
			MaxTokens:    consts.DefaultGenerateMaxTokens,
		})
		if err != nil {
			result.ErrorMessage = fmt.Sprintf("rewrite generation failed for %s: %v", path, err)
			return result
		}
		result.TokensUsed += resp.Usage.Total()

		rewritten, err := extractRewrittenFile(resp.Content)
		if err != nil {
			result.ErrorMessage = fmt.Sprintf("no file content in rewrite output for %s: %v", path, err)
			return result
		}

		if rewritten == string(original) {
			p.log.Debug("rewrite of %s produced identical content", path)
			continue
		}

		if err := p.fs.WriteFile(ctx, path, []byte(rewritten)); err != nil {
			result.ErrorMessage = fmt.Sprintf("failed to write rewritten %s: %v", path, err)
			return result
		}

		diffText, err := diffformat.Unified(string(original), rewritten, path)
		if err == nil {
			reportDiff.WriteString(diffText)
		}
		result.FilesModified = append(result.FilesModified, path)
	}

	if len(result.FilesModified) == 0 {
		result.ErrorMessage = "rewrite produced no changes"
		return result
	}

	result.Success = true
	result.PatchContent = reportDiff.String()
	return result
}

func (p *Proposer) buildRewritePrompt(req *Request, path, original string) string {
	var sb strings.Builder
	sb.WriteString("Goal: " + req.Goal + "\n")
	if len(req.PriorErrors) > 0 {
		sb.WriteString("\nA previous attempt failed with:\n")
		errs := req.PriorErrors
		if len(errs) > consts.MaxErrorLinesInPrompt {
			errs = errs[:consts.MaxErrorLinesInPrompt]
		}
		for _, e := range errs {
			sb.WriteString("- " + e + "\n")
		}
	}
	sb.WriteString(fmt.Sprintf("\nFile: %s\n\n```\n%s\n```\n", path, original))
	sb.WriteString("\nOutput the complete updated file.")
	return sb.String()
}

// extractRewrittenFile pulls the replacement file content from model output:
// a fenced block if present, else text following a recognized marker phrase.
func extractRewrittenFile(output string) (string, error) {
	if block, ok := firstFencedBlock(output); ok {
		return block, nil
	}

	for _, marker := range rewriteMarkers {
		if idx := strings.Index(output, marker); idx >= 0 {
			content := strings.TrimLeft(output[idx+len(marker):], "\n")
			if strings.TrimSpace(content) != "" {
				return content, nil
			}
		}
	}

	return "", fmt.Errorf("output has neither a fenced block nor a file marker")
}

func firstFencedBlock(output string) (string, bool) {
	open := strings.Index(output, "```")
	if open < 0 {
		return "", false
	}
	rest := output[open+3:]
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		rest = rest[nl+1:]
	}
	close := strings.Index(rest, "```")
	if close < 0 {
		return "", false
	}
	return rest[:close], true
}
