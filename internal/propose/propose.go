// Package propose generates candidate patches for a task, either as a
// unified diff or as whole-file rewrites when diff generation keeps failing.
package propose

import (
	"github.com/codefionn/patchflink/internal/ctxbuild"
	"github.com/codefionn/patchflink/internal/fs"
	"github.com/codefionn/patchflink/internal/llm"
	"github.com/codefionn/patchflink/internal/logger"
)

// Strategy selects how a patch is produced.
type Strategy string

const (
	// StrategyDiff asks the model for a unified diff.
	StrategyDiff Strategy = "diff"
	// StrategyRewrite asks the model for complete replacement files and
	// writes them directly, bypassing diff application.
	StrategyRewrite Strategy = "rewrite"
)

// PatchResult is the outcome of one generation attempt.
type PatchResult struct {
	Success       bool
	PatchContent  string
	ErrorMessage  string
	FilesModified []string
	TokensUsed    int
	Strategy      Strategy
}

// Request carries everything one generation attempt needs.
type Request struct {
	Goal    string
	Paths   []string
	Context *ctxbuild.CodeContext

	// Attempt is 0-based; blind retries raise the sampling temperature.
	Attempt int

	// PriorPatch and PriorErrors switch the diff strategy into targeted
	// refinement mode at a fixed low temperature.
	PriorPatch  string
	PriorErrors []string
}

// Proposer produces candidate patches through the completion capability.
type Proposer struct {
	client llm.Client
	fs     fs.FileSystem
	log    *logger.Logger
}

// NewProposer creates a proposer.
func NewProposer(client llm.Client, filesystem fs.FileSystem) *Proposer {
	return &Proposer{
		client: client,
		fs:     filesystem,
		log:    logger.Global().WithPrefix("propose"),
	}
}
