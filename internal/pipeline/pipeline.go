// Package pipeline drives one coding task end to end: branch setup, context
// assembly and refinement, patch generation, application, validation and
// commit, with bounded retries and a whole-file rewrite fallback.
package pipeline

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/codefionn/patchflink/internal/consts"
	"github.com/codefionn/patchflink/internal/ctxbuild"
	"github.com/codefionn/patchflink/internal/logger"
	"github.com/codefionn/patchflink/internal/propose"
	"github.com/codefionn/patchflink/internal/task"
	"github.com/codefionn/patchflink/internal/validate"
	"github.com/codefionn/patchflink/internal/vcs"
)

// ContextBuilder assembles the code context for a task.
type ContextBuilder interface {
	Build(ctx context.Context, spec *task.Spec) (*ctxbuild.CodeContext, error)
}

// ContextRefiner runs one model-directed lookup round against the context.
type ContextRefiner interface {
	Refine(ctx context.Context, spec *task.Spec, cc *ctxbuild.CodeContext) int
}

// PatchProposer generates candidate patches.
type PatchProposer interface {
	ProposeDiff(ctx context.Context, req *propose.Request) *propose.PatchResult
	ProposeRewrite(ctx context.Context, req *propose.Request) *propose.PatchResult
}

// Validator runs the gate sequence over modified files.
type Validator interface {
	Run(ctx context.Context, modifiedFiles []string, opts validate.Options) *validate.Result
}

// Options tune a controller. Zero values select defaults.
type Options struct {
	// MaxRetries is the number of retries beyond the first attempt.
	MaxRetries int
	// Author is the commit author in "Name <email>" form.
	Author string
	// RunTests enables the test gate during validation.
	RunTests bool
}

// Controller owns the state machine of a single-task run. It holds no state
// of its own between runs; everything mutable lives in the per-run state.
type Controller struct {
	vcs        vcs.VCS
	builder    ContextBuilder
	refiner    ContextRefiner
	proposer   PatchProposer
	validator  Validator
	maxRetries int
	author     string
	runTests   bool
	log        *logger.Logger
}

// NewController wires a controller from its capabilities. The refiner may be
// nil, which skips the refinement state.
func NewController(versionControl vcs.VCS, builder ContextBuilder, refiner ContextRefiner,
	proposer PatchProposer, validator Validator, opts Options) *Controller {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = consts.DefaultMaxRetries
	}
	if opts.Author == "" {
		opts.Author = "patchflink <noreply@patchflink.invalid>"
	}
	return &Controller{
		vcs:        versionControl,
		builder:    builder,
		refiner:    refiner,
		proposer:   proposer,
		validator:  validator,
		maxRetries: opts.MaxRetries,
		author:     opts.Author,
		runTests:   opts.RunTests,
		log:        logger.Global().WithPrefix("pipeline"),
	}
}

// state names the phases of a run. Transitions happen only in step().
type state int

const (
	stateBranchSetup state = iota
	stateContextGather
	stateContextRefine
	stateGenerate
	stateApply
	stateValidate
	stateCommit
	stateDone
)

// runState is the mutable state of one run. The strategy field is explicit:
// once switched to rewrite it never switches back within the run.
type runState struct {
	spec     *task.Spec
	result   *task.CommitResult
	cc       *ctxbuild.CodeContext
	strategy propose.Strategy
	attempt  int
	patch    *propose.PatchResult

	priorPatch  string
	priorErrors []string
}

// Run executes the full pipeline for one task. It always returns a
// CommitResult; errors surface as its status and notes, never as a Go error.
func (c *Controller) Run(ctx context.Context, spec *task.Spec) (result *task.CommitResult) {
	result = task.NewCommitResult(spec.ID)

	defer func() {
		if r := recover(); r != nil {
			result.Status = task.StatusHardFail
			result.AddNote("panic during pipeline run: %v", r)
			c.log.Error("task %s: panic: %v", spec.ID, r)
		}
	}()

	if err := spec.Validate(); err != nil {
		result.AddNote("invalid task: %v", err)
		return result
	}

	// Remember where we started so the caller's checkout survives the run.
	originalBranch, err := c.vcs.CurrentBranch(ctx)
	if err != nil {
		c.log.Warn("task %s: cannot determine current branch: %v", spec.ID, err)
	}
	if originalBranch != "" {
		defer func() {
			restoreCtx := context.WithoutCancel(ctx)
			if err := c.vcs.CheckoutBranch(restoreCtx, originalBranch); err != nil {
				result.AddNote("failed to restore branch %s: %v", originalBranch, err)
			}
		}()
	}

	rs := &runState{
		spec:     spec,
		result:   result,
		strategy: propose.StrategyDiff,
	}

	for st := stateBranchSetup; st != stateDone; {
		st = c.step(ctx, st, rs)
	}
	return result
}

func (c *Controller) step(ctx context.Context, st state, rs *runState) state {
	switch st {
	case stateBranchSetup:
		return c.branchSetup(ctx, rs)
	case stateContextGather:
		return c.contextGather(ctx, rs)
	case stateContextRefine:
		return c.contextRefine(ctx, rs)
	case stateGenerate:
		return c.generate(ctx, rs)
	case stateApply:
		return c.apply(ctx, rs)
	case stateValidate:
		return c.validate(ctx, rs)
	case stateCommit:
		return c.commit(ctx, rs)
	default:
		return stateDone
	}
}

// branchSetup creates and checks out the task branch. Failure here is not
// retryable: nothing was generated yet and the tree is untouched.
func (c *Controller) branchSetup(ctx context.Context, rs *runState) state {
	name := BranchName(rs.spec.Goal, rs.spec.ID)
	if err := c.vcs.CreateBranch(ctx, name, rs.spec.BaseCommit); err != nil {
		rs.result.Status = task.StatusHardFail
		rs.result.AddNote("branch setup failed: %v", err)
		return stateDone
	}
	rs.result.BranchName = name
	c.log.Info("task %s: working on branch %s", rs.spec.ID, name)
	return stateContextGather
}

func (c *Controller) contextGather(ctx context.Context, rs *runState) state {
	cc, err := c.builder.Build(ctx, rs.spec)
	if err != nil {
		rs.result.Status = task.StatusHardFail
		rs.result.AddNote("context assembly failed: %v", err)
		return stateDone
	}
	rs.cc = cc
	return stateContextRefine
}

func (c *Controller) contextRefine(ctx context.Context, rs *runState) state {
	if c.refiner != nil {
		appended := c.refiner.Refine(ctx, rs.spec, rs.cc)
		c.log.Debug("task %s: refinement appended %d lookups", rs.spec.ID, appended)
	}
	return stateGenerate
}

// generate produces a candidate patch with the current strategy. A diff
// generation failure with known target paths switches the run to the
// rewrite strategy immediately, within the same attempt.
func (c *Controller) generate(ctx context.Context, rs *runState) state {
	req := &propose.Request{
		Goal:        rs.spec.Goal,
		Paths:       rs.spec.Paths,
		Context:     rs.cc,
		Attempt:     rs.attempt,
		PriorPatch:  rs.priorPatch,
		PriorErrors: rs.priorErrors,
	}

	if rs.strategy == propose.StrategyDiff {
		pr := c.proposer.ProposeDiff(ctx, req)
		rs.result.TokensUsed += pr.TokensUsed
		if pr.Success {
			rs.patch = pr
			return stateApply
		}

		rs.result.AddNote("attempt %d: %s", rs.attempt+1, pr.ErrorMessage)
		if len(rs.spec.Paths) > 0 {
			c.switchToRewrite(rs, "diff generation failed")
			return stateGenerate
		}
		return c.nextAttempt(ctx, rs, false)
	}

	pr := c.proposer.ProposeRewrite(ctx, req)
	rs.result.TokensUsed += pr.TokensUsed
	if !pr.Success {
		rs.result.AddNote("attempt %d: %s", rs.attempt+1, pr.ErrorMessage)
		return c.nextAttempt(ctx, rs, true)
	}

	rs.patch = pr
	// Rewrite writes files directly; there is no patch to apply.
	return stateValidate
}

// apply feeds the generated diff to the VCS. A rejection is classified into
// a hint for the next attempt; malformed-patch rejections also flip the
// strategy to rewrite for the rest of the run.
func (c *Controller) apply(ctx context.Context, rs *runState) state {
	applied, message, err := c.vcs.ApplyPatch(ctx, rs.patch.PatchContent)
	if err != nil {
		rs.result.Status = task.StatusHardFail
		rs.result.AddNote("patch application error: %v", err)
		return stateDone
	}

	if !applied {
		hint := classifyApplyError(message)
		rs.result.AddNote("attempt %d: %s", rs.attempt+1, hint)
		rs.cc.AddErrorPattern(hint)

		if isMalformedPatch(message) && len(rs.spec.Paths) > 0 {
			c.switchToRewrite(rs, "applier rejected the patch as malformed")
		}

		rs.priorPatch = rs.patch.PatchContent
		rs.priorErrors = []string{hint}
		return c.nextAttempt(ctx, rs, true)
	}

	return stateValidate
}

func (c *Controller) validate(ctx context.Context, rs *runState) state {
	vres := c.validator.Run(ctx, rs.patch.FilesModified, validate.Options{
		RunTests:    c.runTests,
		TestPattern: testPattern(rs.spec.Paths),
	})

	if vres.IsValid() {
		for _, w := range vres.Warnings {
			rs.result.AddNote("warning: %s", w)
		}
		return stateCommit
	}

	rs.result.AddNote("attempt %d: validation failed (syntax=%t lint=%t tests=%t)",
		rs.attempt+1, vres.SyntaxValid, vres.LintPassed, vres.TestsPassed)
	for _, e := range vres.Errors {
		rs.cc.AddErrorPattern(e)
	}

	rs.priorPatch = rs.patch.PatchContent
	rs.priorErrors = vres.Errors
	return c.nextAttempt(ctx, rs, true)
}

func (c *Controller) commit(ctx context.Context, rs *runState) state {
	if err := c.vcs.StageChanges(ctx); err != nil {
		rs.result.Status = task.StatusHardFail
		rs.result.AddNote("staging failed: %v", err)
		return stateDone
	}

	sha, err := c.vcs.Commit(ctx, commitMessage(rs.spec, rs.patch.FilesModified), c.author)
	if err != nil {
		rs.result.Status = task.StatusHardFail
		rs.result.AddNote("commit failed: %v", err)
		return stateDone
	}

	rs.result.Status = task.StatusSuccess
	rs.result.CommitSHA = sha
	rs.result.Retries = rs.attempt
	c.log.Info("task %s: committed %s on %s after %d retries",
		rs.spec.ID, sha, rs.result.BranchName, rs.attempt)
	return stateDone
}

// nextAttempt discards working-tree changes and either starts the next
// attempt or classifies the run as exhausted.
func (c *Controller) nextAttempt(ctx context.Context, rs *runState, resetTree bool) state {
	if resetTree {
		if err := c.vcs.ResetChanges(ctx, true); err != nil {
			rs.result.Status = task.StatusHardFail
			rs.result.AddNote("working-tree reset failed: %v", err)
			return stateDone
		}
	}

	rs.attempt++
	if rs.attempt > c.maxRetries {
		rs.result.Status = task.StatusSoftFail
		rs.result.Retries = c.maxRetries
		rs.result.AddNote("exhausted %d attempts", rs.attempt)
		return stateDone
	}

	c.log.Info("task %s: retrying, attempt %d of %d (strategy %s)",
		rs.spec.ID, rs.attempt+1, c.maxRetries+1, rs.strategy)
	return stateGenerate
}

// switchToRewrite flips the run strategy permanently.
func (c *Controller) switchToRewrite(rs *runState, reason string) {
	if rs.strategy == propose.StrategyRewrite {
		return
	}
	rs.strategy = propose.StrategyRewrite
	rs.result.AddNote("switching to whole-file rewrite: %s", reason)
	c.log.Info("task %s: %s, switching to rewrite strategy", rs.spec.ID, reason)
}

// testPattern derives a test filter from the first target path so validation
// runs the subset closest to the change.
func testPattern(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	base := filepath.Base(paths[0])
	return strings.TrimSuffix(base, filepath.Ext(base))
}
