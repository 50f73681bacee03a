package vcs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/codefionn/patchflink/internal/logger"
)

// Git implements the VCS interface for Git repositories.
type Git struct {
	workingDir string
	// repoRootOnce ensures we only look up the repo root once
	repoRootOnce sync.Once
	repoRoot     string
	repoRootErr  error
}

// NewGit creates a new Git VCS instance for the given working directory.
// The working directory should be within a Git repository.
func NewGit(workingDir string) *Git {
	return &Git{workingDir: workingDir}
}

// getRepoRoot returns the cached repository root, looking it up if necessary.
func (g *Git) getRepoRoot(ctx context.Context) (string, error) {
	g.repoRootOnce.Do(func() {
		cmd := exec.CommandContext(ctx, "git", "-C", g.workingDir, "rev-parse", "--show-toplevel")
		output, err := cmd.Output()
		if err != nil {
			g.repoRootErr = fmt.Errorf("not in a git repository: %w", err)
			return
		}
		g.repoRoot = strings.TrimSpace(string(output))
	})
	return g.repoRoot, g.repoRootErr
}

func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	root, err := g.getRepoRoot(ctx)
	if err != nil {
		return "", err
	}

	fullArgs := append([]string{"-C", root}, args...)
	cmd := exec.CommandContext(ctx, "git", fullArgs...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return string(output), fmt.Errorf("git %s failed: %s", args[0], strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// CreateBranch creates a new branch from base (or HEAD) and checks it out.
func (g *Git) CreateBranch(ctx context.Context, name, base string) error {
	args := []string{"checkout", "-b", name}
	if base != "" {
		args = append(args, base)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return err
	}
	logger.Debug("vcs: created branch %s (base %q)", name, base)
	return nil
}

// CheckoutBranch switches to an existing branch.
func (g *Git) CheckoutBranch(ctx context.Context, name string) error {
	_, err := g.run(ctx, "checkout", name)
	return err
}

// CurrentBranch returns the name of the current branch.
// Returns an empty string if on a detached HEAD.
func (g *Git) CurrentBranch(ctx context.Context) (string, error) {
	output, err := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}

	branch := strings.TrimSpace(output)
	if branch == "HEAD" {
		// Detached HEAD state
		return "", nil
	}
	return branch, nil
}

// ApplyPatch pipes unified diff text through git apply. Rejections are
// reported via the bool and message, not the error, so the caller can
// classify the tool output.
func (g *Git) ApplyPatch(ctx context.Context, patch string) (bool, string, error) {
	root, err := g.getRepoRoot(ctx)
	if err != nil {
		return false, "", err
	}

	tmp, err := os.CreateTemp("", "patchflink-*.diff")
	if err != nil {
		return false, "", fmt.Errorf("failed to create patch file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(patch); err != nil {
		tmp.Close()
		return false, "", fmt.Errorf("failed to write patch file: %w", err)
	}
	tmp.Close()

	cmd := exec.CommandContext(ctx, "git", "-C", root, "apply", "--whitespace=nowarn", tmp.Name())
	output, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(output))
		if msg == "" {
			msg = err.Error()
		}
		logger.Debug("vcs: git apply rejected patch: %s", msg)
		return false, msg, nil
	}

	return true, "", nil
}

// ResetChanges discards working-tree modifications.
func (g *Git) ResetChanges(ctx context.Context, hard bool) error {
	if hard {
		if _, err := g.run(ctx, "reset", "--hard", "HEAD"); err != nil {
			return err
		}
		// reset --hard leaves untracked files behind
		_, err := g.run(ctx, "clean", "-fd")
		return err
	}
	_, err := g.run(ctx, "checkout", "--", ".")
	return err
}

// StageChanges stages all working-tree changes.
func (g *Git) StageChanges(ctx context.Context) error {
	_, err := g.run(ctx, "add", "-A")
	return err
}

// Commit records staged changes and returns the new commit sha.
func (g *Git) Commit(ctx context.Context, message, author string) (string, error) {
	args := []string{"commit", "-m", message}
	if author != "" {
		args = append(args, "--author", author)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return "", err
	}

	output, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(output), nil
}
