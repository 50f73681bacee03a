// Package vcs provides the version control abstraction the pipeline runs
// against. It defines the operations needed for branch lifecycle, patch
// application and committing, with a Git implementation and a mock.
package vcs

import (
	"context"
)

// VCS represents the version-control capability consumed by a pipeline run.
// A run owns its working branch exclusively for its full lifetime.
type VCS interface {
	// CreateBranch creates a new branch from base (or HEAD when base is
	// empty) and checks it out.
	CreateBranch(ctx context.Context, name, base string) error

	// CheckoutBranch switches the working tree to an existing branch.
	CheckoutBranch(ctx context.Context, name string) error

	// CurrentBranch returns the checked-out branch name, or an empty string
	// on a detached HEAD.
	CurrentBranch(ctx context.Context) (string, error)

	// ApplyPatch applies unified diff text to the working tree. On rejection
	// it returns false and the tool's error text for classification; the
	// error return is reserved for infrastructure failures.
	ApplyPatch(ctx context.Context, patch string) (bool, string, error)

	// ResetChanges discards working-tree modifications. With hard=true the
	// tree is restored to HEAD including the index.
	ResetChanges(ctx context.Context, hard bool) error

	// StageChanges stages all working-tree changes.
	StageChanges(ctx context.Context) error

	// Commit records staged changes and returns the new commit sha.
	Commit(ctx context.Context, message, author string) (string, error)
}
