package vcs

import (
	"context"
)

// MockVCS is a mock implementation of the VCS interface for testing.
type MockVCS struct {
	// CreateBranchFunc is the mock implementation for CreateBranch
	CreateBranchFunc func(ctx context.Context, name, base string) error

	// CheckoutBranchFunc is the mock implementation for CheckoutBranch
	CheckoutBranchFunc func(ctx context.Context, name string) error

	// CurrentBranchFunc is the mock implementation for CurrentBranch
	CurrentBranchFunc func(ctx context.Context) (string, error)

	// ApplyPatchFunc is the mock implementation for ApplyPatch
	ApplyPatchFunc func(ctx context.Context, patch string) (bool, string, error)

	// ResetChangesFunc is the mock implementation for ResetChanges
	ResetChangesFunc func(ctx context.Context, hard bool) error

	// StageChangesFunc is the mock implementation for StageChanges
	StageChangesFunc func(ctx context.Context) error

	// CommitFunc is the mock implementation for Commit
	CommitFunc func(ctx context.Context, message, author string) (string, error)

	// Checkouts records every branch passed to CheckoutBranch
	Checkouts []string
	// Resets records the hard flag of every ResetChanges call
	Resets []bool
}

// CreateBranch calls the mock CreateBranchFunc if set, otherwise succeeds.
func (m *MockVCS) CreateBranch(ctx context.Context, name, base string) error {
	if m.CreateBranchFunc != nil {
		return m.CreateBranchFunc(ctx, name, base)
	}
	return nil
}

// CheckoutBranch calls the mock CheckoutBranchFunc if set, otherwise succeeds.
func (m *MockVCS) CheckoutBranch(ctx context.Context, name string) error {
	m.Checkouts = append(m.Checkouts, name)
	if m.CheckoutBranchFunc != nil {
		return m.CheckoutBranchFunc(ctx, name)
	}
	return nil
}

// CurrentBranch calls the mock CurrentBranchFunc if set, otherwise returns "main".
func (m *MockVCS) CurrentBranch(ctx context.Context) (string, error) {
	if m.CurrentBranchFunc != nil {
		return m.CurrentBranchFunc(ctx)
	}
	return "main", nil
}

// ApplyPatch calls the mock ApplyPatchFunc if set, otherwise accepts the patch.
func (m *MockVCS) ApplyPatch(ctx context.Context, patch string) (bool, string, error) {
	if m.ApplyPatchFunc != nil {
		return m.ApplyPatchFunc(ctx, patch)
	}
	return true, "", nil
}

// ResetChanges calls the mock ResetChangesFunc if set, otherwise succeeds.
func (m *MockVCS) ResetChanges(ctx context.Context, hard bool) error {
	m.Resets = append(m.Resets, hard)
	if m.ResetChangesFunc != nil {
		return m.ResetChangesFunc(ctx, hard)
	}
	return nil
}

// StageChanges calls the mock StageChangesFunc if set, otherwise succeeds.
func (m *MockVCS) StageChanges(ctx context.Context) error {
	if m.StageChangesFunc != nil {
		return m.StageChangesFunc(ctx)
	}
	return nil
}

// Commit calls the mock CommitFunc if set, otherwise returns a fixed sha.
func (m *MockVCS) Commit(ctx context.Context, message, author string) (string, error) {
	if m.CommitFunc != nil {
		return m.CommitFunc(ctx, message, author)
	}
	return "deadbeefdeadbeefdeadbeefdeadbeefdeadbeef", nil
}
