package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// setupTestRepo creates a throwaway git repository with one committed file.
func setupTestRepo(t *testing.T) (string, *Git) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}

	run("init", "-b", "main")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "Test")

	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("x = 1\ny = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	run("add", "-A")
	run("commit", "-m", "initial")

	return dir, NewGit(dir)
}

func TestBranchLifecycle(t *testing.T) {
	_, g := setupTestRepo(t)
	ctx := context.Background()

	branch, err := g.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch failed: %v", err)
	}
	if branch != "main" {
		t.Errorf("current branch = %q, want main", branch)
	}

	if err := g.CreateBranch(ctx, "coding/test-branch-abc12345", ""); err != nil {
		t.Fatalf("CreateBranch failed: %v", err)
	}

	branch, err = g.CurrentBranch(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if branch != "coding/test-branch-abc12345" {
		t.Errorf("current branch = %q after create", branch)
	}

	if err := g.CheckoutBranch(ctx, "main"); err != nil {
		t.Fatalf("CheckoutBranch failed: %v", err)
	}

	// Creating the same branch twice must fail.
	if err := g.CreateBranch(ctx, "coding/test-branch-abc12345", ""); err == nil {
		t.Error("duplicate CreateBranch should fail")
	}
}

func TestApplyPatch(t *testing.T) {
	dir, g := setupTestRepo(t)
	ctx := context.Background()

	t.Run("valid patch", func(t *testing.T) {
		patch := "--- a/app.py\n+++ b/app.py\n@@ -1,2 +1,2 @@\n-x = 1\n+x = 42\n y = 2\n"
		applied, msg, err := g.ApplyPatch(ctx, patch)
		if err != nil {
			t.Fatalf("ApplyPatch errored: %v", err)
		}
		if !applied {
			t.Fatalf("patch rejected: %s", msg)
		}

		data, err := os.ReadFile(filepath.Join(dir, "app.py"))
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(data), "x = 42") {
			t.Errorf("file content after apply: %q", data)
		}
	})

	t.Run("stale context", func(t *testing.T) {
		patch := "--- a/app.py\n+++ b/app.py\n@@ -1,2 +1,2 @@\n-x = 999\n+x = 0\n y = 2\n"
		applied, msg, err := g.ApplyPatch(ctx, patch)
		if err != nil {
			t.Fatalf("ApplyPatch errored: %v", err)
		}
		if applied {
			t.Error("stale patch should be rejected")
		}
		if msg == "" {
			t.Error("rejection must carry the tool output")
		}
	})

	t.Run("corrupt patch", func(t *testing.T) {
		applied, msg, err := g.ApplyPatch(ctx, "--- a/app.py\n+++ b/app.py\n@@ garbage @@\n")
		if err != nil {
			t.Fatalf("ApplyPatch errored: %v", err)
		}
		if applied {
			t.Error("corrupt patch should be rejected")
		}
		if !strings.Contains(strings.ToLower(msg), "patch") {
			t.Errorf("rejection message = %q", msg)
		}
	})
}

func TestResetChanges(t *testing.T) {
	dir, g := setupTestRepo(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("modified\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "untracked.py"), []byte("new\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := g.ResetChanges(ctx, true); err != nil {
		t.Fatalf("ResetChanges failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "app.py"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "x = 1\ny = 2\n" {
		t.Errorf("tracked file not restored: %q", data)
	}
	if _, err := os.Stat(filepath.Join(dir, "untracked.py")); !os.IsNotExist(err) {
		t.Error("untracked file survived hard reset")
	}
}

func TestStageAndCommit(t *testing.T) {
	dir, g := setupTestRepo(t)
	ctx := context.Background()

	if err := os.WriteFile(filepath.Join(dir, "app.py"), []byte("x = 3\ny = 2\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := g.StageChanges(ctx); err != nil {
		t.Fatalf("StageChanges failed: %v", err)
	}

	sha, err := g.Commit(ctx, "Change x\n\nTask ID: t-1\n", "Test Bot <bot@example.com>")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if len(sha) != 40 {
		t.Errorf("sha = %q, want full 40-char sha", sha)
	}

	// Author must be recorded.
	out, err := exec.Command("git", "-C", dir, "log", "-1", "--format=%an <%ae>").Output()
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(string(out)) != "Test Bot <bot@example.com>" {
		t.Errorf("author = %q", strings.TrimSpace(string(out)))
	}
}

func TestNotARepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	g := NewGit(t.TempDir())
	if _, err := g.CurrentBranch(context.Background()); err == nil {
		t.Error("operations outside a repository should fail")
	}
}
