package diffformat

import (
	"strings"
	"testing"
)

const sampleDiff = `--- a/greet.py
+++ b/greet.py
@@ -1,5 +1,6 @@
 def greet(name):
+    """Return a greeting for name."""
     return "Hello, " + name

 def farewell(name):
     return "Bye, " + name
`

func TestExtractDiff(t *testing.T) {
	t.Run("fenced block", func(t *testing.T) {
		output := "Here is the patch:\n```diff\n" + sampleDiff + "```\nLet me know if it helps."
		got, err := ExtractDiff(output)
		if err != nil {
			t.Fatalf("ExtractDiff failed: %v", err)
		}
		if !strings.Contains(got, "+++ b/greet.py") || !strings.Contains(got, `+    """Return a greeting for name."""`) {
			t.Errorf("extracted diff lost content:\n%s", got)
		}
	})

	t.Run("bare markers with trailing prose", func(t *testing.T) {
		output := "I made the change.\n" + sampleDiff + "This adds a docstring."
		got, err := ExtractDiff(output)
		if err != nil {
			t.Fatalf("ExtractDiff failed: %v", err)
		}
		if strings.Contains(got, "docstring.") && !strings.Contains(got, `"""`) {
			t.Errorf("trailing prose leaked into diff:\n%s", got)
		}
		if !strings.Contains(got, "@@ -1,5 +1,6 @@") {
			t.Errorf("hunk header missing:\n%s", got)
		}
	})

	t.Run("no diff at all", func(t *testing.T) {
		if _, err := ExtractDiff("Sorry, I cannot produce a patch."); err == nil {
			t.Error("expected error for output without a diff")
		}
	})
}

func TestValidate(t *testing.T) {
	if err := Validate(sampleDiff); err != nil {
		t.Errorf("valid diff rejected: %v", err)
	}

	cases := []struct {
		name string
		diff string
	}{
		{"missing file headers", "@@ -1,2 +1,2 @@\n-a\n+b\n"},
		{"malformed hunk header", "--- a/f\n+++ b/f\n@@ -1,2 + @@\n-a\n+b\n"},
		{"no hunks", "--- a/f\n+++ b/f\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := Validate(tc.diff); err == nil {
				t.Errorf("Validate accepted %s", tc.name)
			}
		})
	}
}

func TestRepair(t *testing.T) {
	t.Run("fixes hunk spacing and counts", func(t *testing.T) {
		broken := "--- a/f.go\n+++ b/f.go\n@@-3,2 +3 @@\n-a\n+b\n+c\n"
		repaired := Repair(broken)
		if err := Validate(repaired); err != nil {
			t.Fatalf("repaired diff still invalid: %v\n%s", err, repaired)
		}
		if !strings.Contains(repaired, "@@ -3,2 +3,1 @@") {
			t.Errorf("hunk header not normalized:\n%s", repaired)
		}
	})

	t.Run("adds missing a/ b/ prefixes", func(t *testing.T) {
		broken := "--- f.go\n+++ f.go\n@@ -1,1 +1,1 @@\n-a\n+b\n"
		repaired := Repair(broken)
		if !strings.Contains(repaired, "--- a/f.go") || !strings.Contains(repaired, "+++ b/f.go") {
			t.Errorf("prefixes not added:\n%s", repaired)
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		once := Repair(sampleDiff)
		twice := Repair(once)
		if once != twice {
			t.Error("Repair is not idempotent")
		}
		if once != sampleDiff {
			t.Error("Repair modified an already-valid diff")
		}
	})
}

func TestModifiedFiles(t *testing.T) {
	diffText := "diff --git a/x/one.go b/x/one.go\n" +
		"--- a/x/one.go\n+++ b/x/one.go\n@@ -1,1 +1,1 @@\n-a\n+b\n" +
		"--- a/two.py\n+++ b/two.py\n@@ -1,1 +1,1 @@\n-a\n+b\n"
	files := ModifiedFiles(diffText)
	if len(files) != 2 || files[0] != "x/one.go" || files[1] != "two.py" {
		t.Errorf("ModifiedFiles = %v, want [x/one.go two.py]", files)
	}

	t.Run("dev null ignored", func(t *testing.T) {
		files := ModifiedFiles("--- a/gone.go\n+++ /dev/null\n@@ -1,1 +0,0 @@\n-a\n")
		if len(files) != 0 {
			t.Errorf("deleted file should yield no modified paths, got %v", files)
		}
	})
}

func TestApplyRoundTrip(t *testing.T) {
	before := "def greet(name):\n    return \"Hello, \" + name\n\ndef farewell(name):\n    return \"Bye, \" + name\n"
	after := "def greet(name):\n    \"\"\"Return a greeting for name.\"\"\"\n    return \"Hello, \" + name\n\ndef farewell(name):\n    return \"Bye, \" + name\n"

	// A diff computed from before/after must apply back onto before and
	// reproduce after exactly.
	diffText, err := Unified(before, after, "greet.py")
	if err != nil {
		t.Fatalf("Unified failed: %v", err)
	}

	got, err := Apply(before, diffText)
	if err != nil {
		t.Fatalf("Apply failed: %v\n%s", err, diffText)
	}
	if got != after {
		t.Errorf("round trip mismatch:\ngot:\n%s\nwant:\n%s", got, after)
	}
}

func TestApplyContextMismatch(t *testing.T) {
	original := "line one\nline two\nline three\n"
	diffText := "--- a/f\n+++ b/f\n@@ -1,3 +1,3 @@\n line one\n-completely different\n+replacement\n line three\n"
	if _, err := Apply(original, diffText); err == nil {
		t.Error("expected context mismatch error")
	}
}

func TestApplyBareHunk(t *testing.T) {
	original := "a\nb\nc"
	diffText := "@@ -1,3 +1,4 @@\n a\n b\n+b2\n c\n"
	got, err := Apply(original, diffText)
	if err != nil {
		t.Fatalf("Apply failed on header-less diff: %v", err)
	}
	if got != "a\nb\nb2\nc" {
		t.Errorf("Apply = %q, want %q", got, "a\nb\nb2\nc")
	}
}
