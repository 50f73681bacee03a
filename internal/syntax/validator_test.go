//go:build cgo

package syntax

import "testing"

func TestValidateGo(t *testing.T) {
	v := NewValidator()

	t.Run("valid code", func(t *testing.T) {
		result, err := v.Validate("package main\n\nfunc main() {}\n", "go")
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if !result.Valid {
			t.Errorf("valid Go rejected: %+v", result.Errors)
		}
	})

	t.Run("broken code", func(t *testing.T) {
		result, err := v.Validate("package main\n\nfunc main() {\n", "go")
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if result.Valid {
			t.Error("unterminated function accepted")
		}
		if len(result.Errors) == 0 {
			t.Error("no syntax errors reported")
		}
	})
}

func TestValidatePython(t *testing.T) {
	v := NewValidator()

	result, err := v.Validate("def f(:\n    pass\n", "python")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if result.Valid {
		t.Error("malformed def accepted")
	}
	if len(result.Errors) > 0 && result.Errors[0].Line < 1 {
		t.Errorf("error line should be 1-based: %+v", result.Errors[0])
	}
}

func TestValidateEmptyAndUnsupported(t *testing.T) {
	v := NewValidator()

	result, err := v.Validate("   \n\t\n", "python")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !result.Valid {
		t.Error("whitespace-only content should be valid")
	}

	if _, err := v.Validate("x", "cobol"); err == nil {
		t.Error("unsupported language should error")
	}
}

func TestDetectLanguage(t *testing.T) {
	cases := map[string]string{
		"main.go":      "go",
		"app.py":       "python",
		"x/y/index.ts": "typescript",
		"comp.tsx":     "tsx",
		"run.sh":       "bash",
		"README.md":    "",
	}
	for path, want := range cases {
		if got := DetectLanguage(path); got != want {
			t.Errorf("DetectLanguage(%q) = %q, want %q", path, got, want)
		}
	}
}
