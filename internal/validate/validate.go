// Package validate runs the gate sequence for modified files: syntax, lint,
// optional type-check (advisory) and optional tests.
package validate

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/codefionn/patchflink/internal/consts"
	"github.com/codefionn/patchflink/internal/fs"
	"github.com/codefionn/patchflink/internal/logger"
	"github.com/codefionn/patchflink/internal/syntax"
)

// Result holds the outcome of all validation gates for one attempt.
type Result struct {
	SyntaxValid     bool     `json:"syntax_valid"`
	LintPassed      bool     `json:"lint_passed"`
	TestsPassed     bool     `json:"tests_passed"`
	TypeCheckPassed bool     `json:"type_check_passed"`
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	TestOutput      string   `json:"test_output,omitempty"`
}

// IsValid reports overall validity. The type-check gate is advisory and
// never affects it.
func (r *Result) IsValid() bool {
	return r.SyntaxValid && r.LintPassed && r.TestsPassed
}

// Options selects optional gates for a validation run.
type Options struct {
	// RunTests enables the test gate when a runner is available.
	RunTests bool
	// TestPattern filters the test subset (pytest -k / go test -run).
	TestPattern string
}

// commandFunc executes a subprocess with a timeout. It returns combined
// output, whether the command exited zero, and whether it timed out.
type commandFunc func(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (output string, ok bool, timedOut bool)

// Runner probes available tools once and runs the gate sequence.
type Runner struct {
	fs       fs.FileSystem
	syntax   *syntax.Validator
	log      *logger.Logger
	runCmd   commandFunc
	lookPath func(string) (string, error)

	// probed tool availability, filled lazily
	available map[string]bool
}

// NewRunner creates a validation runner over the given filesystem.
func NewRunner(filesystem fs.FileSystem) *Runner {
	return &Runner{
		fs:        filesystem,
		syntax:    syntax.NewValidator(),
		log:       logger.Global().WithPrefix("validate"),
		runCmd:    runSubprocess,
		lookPath:  exec.LookPath,
		available: make(map[string]bool),
	}
}

// toolAvailable probes PATH once per tool name.
func (r *Runner) toolAvailable(name string) bool {
	if ok, seen := r.available[name]; seen {
		return ok
	}
	_, err := r.lookPath(name)
	r.available[name] = err == nil
	return err == nil
}

// Run executes the gates in order, short-circuiting on syntax failure.
func (r *Runner) Run(ctx context.Context, modifiedFiles []string, opts Options) *Result {
	result := &Result{}

	r.checkSyntax(ctx, modifiedFiles, result)
	if !result.SyntaxValid {
		// Downstream gates would only add noise on top of a parse failure.
		return result
	}

	r.runLint(ctx, modifiedFiles, result)
	r.runTypeCheck(ctx, modifiedFiles, result)
	r.runTests(ctx, opts, result)

	return result
}

// checkSyntax parses each modified source file. Files without a supported
// grammar are skipped, not failed.
func (r *Runner) checkSyntax(ctx context.Context, files []string, result *Result) {
	result.SyntaxValid = true

	for _, path := range files {
		language := syntax.DetectLanguage(path)
		if language == "" || !syntax.IsValidationSupported(language) {
			continue
		}

		data, err := r.fs.ReadFile(ctx, path)
		if err != nil {
			result.SyntaxValid = false
			result.Errors = append(result.Errors, fmt.Sprintf("%s: cannot read for syntax check: %v", path, err))
			continue
		}

		vres, err := r.syntax.Validate(string(data), language)
		if err != nil {
			r.log.Warn("syntax validation unavailable for %s: %v", path, err)
			continue
		}
		if !vres.Valid {
			result.SyntaxValid = false
			for _, serr := range vres.Errors {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s:%d:%d: %s", path, serr.Line, serr.Column, serr.Message))
			}
		}
	}
}

// lintCommand picks exactly one linter per language family, fastest first.
func (r *Runner) lintCommand(language string, files []string) (string, []string) {
	switch language {
	case "python":
		switch {
		case r.toolAvailable("ruff"):
			return "ruff", append([]string{"check"}, files...)
		case r.toolAvailable("black"):
			return "black", append([]string{"--check", "--quiet"}, files...)
		case r.toolAvailable("pylint"):
			return "pylint", append([]string{"--errors-only"}, files...)
		}
	case "go":
		switch {
		case r.toolAvailable("gofmt"):
			return "gofmt", append([]string{"-l"}, files...)
		case r.toolAvailable("go"):
			return "go", []string{"vet", "./..."}
		}
	}
	return "", nil
}

// runLint groups modified files by language and runs one linter per group.
// No available linter means the gate passes vacuously.
func (r *Runner) runLint(ctx context.Context, files []string, result *Result) {
	result.LintPassed = true

	byLanguage := make(map[string][]string)
	for _, path := range files {
		if lang := syntax.DetectLanguage(path); lang != "" {
			byLanguage[lang] = append(byLanguage[lang], path)
		}
	}

	for language, group := range byLanguage {
		name, args := r.lintCommand(language, group)
		if name == "" {
			continue
		}

		output, ok, timedOut := r.runCmd(ctx, consts.LintTimeout, r.fs.BaseDir(), name, args...)
		if timedOut {
			result.LintPassed = false
			result.Errors = append(result.Errors, fmt.Sprintf("lint (%s) timed out", name))
			continue
		}

		// gofmt -l exits zero but lists unformatted files on stdout.
		if name == "gofmt" {
			if strings.TrimSpace(output) != "" {
				result.LintPassed = false
				for _, f := range strings.Fields(output) {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: not gofmt-formatted", f))
				}
			}
			continue
		}

		if !ok {
			result.LintPassed = false
			result.Errors = append(result.Errors, firstLines(output, 10)...)
		}
	}
}

// runTypeCheck records findings as warnings only; it never gates validity.
func (r *Runner) runTypeCheck(ctx context.Context, files []string, result *Result) {
	result.TypeCheckPassed = true

	var pyFiles, tsFiles []string
	for _, path := range files {
		switch syntax.DetectLanguage(path) {
		case "python":
			pyFiles = append(pyFiles, path)
		case "typescript", "tsx":
			tsFiles = append(tsFiles, path)
		}
	}

	if len(pyFiles) > 0 && r.toolAvailable("mypy") {
		output, ok, timedOut := r.runCmd(ctx, consts.TypeCheckTimeout, r.fs.BaseDir(),
			"mypy", append([]string{"--no-error-summary"}, pyFiles...)...)
		if timedOut {
			result.Warnings = append(result.Warnings, "type check timed out")
			result.TypeCheckPassed = false
		} else if !ok {
			result.TypeCheckPassed = false
			result.Warnings = append(result.Warnings, firstLines(output, 10)...)
		}
	}

	if len(tsFiles) > 0 && r.toolAvailable("tsc") {
		output, ok, timedOut := r.runCmd(ctx, consts.TypeCheckTimeout, r.fs.BaseDir(), "tsc", "--noEmit")
		if timedOut {
			result.Warnings = append(result.Warnings, "type check timed out")
			result.TypeCheckPassed = false
		} else if !ok {
			result.TypeCheckPassed = false
			result.Warnings = append(result.Warnings, firstLines(output, 10)...)
		}
	}
}

// runTests runs a pattern-filtered test subset when requested and a runner
// is available. A timeout is a validation failure, not a fatal error.
func (r *Runner) runTests(ctx context.Context, opts Options, result *Result) {
	result.TestsPassed = true

	if !opts.RunTests {
		return
	}

	var name string
	var args []string
	switch {
	case r.toolAvailable("pytest"):
		name = "pytest"
		args = []string{"-x", "-q"}
		if opts.TestPattern != "" {
			args = append(args, "-k", opts.TestPattern)
		}
	case r.toolAvailable("go"):
		name = "go"
		args = []string{"test"}
		if opts.TestPattern != "" {
			args = append(args, "-run", opts.TestPattern)
		}
		args = append(args, "./...")
	default:
		return
	}

	output, ok, timedOut := r.runCmd(ctx, consts.TestTimeout, r.fs.BaseDir(), name, args...)
	result.TestOutput = output
	if timedOut {
		result.TestsPassed = false
		result.Errors = append(result.Errors, "test run timed out")
		return
	}
	if !ok {
		result.TestsPassed = false
		result.Errors = append(result.Errors, extractTestFailures(output)...)
	}
}

// extractTestFailures scans test output for FAILED markers, capturing the
// lines after each as assertion context.
func extractTestFailures(output string) []string {
	lines := strings.Split(output, "\n")
	var failures []string
	for i, line := range lines {
		if !strings.Contains(line, "FAILED") {
			continue
		}
		failures = append(failures, strings.TrimSpace(line))
		for j := i + 1; j < len(lines) && j <= i+3; j++ {
			ctxLine := strings.TrimSpace(lines[j])
			if ctxLine == "" || strings.Contains(lines[j], "FAILED") {
				break
			}
			failures = append(failures, "  "+ctxLine)
		}
	}
	if len(failures) == 0 {
		failures = firstLines(output, 5)
	}
	return failures
}

func firstLines(text string, n int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) >= n {
			break
		}
	}
	return out
}

// runSubprocess is the default commandFunc backed by os/exec.
func runSubprocess(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (string, bool, bool) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, name, args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()

	if cctx.Err() == context.DeadlineExceeded {
		return string(output), false, true
	}
	return string(output), err == nil, false
}
