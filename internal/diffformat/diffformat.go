// Package diffformat handles the unified-diff grammar the pipeline speaks:
// extracting diff text from model output, validating and repairing hunk
// headers, listing modified files, and applying or generating diffs.
//
// The grammar is deliberately small. A diff is a sequence of:
//
//	git header    "diff --git a/<p1> b/<p2>"
//	file headers  "--- a/<path>" / "+++ b/<path>"
//	hunk header   "@@ -<start>,<count> +<start>,<count> @@[ section]"
//	hunk body     lines prefixed ' ', '+', '-' or "\ No newline..."
//
// parse, validate and repair are pure functions over this grammar.
package diffformat

import (
	"fmt"
	"regexp"
	"strings"
)

// Line-kind prefixes recognized in model output.
var diffMarkers = []string{"--- ", "+++ ", "@@ ", "diff --git ", "index "}

// hunkHeaderRe is the canonical hunk-header shape.
var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)

// looseHunkRe matches hunk headers with broken spacing or missing counts,
// e.g. "@@-3,2 +3,4@@" or "@@ -3 +3 @@".
var looseHunkRe = regexp.MustCompile(`^@@\s*-\s*(\d+)\s*(?:,\s*(\d+))?\s+\+\s*(\d+)\s*(?:,\s*(\d+))?\s*@@(.*)$`)

// fileHeaderRe matches old/new file header lines.
var fileHeaderRe = regexp.MustCompile(`^(---|\+\+\+)\s+(.+)$`)

// gitHeaderRe matches the optional git diff header.
var gitHeaderRe = regexp.MustCompile(`^diff --git a/(\S+) b/(\S+)$`)

// ExtractDiff pulls unified diff text out of raw model output. It prefers a
// fenced code block containing diff markers; failing that it collects the
// run of lines starting at the first diff marker.
func ExtractDiff(output string) (string, error) {
	if block := fencedBlockWithMarkers(output); block != "" {
		return strings.TrimRight(block, "\n") + "\n", nil
	}

	lines := strings.Split(output, "\n")
	start := -1
	for i, line := range lines {
		if isDiffMarker(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return "", fmt.Errorf("no unified diff found in output")
	}

	var collected []string
	for _, line := range lines[start:] {
		if isDiffBodyLine(line) {
			collected = append(collected, line)
			continue
		}
		// Prose after the diff ends collection; a blank line inside a hunk
		// is a context line that lost its leading space.
		if strings.TrimSpace(line) == "" {
			collected = append(collected, "")
			continue
		}
		break
	}

	diffText := strings.TrimRight(strings.Join(collected, "\n"), "\n")
	if diffText == "" {
		return "", fmt.Errorf("no unified diff found in output")
	}
	return diffText + "\n", nil
}

func fencedBlockWithMarkers(output string) string {
	rest := output
	for {
		open := strings.Index(rest, "```")
		if open < 0 {
			return ""
		}
		rest = rest[open+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		close := strings.Index(rest, "```")
		if close < 0 {
			return ""
		}
		block := rest[:close]
		if strings.Contains(block, "@@ ") || strings.Contains(block, "--- ") {
			return block
		}
		rest = rest[close+3:]
	}
}

func isDiffMarker(line string) bool {
	for _, marker := range diffMarkers {
		if strings.HasPrefix(line, marker) {
			return true
		}
	}
	return strings.HasPrefix(line, "@@") && strings.Contains(line, "-")
}

func isDiffBodyLine(line string) bool {
	if isDiffMarker(line) {
		return true
	}
	if line == "" {
		return false
	}
	switch line[0] {
	case ' ', '+', '-', '\\':
		return true
	}
	return false
}

// Validate checks that diff text conforms to the grammar: both file headers
// present before the first hunk, and every hunk header canonical.
func Validate(diffText string) error {
	var sawOld, sawNew, sawHunk bool

	for i, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "--- "):
			sawOld = true
		case strings.HasPrefix(line, "+++ "):
			sawNew = true
		case strings.HasPrefix(line, "@@"):
			if !sawOld || !sawNew {
				return fmt.Errorf("line %d: hunk header before file headers", i+1)
			}
			if !hunkHeaderRe.MatchString(line) {
				return fmt.Errorf("line %d: malformed hunk header %q", i+1, line)
			}
			sawHunk = true
		}
	}

	if !sawOld || !sawNew {
		return fmt.Errorf("missing ---/+++ file headers")
	}
	if !sawHunk {
		return fmt.Errorf("diff contains no hunks")
	}
	return nil
}

// Repair attempts a narrow fix of common model mistakes: missing a/ b/
// prefixes on file headers and malformed hunk-header spacing or counts.
// It never touches hunk bodies. Repair is idempotent; if the result still
// fails Validate the diff is beyond repair.
func Repair(diffText string) string {
	lines := strings.Split(diffText, "\n")
	for i, line := range lines {
		switch {
		case strings.HasPrefix(line, "@@"):
			if hunkHeaderRe.MatchString(line) {
				continue
			}
			if m := looseHunkRe.FindStringSubmatch(line); m != nil {
				origCount, newCount := m[2], m[4]
				if origCount == "" {
					origCount = "1"
				}
				if newCount == "" {
					newCount = "1"
				}
				section := m[5]
				if section != "" && !strings.HasPrefix(section, " ") {
					section = " " + strings.TrimSpace(section)
				}
				lines[i] = fmt.Sprintf("@@ -%s,%s +%s,%s @@%s", m[1], origCount, m[3], newCount, section)
			}
		case strings.HasPrefix(line, "--- "):
			lines[i] = repairFileHeader(line, "---", "a/")
		case strings.HasPrefix(line, "+++ "):
			lines[i] = repairFileHeader(line, "+++", "b/")
		}
	}
	return strings.Join(lines, "\n")
}

func repairFileHeader(line, prefix, side string) string {
	m := fileHeaderRe.FindStringSubmatch(line)
	if m == nil {
		return line
	}
	path := strings.TrimSpace(m[2])
	if path == "/dev/null" || strings.HasPrefix(path, "a/") || strings.HasPrefix(path, "b/") {
		return line
	}
	return prefix + " " + side + path
}

// ModifiedFiles extracts the target paths of a diff from "+++ b/" lines and
// "diff --git" headers, deduplicated in order of first appearance.
func ModifiedFiles(diffText string) []string {
	var files []string
	seen := make(map[string]bool)

	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" || path == "/dev/null" || seen[path] {
			return
		}
		seen[path] = true
		files = append(files, path)
	}

	for _, line := range strings.Split(diffText, "\n") {
		if m := gitHeaderRe.FindStringSubmatch(line); m != nil {
			add(m[2])
			continue
		}
		if strings.HasPrefix(line, "+++ ") {
			path := strings.TrimSpace(line[4:])
			// Strip tab-separated timestamp if present
			if idx := strings.IndexByte(path, '\t'); idx >= 0 {
				path = path[:idx]
			}
			path = strings.TrimPrefix(path, "b/")
			add(path)
		}
	}
	return files
}
