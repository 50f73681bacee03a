package diffformat

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/go-diff/diff"
)

// Apply applies a unified diff to original content and returns the patched
// content. It is an in-memory application used for round-trip checks and
// for previewing; the working tree itself is patched through the VCS.
func Apply(original, diffText string) (string, error) {
	// Ensure the parser sees file headers even for bare hunk fragments.
	if !strings.HasPrefix(diffText, "---") && !strings.HasPrefix(diffText, "diff ") {
		diffText = "--- a/file\n+++ b/file\n" + diffText
	}

	fileDiff, err := diff.ParseFileDiff([]byte(diffText))
	if err != nil {
		return "", fmt.Errorf("failed to parse unified diff: %w", err)
	}

	originalLines := strings.Split(original, "\n")
	result := make([]string, 0, len(originalLines))
	currentOrigLine := 0

	for _, hunk := range fileDiff.Hunks {
		hunkStartLine := int(hunk.OrigStartLine) - 1 // 0-indexed
		if hunkStartLine < currentOrigLine {
			return "", fmt.Errorf("hunk at line %d overlaps previous hunk", hunk.OrigStartLine)
		}
		for currentOrigLine < hunkStartLine && currentOrigLine < len(originalLines) {
			result = append(result, originalLines[currentOrigLine])
			currentOrigLine++
		}

		for _, line := range strings.Split(string(hunk.Body), "\n") {
			if len(line) == 0 {
				continue
			}
			switch line[0] {
			case ' ': // context line, copy from original
				if currentOrigLine < len(originalLines) {
					if originalLines[currentOrigLine] != line[1:] {
						return "", fmt.Errorf("context mismatch at line %d: diff expects %q, file has %q",
							currentOrigLine+1, line[1:], originalLines[currentOrigLine])
					}
					result = append(result, originalLines[currentOrigLine])
					currentOrigLine++
				}
			case '-': // deleted line, skip in original
				if currentOrigLine < len(originalLines) {
					if originalLines[currentOrigLine] != line[1:] {
						return "", fmt.Errorf("deletion mismatch at line %d: diff removes %q, file has %q",
							currentOrigLine+1, line[1:], originalLines[currentOrigLine])
					}
					currentOrigLine++
				}
			case '+': // added line
				result = append(result, line[1:])
			}
		}
	}

	for currentOrigLine < len(originalLines) {
		result = append(result, originalLines[currentOrigLine])
		currentOrigLine++
	}

	return strings.Join(result, "\n"), nil
}

// Unified computes a unified diff between before and after with standard
// a/ b/ headers and 3 lines of context. Used by the rewrite strategy, which
// modifies files directly and only needs a diff for reporting.
func Unified(before, after, path string) (string, error) {
	ud := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "a/" + path,
		ToFile:   "b/" + path,
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(ud)
	if err != nil {
		return "", fmt.Errorf("failed to compute diff for %s: %w", path, err)
	}
	return text, nil
}
