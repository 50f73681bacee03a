package pipeline

import (
	"fmt"
	"strings"
)

// classifyApplyError turns git-apply rejection text into a hint the next
// generation attempt can act on.
func classifyApplyError(message string) string {
	lower := strings.ToLower(message)

	switch {
	case isMalformedPatch(message):
		return "patch text is malformed: hunk headers or line counts are inconsistent with the content"
	case strings.Contains(lower, "does not apply"):
		return "patch context does not match the current file content; line numbers or context lines are stale"
	case strings.Contains(lower, "no such file"), strings.Contains(lower, "does not exist"):
		return "patch references a path missing from the working tree; check the target file paths"
	case strings.Contains(lower, "already exists"):
		return "patch creates a file that already exists"
	default:
		return fmt.Sprintf("patch application rejected: %s", firstLine(message))
	}
}

// isMalformedPatch reports whether the rejection indicates broken patch
// syntax rather than stale content. Malformed output is the signal that the
// model cannot produce well-formed diffs for this task.
func isMalformedPatch(message string) bool {
	lower := strings.ToLower(message)
	return strings.Contains(lower, "corrupt patch") || strings.Contains(lower, "malformed patch")
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if idx := strings.IndexByte(text, '\n'); idx >= 0 {
		return text[:idx]
	}
	return text
}
