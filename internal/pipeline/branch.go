package pipeline

import (
	"strings"

	"github.com/codefionn/patchflink/internal/consts"
)

// BranchName derives the working branch for a task. The name is a pure
// function of goal and task id, so a re-run of the same task lands on the
// same branch.
func BranchName(goal, taskID string) string {
	slug := slugify(goal, consts.BranchSlugMaxLen)
	if slug == "" {
		slug = "task"
	}

	suffix := branchSuffix(taskID, consts.BranchSuffixLen)
	if suffix == "" {
		suffix = "0"
	}

	return "coding/" + slug + "-" + suffix
}

// slugify lowercases the text, collapses every run of non-alphanumeric
// characters into a single hyphen and trims to maxLen.
func slugify(text string, maxLen int) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(text) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			sb.WriteByte('-')
			lastHyphen = true
		}
	}

	slug := strings.Trim(sb.String(), "-")
	if len(slug) > maxLen {
		slug = strings.Trim(slug[:maxLen], "-")
	}
	return slug
}

// branchSuffix takes the final hyphen-separated segment of the task id and
// keeps its last n alphanumeric characters, lowercased.
func branchSuffix(taskID string, n int) string {
	segment := taskID
	if idx := strings.LastIndexByte(taskID, '-'); idx >= 0 {
		segment = taskID[idx+1:]
	}

	var sb strings.Builder
	for _, r := range strings.ToLower(segment) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	suffix := sb.String()
	if len(suffix) > n {
		suffix = suffix[len(suffix)-n:]
	}
	return suffix
}
