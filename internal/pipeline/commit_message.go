package pipeline

import (
	"sort"
	"strings"

	"github.com/codefionn/patchflink/internal/task"
)

// commitMessage renders the commit message for a successful run: goal as
// subject, task metadata and the modified file list in the body, and a fixed
// trailer identifying automated commits.
func commitMessage(spec *task.Spec, modified []string) string {
	var sb strings.Builder

	subject := firstLine(spec.Goal)
	if len(subject) > 72 {
		subject = subject[:69] + "..."
	}
	sb.WriteString(subject)
	sb.WriteString("\n\n")

	sb.WriteString("Task ID: " + spec.ID + "\n")
	if spec.ParentPlanID != "" {
		sb.WriteString("Plan ID: " + spec.ParentPlanID + "\n")
	}

	if len(modified) > 0 {
		files := append([]string(nil), modified...)
		sort.Strings(files)
		sb.WriteString("Modified files:\n")
		for _, f := range files {
			sb.WriteString("- " + f + "\n")
		}
	}

	sb.WriteString("\nAutomated-by: patchflink\n")
	return sb.String()
}
