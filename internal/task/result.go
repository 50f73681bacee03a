package task

import "fmt"

// Status classifies the terminal outcome of a pipeline run.
type Status string

const (
	// StatusSuccess means a validated patch was committed.
	StatusSuccess Status = "SUCCESS"
	// StatusSoftFail means all attempts were exhausted; the orchestrator may
	// reschedule the task.
	StatusSoftFail Status = "SOFT_FAIL"
	// StatusHardFail means the run failed in a way retrying cannot fix
	// (branch setup failure or an unrecoverable error).
	StatusHardFail Status = "HARD_FAIL"
)

// CommitResult is the only durable output of a pipeline run. It is returned
// to the caller and never mutated afterward.
type CommitResult struct {
	TaskID     string   `json:"task_id"`
	Status     Status   `json:"status"`
	CommitSHA  string   `json:"commit_sha,omitempty"`
	BranchName string   `json:"branch_name,omitempty"`
	Notes      []string `json:"notes,omitempty"`
	Retries    int      `json:"retries"`
	TokensUsed int      `json:"tokens_used"`
}

// NewCommitResult returns a result defaulting pessimistically to HARD_FAIL.
func NewCommitResult(taskID string) *CommitResult {
	return &CommitResult{
		TaskID: taskID,
		Status: StatusHardFail,
	}
}

// AddNote appends a diagnostic note. Notes are append-only.
func (r *CommitResult) AddNote(format string, args ...interface{}) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}
