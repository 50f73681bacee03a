// Package task defines the task specification consumed by the pipeline and
// the commit result it produces.
package task

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Spec is a single coding task produced by an external planner. It is
// immutable and consumed exactly once per pipeline run.
type Spec struct {
	ID              string   `json:"id"`
	Goal            string   `json:"goal"`
	Paths           []string `json:"paths"`
	BlobIDs         []string `json:"blob_ids,omitempty"`
	SkeletonPatches []string `json:"skeleton_patches,omitempty"`
	BaseCommit      string   `json:"base_commit,omitempty"`
	ComplexityLabel string   `json:"complexity_label,omitempty"`
	EstimatedTokens int      `json:"estimated_tokens,omitempty"`
	ParentPlanID    string   `json:"parent_plan_id,omitempty"`
}

// Validate checks the fields required to start a pipeline run.
func (s *Spec) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("task spec is missing an id")
	}
	if strings.TrimSpace(s.Goal) == "" {
		return fmt.Errorf("task %s has an empty goal", s.ID)
	}
	return nil
}

// BlobRef is a parsed blob id locator: <path>:<startLine>:<endLine>:<shortHash>.
type BlobRef struct {
	Path      string
	StartLine int
	EndLine   int
	ShortHash string
}

// ParseBlobRef parses a blob id. The path itself may contain colons only on
// Windows drive letters, which the planner never emits, so the last three
// colon-separated fields are taken as start, end and hash.
func ParseBlobRef(id string) (*BlobRef, error) {
	parts := strings.Split(id, ":")
	if len(parts) < 4 {
		return nil, fmt.Errorf("malformed blob id %q: want path:start:end:hash", id)
	}

	hash := parts[len(parts)-1]
	endStr := parts[len(parts)-2]
	startStr := parts[len(parts)-3]
	path := strings.Join(parts[:len(parts)-3], ":")

	if path == "" {
		return nil, fmt.Errorf("malformed blob id %q: empty path", id)
	}

	start, err := strconv.Atoi(startStr)
	if err != nil {
		return nil, fmt.Errorf("malformed blob id %q: bad start line: %w", id, err)
	}
	end, err := strconv.Atoi(endStr)
	if err != nil {
		return nil, fmt.Errorf("malformed blob id %q: bad end line: %w", id, err)
	}
	if start < 1 || end < start {
		return nil, fmt.Errorf("malformed blob id %q: invalid line range %d-%d", id, start, end)
	}

	return &BlobRef{
		Path:      path,
		StartLine: start,
		EndLine:   end,
		ShortHash: hash,
	}, nil
}

// String formats the blob ref back into its id form.
func (b *BlobRef) String() string {
	return fmt.Sprintf("%s:%d:%d:%s", b.Path, b.StartLine, b.EndLine, b.ShortHash)
}

// ShortHash returns the first 8 hex characters of the xxhash64 digest of
// content. A mismatch against a stored blob hash means the underlying file
// changed since indexing; callers treat that as a staleness warning.
func ShortHash(content string) string {
	sum := xxhash.Sum64String(content)
	return fmt.Sprintf("%016x", sum)[:8]
}

// Matches reports whether content still hashes to the ref's short hash.
func (b *BlobRef) Matches(content string) bool {
	return b.ShortHash != "" && ShortHash(content) == b.ShortHash
}
