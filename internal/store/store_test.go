package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codefionn/patchflink/internal/task"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGetRuns(t *testing.T) {
	s := newTestStore(t)

	spec := &task.Spec{ID: "task-1", Goal: "Fix the parser"}
	result := &task.CommitResult{
		TaskID:     "task-1",
		Status:     task.StatusSuccess,
		CommitSHA:  "abc123",
		BranchName: "coding/fix-the-parser-task1",
		Notes:      []string{"attempt 1: ok"},
		Retries:    0,
		TokensUsed: 1500,
	}

	id, err := s.SaveResult(spec, result)
	require.NoError(t, err)
	assert.NotZero(t, id)

	runs, err := s.GetRuns("task-1")
	require.NoError(t, err)
	require.Len(t, runs, 1)

	rec := runs[0]
	assert.Equal(t, task.StatusSuccess, rec.Status)
	assert.Equal(t, "Fix the parser", rec.Goal)
	assert.Equal(t, "abc123", rec.CommitSHA)
	assert.Equal(t, "coding/fix-the-parser-task1", rec.BranchName)
	assert.Equal(t, []string{"attempt 1: ok"}, rec.Notes)
	assert.Equal(t, 1500, rec.TokensUsed)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestGetRunsFilter(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"task-a", "task-b", "task-a"} {
		spec := &task.Spec{ID: id, Goal: "goal"}
		_, err := s.SaveResult(spec, &task.CommitResult{TaskID: id, Status: task.StatusSoftFail})
		require.NoError(t, err)
	}

	runs, err := s.GetRuns("task-a")
	require.NoError(t, err)
	assert.Len(t, runs, 2)

	all, err := s.GetRuns("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLastRun(t *testing.T) {
	s := newTestStore(t)

	rec, err := s.LastRun("missing")
	require.NoError(t, err)
	assert.Nil(t, rec)

	spec := &task.Spec{ID: "task-1", Goal: "goal"}
	_, err = s.SaveResult(spec, &task.CommitResult{TaskID: "task-1", Status: task.StatusHardFail})
	require.NoError(t, err)
	_, err = s.SaveResult(spec, &task.CommitResult{TaskID: "task-1", Status: task.StatusSuccess, CommitSHA: "fff"})
	require.NoError(t, err)

	rec, err = s.LastRun("task-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, task.StatusSuccess, rec.Status)
	assert.Equal(t, "fff", rec.CommitSHA)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)

	spec := &task.Spec{ID: "t", Goal: "g"}
	for _, st := range []task.Status{task.StatusSuccess, task.StatusSuccess, task.StatusSoftFail} {
		_, err := s.SaveResult(spec, &task.CommitResult{TaskID: "t", Status: st})
		require.NoError(t, err)
	}

	stats, err := s.Stats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats[task.StatusSuccess])
	assert.Equal(t, 1, stats[task.StatusSoftFail])
}
