// Package store persists pipeline run results to SQLite so an external
// orchestrator can inspect run history across processes.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/codefionn/patchflink/internal/task"
)

// RunRecord is one stored pipeline run.
type RunRecord struct {
	ID         int64       `json:"id" db:"id"`
	TaskID     string      `json:"task_id" db:"task_id"`
	Goal       string      `json:"goal" db:"goal"`
	Status     task.Status `json:"status" db:"status"`
	CommitSHA  string      `json:"commit_sha,omitempty" db:"commit_sha"`
	BranchName string      `json:"branch_name,omitempty" db:"branch_name"`
	Notes      []string    `json:"notes,omitempty" db:"notes"`
	Retries    int         `json:"retries" db:"retries"`
	TokensUsed int         `json:"tokens_used" db:"tokens_used"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
}

// Store handles SQLite operations for run history.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open creates a store at dbPath, creating the directory and schema as
// needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: dbPath}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS run_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		task_id TEXT NOT NULL,
		goal TEXT NOT NULL,
		status TEXT NOT NULL,
		commit_sha TEXT,
		branch_name TEXT,
		notes TEXT,
		retries INTEGER NOT NULL DEFAULT 0,
		tokens_used INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_run_history_task_id ON run_history(task_id);
	CREATE INDEX IF NOT EXISTS idx_run_history_status ON run_history(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveResult appends one run outcome. Notes are stored as a JSON array.
func (s *Store) SaveResult(spec *task.Spec, result *task.CommitResult) (int64, error) {
	notes, err := json.Marshal(result.Notes)
	if err != nil {
		return 0, fmt.Errorf("failed to encode notes: %w", err)
	}

	res, err := s.db.Exec(`
		INSERT INTO run_history (task_id, goal, status, commit_sha, branch_name, notes, retries, tokens_used, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, result.TaskID, spec.Goal, string(result.Status), result.CommitSHA,
		result.BranchName, string(notes), result.Retries, result.TokensUsed, time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetRuns returns stored runs, newest first, optionally filtered by task id.
func (s *Store) GetRuns(taskID string) ([]*RunRecord, error) {
	var rows *sql.Rows
	var err error

	if taskID != "" {
		rows, err = s.db.Query(`
			SELECT id, task_id, goal, status, commit_sha, branch_name, notes, retries, tokens_used, created_at
			FROM run_history WHERE task_id = ?
			ORDER BY created_at DESC, id DESC
		`, taskID)
	} else {
		rows, err = s.db.Query(`
			SELECT id, task_id, goal, status, commit_sha, branch_name, notes, retries, tokens_used, created_at
			FROM run_history ORDER BY created_at DESC, id DESC
		`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*RunRecord
	for rows.Next() {
		rec := &RunRecord{}
		var status string
		var commitSHA, branchName, notes sql.NullString

		err := rows.Scan(&rec.ID, &rec.TaskID, &rec.Goal, &status, &commitSHA,
			&branchName, &notes, &rec.Retries, &rec.TokensUsed, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}

		rec.Status = task.Status(status)
		if commitSHA.Valid {
			rec.CommitSHA = commitSHA.String
		}
		if branchName.Valid {
			rec.BranchName = branchName.String
		}
		if notes.Valid && notes.String != "" {
			if err := json.Unmarshal([]byte(notes.String), &rec.Notes); err != nil {
				return nil, fmt.Errorf("failed to decode notes of run %d: %w", rec.ID, err)
			}
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LastRun returns the most recent run for a task, or nil when none exists.
func (s *Store) LastRun(taskID string) (*RunRecord, error) {
	runs, err := s.GetRuns(taskID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, nil
	}
	return runs[0], nil
}

// Stats aggregates run counts per status.
func (s *Store) Stats() (map[task.Status]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM run_history GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := make(map[task.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[task.Status(status)] = count
	}
	return stats, rows.Err()
}
