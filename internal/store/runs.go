package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// IndexRun records one invocation of the indexer against a corpus root.
type IndexRun struct {
	ID             int64
	Root           string
	StartedAt      time.Time
	CompletedAt    sql.NullTime
	Status         string // "running", "completed", "failed"
	FilesFound     int64
	ParseErrors    int64
	Rekeyed        int64
	ParentsCleared int64
	MessagesAdded  int64
	ErrorMessage   sql.NullString
}

// RunCounts are the per-run totals written when a run completes.
type RunCounts struct {
	FilesFound     int64
	ParseErrors    int64
	Rekeyed        int64
	ParentsCleared int64
	MessagesAdded  int64
}

// StartRun creates a new run record for root and returns its ID. Runs left
// in the running state for the same root by an interrupted process are
// marked failed.
func (s *Store) StartRun(root string) (int64, error) {
	now := time.Now().UTC()
	_, err := s.db.Exec(`
		UPDATE index_runs
		SET status = 'failed',
		    error_message = 'superseded by new run',
		    completed_at = ?
		WHERE root = ? AND status = 'running'
	`, now, root)
	if err != nil {
		return 0, fmt.Errorf("mark old runs failed: %w", err)
	}

	result, err := s.db.Exec(`
		INSERT INTO index_runs (root, started_at, status)
		VALUES (?, ?, 'running')
	`, root, now)
	if err != nil {
		return 0, fmt.Errorf("insert index_run: %w", err)
	}
	return result.LastInsertId()
}

// CompleteRun marks a run as successfully completed with its totals.
func (s *Store) CompleteRun(runID int64, c RunCounts) error {
	_, err := s.db.Exec(`
		UPDATE index_runs
		SET status = 'completed',
		    completed_at = ?,
		    files_found = ?,
		    parse_errors = ?,
		    rekeyed = ?,
		    parents_cleared = ?,
		    messages_added = ?
		WHERE id = ?
	`, time.Now().UTC(), c.FilesFound, c.ParseErrors, c.Rekeyed, c.ParentsCleared, c.MessagesAdded, runID)
	if err != nil {
		return fmt.Errorf("complete run %d: %w", runID, err)
	}
	return nil
}

// FailRun marks a run as failed with an error message.
func (s *Store) FailRun(runID int64, errMsg string) error {
	_, err := s.db.Exec(`
		UPDATE index_runs
		SET status = 'failed',
		    completed_at = ?,
		    error_message = ?
		WHERE id = ?
	`, time.Now().UTC(), errMsg, runID)
	if err != nil {
		return fmt.Errorf("fail run %d: %w", runID, err)
	}
	return nil
}

// LastRuns returns up to n runs, most recent first.
func (s *Store) LastRuns(n int) ([]IndexRun, error) {
	if n <= 0 {
		n = 10
	}
	rows, err := s.db.Query(`
		SELECT id, root, started_at, completed_at, status,
		       files_found, parse_errors, rekeyed, parents_cleared, messages_added,
		       error_message
		FROM index_runs
		ORDER BY id DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []IndexRun
	for rows.Next() {
		var run IndexRun
		if err := rows.Scan(
			&run.ID, &run.Root, &run.StartedAt, &run.CompletedAt, &run.Status,
			&run.FilesFound, &run.ParseErrors, &run.Rekeyed, &run.ParentsCleared, &run.MessagesAdded,
			&run.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// IndexedRoots returns the distinct roots of completed runs that stored at
// least one message, in order of first use.
func (s *Store) IndexedRoots() ([]string, error) {
	rows, err := s.db.Query(`
		SELECT root
		FROM index_runs
		WHERE status = 'completed' AND messages_added > 0
		GROUP BY root
		ORDER BY MIN(id)
	`)
	if err != nil {
		return nil, fmt.Errorf("query indexed roots: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var root string
		if err := rows.Scan(&root); err != nil {
			return nil, fmt.Errorf("scan root: %w", err)
		}
		roots = append(roots, root)
	}
	return roots, rows.Err()
}
