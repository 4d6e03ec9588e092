package store

import (
	"database/sql"
	"time"
)

// FetchRun records a single feed download for auditing.
type FetchRun struct {
	ID                int64
	StartedAt         time.Time
	FinishedAt        sql.NullTime
	URL               string
	HTTPStatus        int
	Attempts          int
	ResponseSizeBytes int64
	Success           bool
	ErrorMessage      string
}

// StartFetchRun creates a new fetch run record and returns it.
func (s *Store) StartFetchRun(url string) (*FetchRun, error) {
	run := &FetchRun{
		StartedAt: time.Now().UTC(),
		URL:       url,
	}
	result, err := s.db.Exec(`
		INSERT INTO fetch_runs (started_at, url, success)
		VALUES (?, ?, FALSE)
	`, run.StartedAt, run.URL)
	if err != nil {
		return nil, err
	}
	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteFetchRun updates the fetch run with its outcome.
func (s *Store) CompleteFetchRun(run *FetchRun) error {
	if run == nil {
		return nil
	}
	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	var errMsg sql.NullString
	if run.ErrorMessage != "" {
		errMsg = sql.NullString{String: run.ErrorMessage, Valid: true}
	}
	_, err := s.db.Exec(`
		UPDATE fetch_runs SET
			finished_at = ?,
			http_status = ?,
			attempts = ?,
			response_size_bytes = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.HTTPStatus, run.Attempts, run.ResponseSizeBytes,
		run.Success, errMsg, run.ID)
	return err
}

// RecentFetchErrors returns the most recent failed fetch runs.
func (s *Store) RecentFetchErrors(limit int) ([]FetchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, url, COALESCE(http_status, 0),
		       COALESCE(attempts, 0), COALESCE(response_size_bytes, 0),
		       success, COALESCE(error_message, '')
		FROM fetch_runs
		WHERE success = FALSE AND finished_at IS NOT NULL
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []FetchRun
	for rows.Next() {
		var r FetchRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.URL, &r.HTTPStatus,
			&r.Attempts, &r.ResponseSizeBytes, &r.Success, &r.ErrorMessage); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
