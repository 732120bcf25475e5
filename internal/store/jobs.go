package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/errkind"
)

var terminalJobStatuses = map[string]bool{"completed": true, "failed": true}
var validJobStatuses = map[string]bool{"queued": true, "running": true, "completed": true, "failed": true}

// Job mirrors the jobs table row.
type Job struct {
	ID             string
	JobType        string
	Status         string
	PayloadJSON    string
	ResultJSON     string
	ErrorText      string
	FallbackReason string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CreateJob inserts a new job in the queued state.
func (s *Store) CreateJob(id, jobType, payloadJSON string) error {
	if !validJobStatuses["queued"] {
		return errkind.New(errkind.Internal, "queued is not a recognized status")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.Conn().Exec(`
		INSERT INTO jobs (id, job_type, status, payload, created_at, updated_at)
		VALUES (?, ?, 'queued', ?, ?, ?)`, id, jobType, payloadJSON, now, now)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// UpdateJobStatus performs an idempotent status transition. Once a job is
// terminal (completed|failed) further transitions are no-ops (idempotent),
// not errors, so retried callers don't have to special-case replay.
func (s *Store) UpdateJobStatus(id, status, resultJSON, errorText string) error {
	if !validJobStatuses[status] {
		return errkind.Newf(errkind.Invalid, "invalid job status: %s", status)
	}

	return withTx(s.db.Conn(), func(tx *sql.Tx) error {
		var current string
		if err := tx.QueryRow(`SELECT status FROM jobs WHERE id = ?`, id).Scan(&current); err != nil {
			if err == sql.ErrNoRows {
				return errkind.Newf(errkind.NotFound, "job not found: %s", id)
			}
			return fmt.Errorf("failed to read job status: %w", err)
		}
		if terminalJobStatuses[current] {
			return nil // idempotent: already terminal
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		_, err := tx.Exec(`UPDATE jobs SET status = ?, result = ?, error_text = ?, updated_at = ? WHERE id = ?`,
			status, nullString(resultJSON), nullString(errorText), now, id)
		if err != nil {
			return fmt.Errorf("failed to update job status: %w", err)
		}
		return nil
	})
}

// GetJob fetches a job by id.
func (s *Store) GetJob(id string) (*Job, error) {
	row := s.db.Conn().QueryRow(`
		SELECT id, job_type, status, payload, result, error_text, fallback_reason, created_at, updated_at
		FROM jobs WHERE id = ?`, id)

	var j Job
	var result, errorText, fallbackReason sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&j.ID, &j.JobType, &j.Status, &j.PayloadJSON, &result, &errorText, &fallbackReason, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, errkind.Newf(errkind.NotFound, "job not found: %s", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	j.ResultJSON = stringOrEmpty(result)
	j.ErrorText = stringOrEmpty(errorText)
	j.FallbackReason = stringOrEmpty(fallbackReason)
	j.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &j, nil
}

// AppendJobEvent appends a monotonically numbered event row for a job (or a
// global event with jobID == "") and returns the assigned id, which is the
// SSE cursor.
func (s *Store) AppendJobEvent(jobID, eventType, payloadJSON string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.Conn().Exec(`INSERT INTO job_events (job_id, event_type, payload, created_at) VALUES (?, ?, ?, ?)`,
		nullString(jobID), eventType, payloadJSON, now)
	if err != nil {
		return 0, fmt.Errorf("failed to append job event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read job event id: %w", err)
	}
	return id, nil
}

// JobEvent is one row from the monotonic event log.
type JobEvent struct {
	ID          int64
	JobID       string
	EventType   string
	PayloadJSON string
	CreatedAt   time.Time
}

// ListJobEventsAfter returns events with id > lastEventID, strictly
// increasing, the SSE cursor contract.
func (s *Store) ListJobEventsAfter(lastEventID int64, limit int) ([]*JobEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.db.Conn().Query(`
		SELECT id, job_id, event_type, payload, created_at
		FROM job_events WHERE id > ? ORDER BY id ASC LIMIT ?`, lastEventID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job events: %w", err)
	}
	defer rows.Close()

	var out []*JobEvent
	for rows.Next() {
		var e JobEvent
		var jobID sql.NullString
		var createdAt string
		if err := rows.Scan(&e.ID, &jobID, &e.EventType, &e.PayloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan job event: %w", err)
		}
		e.JobID = stringOrEmpty(jobID)
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		out = append(out, &e)
	}
	return out, rows.Err()
}
