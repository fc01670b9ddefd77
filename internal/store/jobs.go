// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/pdiddy/paper-search/internal/apperr"
	"github.com/pdiddy/paper-search/pkg/types"
)

// StartJob records a running job and returns it with its new id.
func (s *Store) StartJob(ctx context.Context, jobType types.JobType, source types.Source) (types.JobHistory, error) {
	job := types.JobHistory{
		ID:        uuid.NewString(),
		Type:      jobType,
		Source:    source,
		StartedAt: nowFunc().UTC(),
		Status:    types.JobRunning,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_history (id, job_type, source, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		job.ID, string(job.Type), string(job.Source), formatTime(job.StartedAt), string(job.Status))
	if err != nil {
		return types.JobHistory{}, fmt.Errorf("recording %s job start: %w", jobType, err)
	}
	return job, nil
}

// CompleteJob sets the terminal status of a running job. result is
// encoded as JSON. A job that is already complete is left unchanged and
// reported as a validation error.
func (s *Store) CompleteJob(ctx context.Context, id string, status types.JobStatus, result any, errMsg string) error {
	if status == types.JobRunning {
		return apperr.Errorf(apperr.Validation, "store.complete_job", "job %s: running is not a terminal status", id)
	}

	var resultJSON sql.NullString
	if result != nil {
		b, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("encoding result for job %s: %w", id, err)
		}
		resultJSON = sql.NullString{String: string(b), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE job_history SET status = ?, completed_at = ?, result = ?, error = ?
		 WHERE id = ? AND status = ?`,
		string(status), formatTime(nowFunc()), resultJSON, errMsg, id, string(types.JobRunning))
	if err != nil {
		return fmt.Errorf("completing job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Errorf(apperr.Validation, "store.complete_job", "job %s is not running", id)
	}
	return nil
}

// FailStaleJobs marks every job still in the running state as failed.
// Called at startup, when no job from a previous process can still be
// running.
func (s *Store) FailStaleJobs(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job_history SET status = ?, completed_at = ?, error = ? WHERE status = ?`,
		string(types.JobFailed), formatTime(nowFunc()), "interrupted: process exited before completion",
		string(types.JobRunning))
	if err != nil {
		return 0, fmt.Errorf("failing stale jobs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// RunJob records a job around fn. The row is completed exactly once:
// success with fn's result, or failed with fn's error. A panic in fn is
// recovered and recorded as a failure. The terminal write does not
// depend on ctx, so a cancelled job is still closed out.
func (s *Store) RunJob(ctx context.Context, jobType types.JobType, source types.Source, fn func(ctx context.Context) (any, error)) (job types.JobHistory, err error) {
	job, err = s.StartJob(ctx, jobType, source)
	if err != nil {
		return job, err
	}

	var result any
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s job panicked: %v", jobType, r)
		}
		status, msg := types.JobSuccess, ""
		if err != nil {
			status, msg = types.JobFailed, err.Error()
		}
		if cerr := s.CompleteJob(context.WithoutCancel(ctx), job.ID, status, result, msg); cerr != nil {
			s.logger.Error("recording job completion", "job_id", job.ID, "error", cerr)
		}
		job.Status = status
		job.Error = msg
	}()

	result, err = fn(ctx)
	return job, err
}

// ListJobs returns the most recent jobs, optionally restricted to one type.
func (s *Store) ListJobs(ctx context.Context, jobType types.JobType, limit int) ([]types.JobHistory, error) {
	if limit <= 0 {
		limit = 20
	}
	q := sq.Select("id", "job_type", "source", "started_at", "completed_at", "status", "result", "error").
		From("job_history").
		OrderBy("started_at DESC").
		Limit(uint64(limit))
	if jobType != "" {
		q = q.Where(sq.Eq{"job_type": string(jobType)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	jobs := []types.JobHistory{}
	for rows.Next() {
		var (
			j                  types.JobHistory
			jt, src, status    string
			started, completed sql.NullString
			result             sql.NullString
		)
		if err := rows.Scan(&j.ID, &jt, &src, &started, &completed, &status, &result, &j.Error); err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		j.Type = types.JobType(jt)
		j.Source = types.Source(src)
		j.Status = types.JobStatus(status)
		j.StartedAt = parseTime(started)
		if t := parseTime(completed); !t.IsZero() {
			j.CompletedAt = &t
		}
		if result.Valid {
			j.Result = json.RawMessage(result.String)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}
