package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rendis/procperf/pkg/schema"
)

// AppendRun appends a run with a monotonically increasing per-job sequence.
// The write lock is taken before reading the current maximum so concurrent
// appends for the same job cannot reuse a sequence.
func (s *LibSQLStore) AppendRun(ctx context.Context, run *JobRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "begin run tx").WithCause(err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx may start a deferred transaction; a write forces the
	// lock.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return schema.NewError(schema.ErrCodeStore, "acquire write lock").WithCause(err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return schema.NewError(schema.ErrCodeStore, "release write lock").WithCause(err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM job_runs WHERE job_id = ?`, run.JobID,
	).Scan(&seq); err != nil {
		return schema.NewError(schema.ErrCodeStore, "next run sequence").WithCause(err)
	}

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO job_runs (job_id, sequence, status, report_id, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.JobID, seq, run.Status, nullStr(run.ReportID), nullStr(run.Error), run.StartedAt, run.DurationMs,
	); err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "insert run for job %s", run.JobID).WithCause(err)
	}

	if err := tx.Commit(); err != nil {
		return schema.NewError(schema.ErrCodeStore, "commit run").WithCause(err)
	}
	run.Sequence = seq
	return nil
}

// ListRuns returns the runs of a job with sequence > since, oldest first.
// Gaps in the sequence are reported as a store error.
func (s *LibSQLStore) ListRuns(ctx context.Context, jobID string, since int64) ([]*JobRun, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_id, sequence, status, report_id, error, started_at, duration_ms
		 FROM job_runs WHERE job_id = ? AND sequence > ? ORDER BY sequence ASC`, jobID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*JobRun
	expected := since + 1
	for rows.Next() {
		r := &JobRun{}
		var reportID, errMsg sql.NullString
		if err := rows.Scan(&r.JobID, &r.Sequence, &r.Status, &reportID, &errMsg, &r.StartedAt, &r.DurationMs); err != nil {
			return nil, err
		}
		if r.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in job %s: expected %d, got %d", jobID, expected, r.Sequence)
		}
		expected++
		r.ReportID = reportID.String
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
