package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/procperf/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "open libsql").WithCause(err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB.
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// Vacuum runs VACUUM on the database.
func (s *LibSQLStore) Vacuum(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, "VACUUM")
	return err
}

// --- Reports ---

// SaveReport stores the report JSON along with its listing columns. Saving
// the same ID twice is an error.
func (s *LibSQLStore) SaveReport(ctx context.Context, report *schema.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return schema.NewError(schema.ErrCodeStore, "marshal report").WithCause(err)
	}
	sum := summarize(report)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, process_id, source, resolved, succeeded, processes, problems, body, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sum.ID, sum.ProcessID, nullStr(sum.Source), boolInt(sum.Resolved), boolInt(sum.Succeeded),
		sum.Processes, sum.Problems, string(body), timeOrNow(sum.CreatedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "insert report %s", report.ID).WithCause(err)
	}
	return nil
}

// summarize computes the listing columns of a report.
func summarize(r *schema.Report) ReportSummary {
	sum := ReportSummary{
		ID:        r.ID,
		ProcessID: r.ProcessID,
		Source:    r.Source,
		Resolved:  r.Resolved,
		Succeeded: r.Succeeded(),
		Processes: len(r.Processes),
		Problems:  len(r.Problems),
		CreatedAt: r.CreatedAt,
	}
	for _, p := range r.Processes {
		sum.Problems += len(p.Problems)
	}
	return sum
}

const reportColumns = "id, process_id, source, resolved, succeeded, processes, problems, created_at"

func (s *LibSQLStore) GetReport(ctx context.Context, id string) (*StoredReport, error) {
	r := &StoredReport{}
	var (
		source              sql.NullString
		resolved, succeeded int64
		body                string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT `+reportColumns+`, body FROM reports WHERE id = ?`, id,
	).Scan(&r.ID, &r.ProcessID, &source, &resolved, &succeeded, &r.Processes, &r.Problems, &r.CreatedAt, &body)
	if err == sql.ErrNoRows {
		return nil, storeNotFound("report", id)
	}
	if err != nil {
		return nil, err
	}
	r.Source = source.String
	r.Resolved = resolved != 0
	r.Succeeded = succeeded != 0
	r.Body = json.RawMessage(body)
	return r, nil
}

func (s *LibSQLStore) ListReports(ctx context.Context, filter ReportFilter) ([]*ReportSummary, error) {
	var where []string
	var args []any

	if filter.ProcessID != "" {
		where = append(where, "process_id = ?")
		args = append(args, filter.ProcessID)
	}
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, filter.Source)
	}
	if filter.Succeeded != nil {
		where = append(where, "succeeded = ?")
		args = append(args, boolInt(*filter.Succeeded))
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, *filter.Since)
	}

	query := "SELECT " + reportColumns + " FROM reports"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*ReportSummary
	for rows.Next() {
		r := &ReportSummary{}
		var (
			source              sql.NullString
			resolved, succeeded int64
		)
		if err := rows.Scan(&r.ID, &r.ProcessID, &source, &resolved, &succeeded,
			&r.Processes, &r.Problems, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Source = source.String
		r.Resolved = resolved != 0
		r.Succeeded = succeeded != 0
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func (s *LibSQLStore) DeleteReport(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "report", id)
}

// --- Scheduled Jobs ---

func (s *LibSQLStore) CreateScheduledJob(ctx context.Context, job *ScheduledJob) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scheduled_jobs (id, name, cron_expression, path, settings, enabled, last_run_at, next_run_at, last_run_status, last_report_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.CronExpression, job.Path, nullRaw(job.Settings), boolInt(job.Enabled),
		nullTime(job.LastRunAt), nullTime(job.NextRunAt), nullStr(job.LastRunStatus), nullStr(job.LastReportID),
		timeOrNow(job.CreatedAt),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "insert scheduled job %s", job.Name).WithCause(err)
	}
	return nil
}

const jobColumns = "id, name, cron_expression, path, settings, enabled, last_run_at, next_run_at, last_run_status, last_report_id, created_at"

func scanJob(row interface{ Scan(...any) error }) (*ScheduledJob, error) {
	j := &ScheduledJob{}
	var (
		settings, status, reportID sql.NullString
		enabled                    int64
		lastRun, nextRun           sql.NullTime
	)
	if err := row.Scan(&j.ID, &j.Name, &j.CronExpression, &j.Path, &settings, &enabled,
		&lastRun, &nextRun, &status, &reportID, &j.CreatedAt); err != nil {
		return nil, err
	}
	j.Settings = rawOrNil(settings)
	j.Enabled = enabled != 0
	if lastRun.Valid {
		j.LastRunAt = &lastRun.Time
	}
	if nextRun.Valid {
		j.NextRunAt = &nextRun.Time
	}
	j.LastRunStatus = status.String
	j.LastReportID = reportID.String
	return j, nil
}

func (s *LibSQLStore) GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error) {
	j, err := scanJob(s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM scheduled_jobs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, storeNotFound("scheduled job", id)
	}
	return j, err
}

func (s *LibSQLStore) UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error {
	var sets []string
	var args []any

	if update.Enabled != nil {
		sets = append(sets, "enabled = ?")
		args = append(args, boolInt(*update.Enabled))
	}
	if update.LastRunAt != nil {
		sets = append(sets, "last_run_at = ?")
		args = append(args, *update.LastRunAt)
	}
	if update.NextRunAt != nil {
		sets = append(sets, "next_run_at = ?")
		args = append(args, *update.NextRunAt)
	}
	if update.LastRunStatus != "" {
		sets = append(sets, "last_run_status = ?")
		args = append(args, update.LastRunStatus)
	}
	if update.LastReportID != "" {
		sets = append(sets, "last_report_id = ?")
		args = append(args, update.LastReportID)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := fmt.Sprintf("UPDATE scheduled_jobs SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled job", id)
}

func (s *LibSQLStore) ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error) {
	query := "SELECT " + jobColumns + " FROM scheduled_jobs"
	var args []any
	if filter.Enabled != nil {
		query += " WHERE enabled = ?"
		args = append(args, boolInt(*filter.Enabled))
	}
	query += " ORDER BY name"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*ScheduledJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *LibSQLStore) DeleteScheduledJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "scheduled job", id)
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.Error {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %s not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
