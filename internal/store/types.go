package store

import (
	"encoding/json"
	"time"
)

// ReportSummary is the listing view of a stored report.
type ReportSummary struct {
	ID        string    `json:"id"`
	ProcessID string    `json:"process_id"`
	Source    string    `json:"source,omitempty"`
	Resolved  bool      `json:"resolved"`
	Succeeded bool      `json:"succeeded"`
	Processes int       `json:"processes"`
	Problems  int       `json:"problems"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredReport is a summary plus the report exactly as it was saved.
type StoredReport struct {
	ReportSummary
	Body json.RawMessage `json:"body"`
}

// ReportFilter specifies criteria for listing reports.
type ReportFilter struct {
	ProcessID string     `json:"process_id,omitempty"`
	Source    string     `json:"source,omitempty"`
	Succeeded *bool      `json:"succeeded,omitempty"`
	Since     *time.Time `json:"since,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// ScheduledJob is a cron-triggered re-analysis of a process document.
type ScheduledJob struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	CronExpression string          `json:"cron_expression"`
	Path           string          `json:"path"`
	Settings       json.RawMessage `json:"settings,omitempty"` // schema.Settings; nil means defaults
	Enabled        bool            `json:"enabled"`
	LastRunAt      *time.Time      `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time      `json:"next_run_at,omitempty"`
	LastRunStatus  string          `json:"last_run_status,omitempty"`
	LastReportID   string          `json:"last_report_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ScheduledJobUpdate specifies mutable fields of a scheduled job.
type ScheduledJobUpdate struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	LastRunAt     *time.Time `json:"last_run_at,omitempty"`
	NextRunAt     *time.Time `json:"next_run_at,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
	LastReportID  string     `json:"last_report_id,omitempty"`
}

// ScheduledJobFilter specifies criteria for listing scheduled jobs.
type ScheduledJobFilter struct {
	Enabled *bool `json:"enabled,omitempty"`
	Limit   int   `json:"limit,omitempty"`
}

// Run statuses.
const (
	RunSucceeded = "success" // report saved and every process passed
	RunProblems  = "problems"
	RunFailed    = "error"
)

// JobRun is one execution of a scheduled job. Sequence is assigned on append
// and increases by one per job.
type JobRun struct {
	JobID      string    `json:"job_id"`
	Sequence   int64     `json:"sequence"`
	Status     string    `json:"status"`
	ReportID   string    `json:"report_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`
}
