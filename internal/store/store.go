package store

import (
	"context"

	"github.com/rendis/procperf/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Reports
	SaveReport(ctx context.Context, report *schema.Report) error
	GetReport(ctx context.Context, id string) (*StoredReport, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]*ReportSummary, error)
	DeleteReport(ctx context.Context, id string) error

	// Scheduled Jobs
	CreateScheduledJob(ctx context.Context, job *ScheduledJob) error
	GetScheduledJob(ctx context.Context, id string) (*ScheduledJob, error)
	UpdateScheduledJob(ctx context.Context, id string, update ScheduledJobUpdate) error
	ListScheduledJobs(ctx context.Context, filter ScheduledJobFilter) ([]*ScheduledJob, error)
	DeleteScheduledJob(ctx context.Context, id string) error

	// Job Runs (append-only)
	AppendRun(ctx context.Context, run *JobRun) error
	ListRuns(ctx context.Context, jobID string, since int64) ([]*JobRun, error)

	// Maintenance
	Migrate(ctx context.Context) error
	Vacuum(ctx context.Context) error

	// Lifecycle
	Close() error
}
