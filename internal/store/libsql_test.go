package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/procperf/pkg/schema"
)

func newTestStore(t *testing.T) *LibSQLStore {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewLibSQLStore("file:" + dbPath)
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() {
		_ = s.Close()
		_ = os.RemoveAll(dir)
	})
	return s
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	var se *schema.Error
	require.True(t, errors.As(err, &se), "got %v", err)
	assert.Equal(t, schema.ErrCodeNotFound, se.Code)
}

func sampleReport(processID string, createdAt time.Time, ok bool) *schema.Report {
	main := &schema.ProcessReport{
		ProcessID:            processID,
		ValidationPassed:     ok,
		ExtractionSuccessful: true,
		OrderedProcess: schema.Sequence{
			&schema.ElementInfo{Kind: schema.KindStartEvent, ID: "Start", ParentProcessID: processID, Probability: 100},
		},
		Problems: []schema.Problem{},
	}
	if !ok {
		main.Problems = append(main.Problems,
			schema.Problem{ID: "T", Code: schema.ProblemMissingTime, Message: "missing", Severity: schema.SeverityError})
	}
	return &schema.Report{
		ID:        uuid.NewString(),
		ProcessID: processID,
		CreatedAt: createdAt,
		Source:    processID + ".yaml",
		Resolved:  true,
		Processes: []*schema.ProcessReport{main},
	}
}

// --- Report Tests ---

func TestSaveAndGetReport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := sampleReport("Order", time.Now().UTC().Truncate(time.Second), false)
	require.NoError(t, s.SaveReport(ctx, r))

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, "Order", got.ProcessID)
	assert.Equal(t, "Order.yaml", got.Source)
	assert.True(t, got.Resolved)
	assert.False(t, got.Succeeded)
	assert.Equal(t, 1, got.Processes)
	assert.Equal(t, 1, got.Problems)
	assert.WithinDuration(t, r.CreatedAt, got.CreatedAt, time.Second)

	want, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got.Body))

	// Saving the same id again is rejected.
	assert.Error(t, s.SaveReport(ctx, r))
}

func TestGetReport_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetReport(context.Background(), "nonexistent")
	requireNotFound(t, err)
}

func TestSaveReport_Unresolved(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := &schema.Report{
		ID:        uuid.NewString(),
		ProcessID: "Main",
		CreatedAt: time.Now().UTC(),
		Problems:  []schema.Problem{{ID: "Child", Code: schema.ProblemResolutionFailed, Severity: schema.SeverityError}},
		Processes: []*schema.ProcessReport{},
	}
	require.NoError(t, s.SaveReport(ctx, r))

	got, err := s.GetReport(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, got.Resolved)
	assert.False(t, got.Succeeded)
	assert.Equal(t, 0, got.Processes)
	assert.Equal(t, 1, got.Problems)
	assert.Empty(t, got.Source)
}

func TestListReports(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	older := sampleReport("Order", base, true)
	newer := sampleReport("Order", base.Add(10*time.Minute), false)
	other := sampleReport("Billing", base.Add(20*time.Minute), true)
	for _, r := range []*schema.Report{older, newer, other} {
		require.NoError(t, s.SaveReport(ctx, r))
	}

	all, err := s.ListReports(ctx, ReportFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, other.ID, all[0].ID, "newest first")
	assert.Equal(t, older.ID, all[2].ID)

	byProcess, err := s.ListReports(ctx, ReportFilter{ProcessID: "Order"})
	require.NoError(t, err)
	assert.Len(t, byProcess, 2)

	passed := true
	ok, err := s.ListReports(ctx, ReportFilter{Succeeded: &passed})
	require.NoError(t, err)
	assert.Len(t, ok, 2)

	since := base.Add(5 * time.Minute)
	recent, err := s.ListReports(ctx, ReportFilter{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	page, err := s.ListReports(ctx, ReportFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, newer.ID, page[0].ID)

	bySource, err := s.ListReports(ctx, ReportFilter{Source: "Billing.yaml"})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, other.ID, bySource[0].ID)
}

func TestDeleteReport(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	r := sampleReport("Order", time.Now().UTC(), true)
	require.NoError(t, s.SaveReport(ctx, r))
	require.NoError(t, s.DeleteReport(ctx, r.ID))

	_, err := s.GetReport(ctx, r.ID)
	requireNotFound(t, err)
	requireNotFound(t, s.DeleteReport(ctx, r.ID))
}

// --- Scheduled Job Tests ---

func seedJob(t *testing.T, s *LibSQLStore, name string, enabled bool) *ScheduledJob {
	t.Helper()
	j := &ScheduledJob{
		ID:             uuid.NewString(),
		Name:           name,
		CronExpression: "*/5 * * * *",
		Path:           "/models/" + name + ".yaml",
		Enabled:        enabled,
	}
	require.NoError(t, s.CreateScheduledJob(context.Background(), j))
	return j
}

func TestScheduledJobCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	j := &ScheduledJob{
		ID:             uuid.NewString(),
		Name:           "nightly",
		CronExpression: "0 2 * * *",
		Path:           "/models/order.yaml",
		Settings:       json.RawMessage(`{"calculations":["time"]}`),
		Enabled:        true,
	}
	require.NoError(t, s.CreateScheduledJob(ctx, j))

	got, err := s.GetScheduledJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, "nightly", got.Name)
	assert.Equal(t, "0 2 * * *", got.CronExpression)
	assert.Equal(t, "/models/order.yaml", got.Path)
	assert.JSONEq(t, `{"calculations":["time"]}`, string(got.Settings))
	assert.True(t, got.Enabled)
	assert.Nil(t, got.LastRunAt)
	assert.Nil(t, got.NextRunAt)

	now := time.Now().UTC().Truncate(time.Second)
	next := now.Add(24 * time.Hour)
	disabled := false
	require.NoError(t, s.UpdateScheduledJob(ctx, j.ID, ScheduledJobUpdate{
		Enabled:       &disabled,
		LastRunAt:     &now,
		NextRunAt:     &next,
		LastRunStatus: RunSucceeded,
		LastReportID:  "r-1",
	}))

	got, err = s.GetScheduledJob(ctx, j.ID)
	require.NoError(t, err)
	assert.False(t, got.Enabled)
	require.NotNil(t, got.LastRunAt)
	assert.WithinDuration(t, now, *got.LastRunAt, time.Second)
	require.NotNil(t, got.NextRunAt)
	assert.WithinDuration(t, next, *got.NextRunAt, time.Second)
	assert.Equal(t, RunSucceeded, got.LastRunStatus)
	assert.Equal(t, "r-1", got.LastReportID)

	// An empty update is a no-op.
	require.NoError(t, s.UpdateScheduledJob(ctx, j.ID, ScheduledJobUpdate{}))

	require.NoError(t, s.DeleteScheduledJob(ctx, j.ID))
	_, err = s.GetScheduledJob(ctx, j.ID)
	requireNotFound(t, err)
	requireNotFound(t, s.UpdateScheduledJob(ctx, j.ID, ScheduledJobUpdate{LastRunStatus: RunFailed}))
}

func TestCreateScheduledJob_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	seedJob(t, s, "hourly", true)

	err := s.CreateScheduledJob(context.Background(), &ScheduledJob{
		ID: uuid.NewString(), Name: "hourly", CronExpression: "0 * * * *", Path: "x.yaml",
	})
	assert.Error(t, err)
}

func TestListScheduledJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedJob(t, s, "b-job", true)
	seedJob(t, s, "a-job", true)
	seedJob(t, s, "c-job", false)

	all, err := s.ListScheduledJobs(ctx, ScheduledJobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a-job", all[0].Name, "ordered by name")

	enabled := true
	on, err := s.ListScheduledJobs(ctx, ScheduledJobFilter{Enabled: &enabled})
	require.NoError(t, err)
	assert.Len(t, on, 2)

	limited, err := s.ListScheduledJobs(ctx, ScheduledJobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// --- Run Log Tests ---

func TestAppendRun_Sequence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	a := seedJob(t, s, "a", true)
	b := seedJob(t, s, "b", true)

	for i := 0; i < 3; i++ {
		run := &JobRun{JobID: a.ID, Status: RunSucceeded, ReportID: uuid.NewString(), DurationMs: 12}
		require.NoError(t, s.AppendRun(ctx, run))
		assert.Equal(t, int64(i+1), run.Sequence)
		assert.False(t, run.StartedAt.IsZero())
	}
	run := &JobRun{JobID: b.ID, Status: RunFailed, Error: "cannot read"}
	require.NoError(t, s.AppendRun(ctx, run))
	assert.Equal(t, int64(1), run.Sequence, "sequences are per job")

	runs, err := s.ListRuns(ctx, a.ID, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, int64(12), runs[0].DurationMs)

	tail, err := s.ListRuns(ctx, a.ID, 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, int64(3), tail[0].Sequence)

	failed, err := s.ListRuns(ctx, b.ID, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "cannot read", failed[0].Error)
	assert.Empty(t, failed[0].ReportID)
}

func TestAppendRun_Concurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	j := seedJob(t, s, "busy", true)

	const n = 10
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.AppendRun(ctx, &JobRun{JobID: j.ID, Status: RunSucceeded})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	runs, err := s.ListRuns(ctx, j.ID, 0)
	require.NoError(t, err)
	assert.Len(t, runs, n, "no gaps and no duplicates")
}

func TestRunsDeletedWithJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	j := seedJob(t, s, "gone", true)
	require.NoError(t, s.AppendRun(ctx, &JobRun{JobID: j.ID, Status: RunSucceeded}))

	require.NoError(t, s.DeleteScheduledJob(ctx, j.ID))
	runs, err := s.ListRuns(ctx, j.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

// --- Maintenance ---

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Migrate(ctx))

	var version int
	require.NoError(t, s.DB().QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version))
	assert.Equal(t, 1, version)
	assert.NoError(t, s.Vacuum(ctx))
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(`
-- only a comment;
CREATE TABLE a (x INTEGER);
-- trailing comment
CREATE TABLE b (y TEXT);
`)
	require.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "CREATE TABLE a")
	assert.Contains(t, stmts[1], "CREATE TABLE b")
}
