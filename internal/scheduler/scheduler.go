package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/rendis/procperf/internal/store"
	"github.com/rendis/procperf/pkg/schema"
)

// ReportRunner analyzes a process document on disk.
// Satisfied by *engine.Analyzer.
type ReportRunner interface {
	AnalyzeFile(ctx context.Context, path string, settings schema.Settings) (*schema.Report, error)
}

// Scheduler polls the store for due analysis jobs, runs them and records
// every run in the job's run log.
type Scheduler struct {
	store    store.Store
	runner   ReportRunner
	parser   cron.Parser
	logger   *slog.Logger
	interval time.Duration
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex

	inflightMu sync.Mutex
	inflight   map[string]struct{} // job IDs currently executing
}

// NewScheduler creates a new Scheduler polling once a minute.
func NewScheduler(s store.Store, runner ReportRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		store:    s,
		runner:   runner,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		logger:   logger,
		interval: time.Minute,
		now:      func() time.Time { return time.Now().UTC() },
		inflight: make(map[string]struct{}),
	}
}

// AddJob validates the cron expression and settings, then stores a new
// enabled job due at its first cron slot.
func (s *Scheduler) AddJob(ctx context.Context, name, cronExpr, path string, settings *schema.Settings) (*store.ScheduledJob, error) {
	next, err := s.CalculateNextRun(cronExpr, s.now())
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, err.Error())
	}
	job := &store.ScheduledJob{
		ID:             uuid.NewString(),
		Name:           name,
		CronExpression: cronExpr,
		Path:           path,
		Enabled:        true,
		NextRunAt:      &next,
	}
	if settings != nil {
		raw, err := json.Marshal(settings)
		if err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "encode settings").WithCause(err)
		}
		job.Settings = raw
	}
	if err := s.store.CreateScheduledJob(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// Start launches the background scheduling loop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already started")
	}

	schedCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.loop(schedCtx)
	s.logger.Info("scheduler started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs every enabled job whose next run is due.
func (s *Scheduler) tick(ctx context.Context) {
	enabled := true
	jobs, err := s.store.ListScheduledJobs(ctx, store.ScheduledJobFilter{Enabled: &enabled})
	if err != nil {
		s.logger.Error("failed to list scheduled jobs", slog.String("error", err.Error()))
		return
	}

	now := s.now()
	for _, job := range jobs {
		if job.NextRunAt != nil && job.NextRunAt.After(now) {
			continue
		}
		if !s.tryAcquire(job.ID) {
			continue
		}
		if _, err := s.runJob(ctx, job, now); err != nil {
			s.logger.Error("failed to run scheduled job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
		}
		s.releaseJob(job.ID)
	}
}

// RunNow runs a job immediately regardless of its schedule and returns the
// recorded run.
func (s *Scheduler) RunNow(ctx context.Context, jobID string) (*store.JobRun, error) {
	job, err := s.store.GetScheduledJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !s.tryAcquire(job.ID) {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "job %s is already running", job.Name)
	}
	defer s.releaseJob(job.ID)
	return s.runJob(ctx, job, s.now())
}

// runJob analyzes the job's document, stores the report, appends a run and
// moves the job to its next cron slot. Analysis failures are recorded on the
// run; only store failures are returned.
func (s *Scheduler) runJob(ctx context.Context, job *store.ScheduledJob, now time.Time) (*store.JobRun, error) {
	s.logger.Info("running scheduled job",
		slog.String("job_id", job.ID),
		slog.String("job", job.Name),
		slog.String("path", job.Path),
	)

	run := &store.JobRun{JobID: job.ID, StartedAt: now}
	started := time.Now()

	report, err := s.analyze(ctx, job)
	run.DurationMs = time.Since(started).Milliseconds()
	switch {
	case err != nil:
		run.Status = store.RunFailed
		run.Error = err.Error()
		s.logger.Warn("scheduled analysis failed",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	default:
		if err := s.store.SaveReport(ctx, report); err != nil {
			return nil, err
		}
		run.ReportID = report.ID
		run.Status = store.RunSucceeded
		if !report.Succeeded() {
			run.Status = store.RunProblems
		}
	}

	if err := s.store.AppendRun(ctx, run); err != nil {
		return nil, err
	}
	return run, s.updateJobStatus(ctx, job, now, run)
}

func (s *Scheduler) analyze(ctx context.Context, job *store.ScheduledJob) (*schema.Report, error) {
	settings := schema.DefaultSettings()
	if len(job.Settings) > 0 {
		if err := json.Unmarshal(job.Settings, &settings); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid job settings").WithCause(err)
		}
	}
	return s.runner.AnalyzeFile(ctx, job.Path, settings)
}

func (s *Scheduler) updateJobStatus(ctx context.Context, job *store.ScheduledJob, now time.Time, run *store.JobRun) error {
	nextRun, err := s.CalculateNextRun(job.CronExpression, now)
	if err != nil {
		return fmt.Errorf("calculate next run for job %q: %w", job.ID, err)
	}

	return s.store.UpdateScheduledJob(ctx, job.ID, store.ScheduledJobUpdate{
		LastRunAt:     &now,
		NextRunAt:     &nextRun,
		LastRunStatus: run.Status,
		LastReportID:  run.ReportID,
	})
}

func (s *Scheduler) tryAcquire(jobID string) bool {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	if _, ok := s.inflight[jobID]; ok {
		return false
	}
	s.inflight[jobID] = struct{}{}
	return true
}

func (s *Scheduler) releaseJob(jobID string) {
	s.inflightMu.Lock()
	defer s.inflightMu.Unlock()
	delete(s.inflight, jobID)
}

// CalculateNextRun computes the next run time for a cron expression.
func (s *Scheduler) CalculateNextRun(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := s.parser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	return schedule.Next(from), nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel == nil {
		return nil
	}

	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil

	s.logger.Info("scheduler stopped")
	return nil
}

// RecoverMissed runs once every enabled job whose next run passed while the
// scheduler was down.
func (s *Scheduler) RecoverMissed(ctx context.Context) error {
	enabled := true
	jobs, err := s.store.ListScheduledJobs(ctx, store.ScheduledJobFilter{Enabled: &enabled})
	if err != nil {
		return fmt.Errorf("list missed jobs: %w", err)
	}

	now := s.now()
	recovered := 0
	for _, job := range jobs {
		if job.NextRunAt == nil || !job.NextRunAt.Before(now) {
			continue
		}
		if !s.tryAcquire(job.ID) {
			continue
		}
		_, err := s.runJob(ctx, job, now)
		s.releaseJob(job.ID)
		if err != nil {
			s.logger.Error("failed to recover missed job",
				slog.String("job_id", job.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Info("recovered missed jobs", slog.Int("count", recovered))
	}
	return nil
}
