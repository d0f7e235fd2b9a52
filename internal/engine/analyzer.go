// Package engine runs the analysis pipeline: normalize, then validate and
// linearize every resolved process concurrently.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/procperf/internal/expressions"
	"github.com/rendis/procperf/internal/linearize"
	"github.com/rendis/procperf/internal/logging"
	"github.com/rendis/procperf/internal/normalize"
	"github.com/rendis/procperf/internal/validation"
	"github.com/rendis/procperf/pkg/schema"
)

// Config tunes an Analyzer. Zero values select defaults.
type Config struct {
	PoolSize int
	MaxDepth int
	Logger   *slog.Logger
}

// Analyzer turns process documents into reports. It is safe for concurrent
// use; Close releases its worker pool.
type Analyzer struct {
	checker    *validation.JSONSchemaValidator
	engines    *expressions.Engines
	normalizer *normalize.Normalizer
	validator  *validation.ProcessValidator
	pool       *WorkerPool
	maxDepth   int
	logger     *slog.Logger
	now        func() time.Time
}

// NewAnalyzer wires the pipeline components.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = runtime.NumCPU()
	}

	checker, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	engines, err := expressions.NewEngines()
	if err != nil {
		return nil, err
	}

	pool := NewWorkerPool(size)
	return &Analyzer{
		checker:    checker,
		engines:    engines,
		normalizer: normalize.New(checker, pool, logger),
		validator:  validation.NewProcessValidator(engines, logger),
		pool:       pool,
		maxDepth:   cfg.MaxDepth,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Engines exposes the expression engines, for query projection.
func (a *Analyzer) Engines() *expressions.Engines {
	return a.engines
}

// Close waits for in-flight work and stops the pool.
func (a *Analyzer) Close() {
	a.pool.Shutdown()
}

// CheckSettings validates settings and compiles their rules.
func (a *Analyzer) CheckSettings(settings schema.Settings) error {
	if err := a.checker.ValidateSettings(settings); err != nil {
		return err
	}
	return validation.CompileRules(a.engines, settings.Rules)
}

// AnalyzeFile reads, decodes and analyzes a JSON or YAML document.
func (a *Analyzer) AnalyzeFile(ctx context.Context, path string, settings schema.Settings) (*schema.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "cannot read %s", path).WithCause(err)
	}
	def, err := normalize.Decode(data)
	if err != nil {
		return nil, err
	}
	report, err := a.Analyze(ctx, def, settings)
	if err != nil {
		return nil, err
	}
	report.Source = path
	return report, nil
}

// Analyze resolves def and produces one ProcessReport per process, main
// process first. A resolution failure is not an error: it yields a report
// with Resolved=false and a single synthetic problem. Invalid settings are
// an error.
func (a *Analyzer) Analyze(ctx context.Context, def *schema.ProcessDefinition, settings schema.Settings) (*schema.Report, error) {
	if err := a.CheckSettings(settings); err != nil {
		return nil, err
	}

	report := &schema.Report{
		ID:        uuid.NewString(),
		CreatedAt: a.now().UTC(),
		Processes: []*schema.ProcessReport{},
	}
	if def != nil {
		report.ProcessID = def.ID
	}
	ctx = logging.WithAnalysisID(ctx, report.ID)
	start := time.Now()

	main, err := a.normalizer.Resolve(ctx, def)
	if err != nil {
		report.Problems = []schema.Problem{normalize.FailureProblem(err)}
		return report, nil
	}
	report.Resolved = true

	var processes []*schema.Process
	main.Walk(func(p *schema.Process) { processes = append(processes, p) })

	report.Processes = make([]*schema.ProcessReport, len(processes))
	fns := make([]func(context.Context) error, len(processes))
	for i, p := range processes {
		fns[i] = func(ctx context.Context) error {
			report.Processes[i] = a.analyzeProcess(ctx, p, settings)
			return nil
		}
	}
	if err := a.pool.RunAll(ctx, fns); err != nil {
		return nil, err
	}

	a.logger.InfoContext(ctx, "analysis complete",
		slog.String("process_id", main.ID),
		slog.Int("processes", len(processes)),
		slog.Bool("succeeded", report.Succeeded()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return report, nil
}

func (a *Analyzer) analyzeProcess(ctx context.Context, p *schema.Process, settings schema.Settings) *schema.ProcessReport {
	ctx = logging.WithProcessID(ctx, p.ID)

	vr := a.validator.Validate(ctx, p, settings)
	pr := &schema.ProcessReport{
		ProcessID:        p.ID,
		ValidationPassed: vr.Passed(),
		Problems:         vr.Problems,
	}
	if pr.Problems == nil {
		pr.Problems = []schema.Problem{}
	}

	seq, err := linearize.New(settings, linearize.WithMaxDepth(a.maxDepth)).Process(p)
	if err != nil {
		var se *schema.Error
		if !errors.As(err, &se) {
			se = schema.NewError(schema.ErrCodeValidation, err.Error())
		}
		pr.Failure = se
		pr.OrderedProcess = schema.Sequence{}
		a.logger.WarnContext(logging.WithElementID(ctx, se.ElementID), "linearization failed",
			slog.String("code", se.Code),
			slog.String("reason", se.Message),
		)
		return pr
	}

	pr.ExtractionSuccessful = true
	pr.OrderedProcess = seq
	a.logger.DebugContext(ctx, "process linearized",
		slog.Int("items", len(seq)),
		slog.Int("problems", len(vr.Problems)),
	)
	return pr
}
