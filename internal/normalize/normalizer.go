// Package normalize turns input documents into resolved process graphs.
package normalize

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/rendis/procperf/internal/validation"
	"github.com/rendis/procperf/pkg/schema"
)

// FailureMessage is the only text a resolution failure exposes to callers.
const FailureMessage = "process model could not be resolved"

// Runner runs a batch of functions concurrently, waits for all of them and
// returns the first error. *engine.WorkerPool implements it.
type Runner interface {
	RunAll(ctx context.Context, fns []func(ctx context.Context) error) error
}

// Normalizer resolves a ProcessDefinition tree into schema.Process graphs.
// Called processes of one level are built concurrently on the runner.
type Normalizer struct {
	checker validation.DocumentChecker
	runner  Runner
	logger  *slog.Logger
}

// New creates a Normalizer. checker may be nil to skip the document schema
// check; a nil runner starts one goroutine per called process.
func New(checker validation.DocumentChecker, runner Runner, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = goroutines{}
	}
	return &Normalizer{checker: checker, runner: runner, logger: logger}
}

type goroutines struct{}

func (goroutines) RunAll(ctx context.Context, fns []func(ctx context.Context) error) error {
	var (
		wg    sync.WaitGroup
		once  sync.Once
		first error
	)
	for _, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				once.Do(func() { first = err })
			}
		}()
	}
	wg.Wait()
	return first
}

// Decode parses a JSON or YAML process document.
func Decode(data []byte) (*schema.ProcessDefinition, error) {
	var def schema.ProcessDefinition
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty process document")
	}
	if trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &def); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid JSON process document").WithCause(err)
		}
		return &def, nil
	}
	if err := yaml.Unmarshal(trimmed, &def); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid YAML process document").WithCause(err)
	}
	return &def, nil
}

// pending pairs a definition with the process built from it.
type pending struct {
	def  *schema.ProcessDefinition
	proc *schema.Process
}

// Resolve builds the main process and, level by level, every called process
// below it. Any failure anywhere returns a single RESOLUTION_FAILED error
// naming the process that failed; the underlying cause is logged and kept
// only as the error's Cause.
func (n *Normalizer) Resolve(ctx context.Context, def *schema.ProcessDefinition) (*schema.Process, error) {
	if def == nil {
		return nil, n.fail(ctx, "", schema.NewError(schema.ErrCodeValidation, "process definition is nil"))
	}
	if n.checker != nil {
		if err := n.checker.ValidateDefinition(def); err != nil {
			return nil, n.fail(ctx, def.ID, err)
		}
	}

	main, err := build(def, false)
	if err != nil {
		return nil, n.fail(ctx, def.ID, err)
	}

	level := []*pending{{def: def, proc: main}}
	for len(level) > 0 {
		var fns []func(context.Context) error
		for _, parent := range level {
			parent.proc.Called = make([]*schema.Process, len(parent.def.CalledProcesses))
			for i, child := range parent.def.CalledProcesses {
				slot := &parent.proc.Called[i]
				fns = append(fns, func(context.Context) error {
					p, err := build(child, false)
					if err != nil {
						return &childError{id: child.ID, err: err}
					}
					*slot = p
					return nil
				})
			}
		}

		if err := n.runner.RunAll(ctx, fns); err != nil {
			var ce *childError
			if errors.As(err, &ce) {
				return nil, n.fail(ctx, ce.id, ce.err)
			}
			return nil, n.fail(ctx, def.ID, err)
		}

		var next []*pending
		for _, parent := range level {
			for i, child := range parent.def.CalledProcesses {
				next = append(next, &pending{def: child, proc: parent.proc.Called[i]})
			}
		}
		level = next
	}

	var linkErr error
	main.Walk(func(p *schema.Process) {
		if linkErr == nil {
			if err := link(p, p.Called); err != nil {
				linkErr = &childError{id: p.ID, err: err}
			}
		}
	})
	if linkErr != nil {
		ce := linkErr.(*childError)
		return nil, n.fail(ctx, ce.id, ce.err)
	}

	n.logger.DebugContext(ctx, "process resolved",
		slog.String("process_id", main.ID),
		slog.Int("called_processes", len(main.Called)),
	)
	return main, nil
}

type childError struct {
	id  string
	err error
}

func (e *childError) Error() string { return e.id + ": " + e.err.Error() }
func (e *childError) Unwrap() error { return e.err }

func (n *Normalizer) fail(ctx context.Context, processID string, cause error) *schema.Error {
	n.logger.ErrorContext(ctx, "resolution failed",
		slog.String("failed_process_id", processID),
		slog.String("error", cause.Error()),
	)
	return schema.NewError(schema.ErrCodeResolution, FailureMessage).
		WithElement(processID).
		WithCause(cause)
}

// FailureProblem converts a Resolve error into the synthetic problem reported
// in place of per-process results.
func FailureProblem(err error) schema.Problem {
	id := ""
	var se *schema.Error
	if errors.As(err, &se) && se.Code == schema.ErrCodeResolution {
		id = se.ElementID
	}
	return schema.Problem{
		ID:       id,
		Code:     schema.ProblemResolutionFailed,
		Message:  FailureMessage,
		Severity: schema.SeverityError,
	}
}
