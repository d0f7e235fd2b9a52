// Package validation checks process models for structural and temporal
// problems. Problems accumulate; nothing here stops the linearizer from
// running on an invalid process.
package validation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rendis/procperf/internal/expressions"
	"github.com/rendis/procperf/internal/extract"
	"github.com/rendis/procperf/pkg/schema"
)

// DocumentChecker checks raw input documents before they are normalized.
// Uses JSON Schema Draft 2020-12.
type DocumentChecker interface {
	ValidateDefinition(def *schema.ProcessDefinition) error
	ValidateSettings(settings schema.Settings) error
}

// ProcessValidator runs every element check over a normalized process.
type ProcessValidator struct {
	engines *expressions.Engines
	logger  *slog.Logger
}

// NewProcessValidator creates a validator. engines may be nil, in which case
// custom rules are skipped.
func NewProcessValidator(engines *expressions.Engines, logger *slog.Logger) *ProcessValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessValidator{engines: engines, logger: logger}
}

// Validate checks p and the bodies of its sub-processes in document order.
// Called processes are validated separately by the caller.
func (v *ProcessValidator) Validate(ctx context.Context, p *schema.Process, settings schema.Settings) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	v.validate(ctx, p, settings, result)
	return result
}

func (v *ProcessValidator) validate(ctx context.Context, p *schema.Process, settings schema.Settings, result *schema.ValidationResult) {
	if _, _, err := p.Bounds(); err != nil {
		var se *schema.Error
		if errors.As(err, &se) {
			result.AddError(p.ID, schema.ProblemStructure, se.Message)
		}
	}

	for _, node := range p.Elements {
		ValidateInAndOut(node, result)
		ValidateTimeInfo(p, node, settings, result)
		ValidateCost(p, node, settings, result)
		if node.Kind == schema.KindSubProcess && node.Process != nil {
			v.validate(ctx, node.Process, settings, result)
		}
	}

	if len(settings.Rules) > 0 && v.engines != nil {
		v.applyRules(ctx, p, settings, result)
	}
}

// CompileRules checks that every rule names a known engine and compiles.
func CompileRules(engines *expressions.Engines, rules []schema.Rule) error {
	for _, r := range rules {
		eng, err := engines.Get(r.Engine)
		if err != nil {
			return err
		}
		c, ok := eng.(interface{ Compile(string) error })
		if !ok {
			return schema.NewErrorf(schema.ErrCodeExpression,
				"engine %q cannot be used for rules", eng.Name()).
				WithDetails(map[string]any{"rule": r.ID})
		}
		if err := c.Compile(r.Expression); err != nil {
			return schema.NewErrorf(schema.ErrCodeValidation, "rule %s does not compile", r.ID).WithCause(err)
		}
	}
	return nil
}

// applyRules evaluates every rule against the extracted record of every
// element. A false result or an evaluation error yields a warning.
func (v *ProcessValidator) applyRules(ctx context.Context, p *schema.Process, settings schema.Settings, result *schema.ValidationResult) {
	ext := extract.New(settings)
	for _, node := range p.Elements {
		scope := expressions.ElementScope(p, ext.Extract(p, node), settings)
		for _, rule := range settings.Rules {
			if ctx.Err() != nil {
				return
			}
			v.applyRule(ctx, rule, node.ID, scope, result)
		}
	}
}

func (v *ProcessValidator) applyRule(ctx context.Context, rule schema.Rule, id string, scope map[string]any, result *schema.ValidationResult) {
	eng, err := v.engines.Get(rule.Engine)
	if err != nil {
		result.AddWarning(id, schema.ProblemRuleViolation, fmt.Sprintf("rule %s: %v", rule.ID, err))
		return
	}

	out, err := eng.Evaluate(ctx, rule.Expression, scope)
	if err != nil {
		v.logger.DebugContext(ctx, "rule evaluation failed",
			slog.String("rule_id", rule.ID),
			slog.String("element_id", id),
			slog.String("error", err.Error()),
		)
		result.AddWarning(id, schema.ProblemRuleViolation,
			fmt.Sprintf("rule %s could not be evaluated", rule.ID))
		return
	}

	ok, isBool := out.(bool)
	if !isBool {
		result.AddWarning(id, schema.ProblemRuleViolation,
			fmt.Sprintf("rule %s did not return a boolean", rule.ID))
		return
	}
	if ok {
		return
	}

	msg := fmt.Sprintf("rule %s failed", rule.ID)
	if rule.Message != "" {
		if m, err := expressions.Interpolate(rule.Message, scope); err == nil {
			msg = m
		} else {
			msg = rule.Message
		}
	}
	result.AddWarning(id, schema.ProblemRuleViolation, msg)
}
