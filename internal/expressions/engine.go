package expressions

import (
	"context"
	"fmt"

	"github.com/rendis/procperf/pkg/schema"
)

// Engine evaluates expressions against element and process data.
// Three implementations: CEL (rules), Expr (rules), GoJQ (report queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// Engines holds one instance of every engine, keyed by name.
type Engines struct {
	CEL  *CELEngine
	Expr *ExprEngine
	JQ   *GoJQEngine
}

// NewEngines creates all expression engines.
func NewEngines() (*Engines, error) {
	c, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Engines{CEL: c, Expr: NewExprEngine(), JQ: NewGoJQEngine()}, nil
}

// Get returns the engine registered under name. An empty name selects CEL.
func (e *Engines) Get(name string) (Engine, error) {
	switch name {
	case "", "cel":
		return e.CEL, nil
	case "expr":
		return e.Expr, nil
	case "jq":
		return e.JQ, nil
	}
	return nil, schema.NewError(schema.ErrCodeExpression,
		fmt.Sprintf("unknown expression engine %q", name)).
		WithDetails(map[string]any{"engine": name})
}
