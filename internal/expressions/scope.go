package expressions

import (
	"fmt"
	"strings"
	"time"

	"github.com/rendis/procperf/pkg/schema"
)

// ElementScope builds the data map rules are evaluated against.
//   - element:  kind, id, duration (ms), cost, probability, start, end, calledProcess
//   - process:  id, name
//   - settings: calculations and the boolean flags
//
// Numbers are int64 for durations and float64 for cost and probability.
// Absent timestamps are empty strings.
func ElementScope(p *schema.Process, info *schema.ElementInfo, settings schema.Settings) map[string]any {
	calcs := make([]any, 0, len(settings.Calculations))
	for _, c := range settings.Calculations {
		calcs = append(calcs, string(c))
	}

	return map[string]any{
		"element": map[string]any{
			"kind":          info.Kind.Short(),
			"id":            info.ID,
			"duration":      info.Duration,
			"cost":          info.Cost,
			"probability":   info.Probability,
			"start":         formatTime(info.Start),
			"end":           formatTime(info.End),
			"calledProcess": info.CalledProcess,
		},
		"process": map[string]any{
			"id":   p.ID,
			"name": p.Name,
		},
		"settings": map[string]any{
			"calculations":                       calcs,
			"considerPerformanceInSequenceFlows": settings.ConsiderPerformanceInSequenceFlows,
			"overwriteWithParentPerformance":     settings.OverwriteWithParentPerformance,
		},
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

// Interpolate replaces ${{ path }} references in tmpl with values looked up by
// dot path in scope (element.id, process.name). Unknown paths are an error.
func Interpolate(tmpl string, scope map[string]any) (string, error) {
	var out strings.Builder
	out.Grow(len(tmpl))

	i := 0
	for i < len(tmpl) {
		idx := strings.Index(tmpl[i:], "${{")
		if idx == -1 {
			out.WriteString(tmpl[i:])
			break
		}
		out.WriteString(tmpl[i : i+idx])
		start := i + idx + 3

		end := strings.Index(tmpl[start:], "}}")
		if end == -1 {
			return "", schema.NewError(schema.ErrCodeExpression, "unclosed ${{ reference")
		}
		end += start

		path := strings.TrimSpace(tmpl[start:end])
		if path == "" {
			return "", schema.NewError(schema.ErrCodeExpression, "empty reference: ${{  }}")
		}
		val, ok := lookup(scope, strings.Split(path, "."))
		if !ok {
			return "", schema.NewErrorf(schema.ErrCodeExpression, "unknown reference %q", path).
				WithDetails(map[string]any{"path": path})
		}
		fmt.Fprint(&out, val)
		i = end + 2
	}
	return out.String(), nil
}

func lookup(scope map[string]any, parts []string) (any, bool) {
	var cur any = scope
	for _, part := range parts {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}
