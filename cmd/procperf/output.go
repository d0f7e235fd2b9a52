package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/rendis/procperf/internal/expressions"
	"github.com/rendis/procperf/internal/format"
	"github.com/rendis/procperf/pkg/schema"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	dim    = color.New(color.Faint).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
)

// writeJSON prints v as indented JSON, projected through query when set.
func writeJSON(ctx context.Context, w io.Writer, v any, query string) error {
	if query != "" {
		out, err := expressions.NewGoJQEngine().Query(ctx, query, v)
		if err != nil {
			return err
		}
		v = out
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes a human-readable summary: one line per process
// followed by its problems.
func printReport(w io.Writer, r *schema.Report) {
	fmt.Fprintf(w, "%s %s %s\n", bold("Report"), cyan(r.ID), dim(r.CreatedAt.Format("2006-01-02 15:04:05")))
	if r.Source != "" {
		fmt.Fprintf(w, "%s %s\n", dim("source:"), r.Source)
	}

	if !r.Resolved {
		fmt.Fprintf(w, "%s %s\n", red("✗"), bold("resolution failed"))
		printProblems(w, r.Problems, "  ")
		return
	}

	for _, p := range r.Processes {
		mark := green("✓")
		if !p.ValidationPassed || !p.ExtractionSuccessful {
			mark = red("✗")
		}
		fmt.Fprintf(w, "%s %s %s\n", mark, bold(p.ProcessID),
			dim(fmt.Sprintf("(%d items)", len(p.OrderedProcess))))
		if p.Failure != nil {
			el := ""
			if p.Failure.ElementID != "" {
				el = " at " + p.Failure.ElementID
			}
			fmt.Fprintf(w, "    %s %s%s: %s\n", red("linearization"), p.Failure.Code, el, p.Failure.Message)
		}
		printProblems(w, p.Problems, "    ")
	}

	if r.Succeeded() {
		fmt.Fprintln(w, green("All processes passed"))
	} else {
		fmt.Fprintln(w, yellow(fmt.Sprintf("%d problem(s) found", problemCount(r))))
	}
}

func printProblems(w io.Writer, problems []schema.Problem, indent string) {
	for _, pr := range problems {
		sev := yellow(string(pr.Severity))
		if pr.Severity == schema.SeverityError {
			sev = red(string(pr.Severity))
		}
		fmt.Fprintf(w, "%s%s %s %s %s\n", indent, sev, bold(pr.ID), dim(pr.Code), pr.Message)
	}
}

func problemCount(r *schema.Report) int {
	n := len(r.Problems)
	for _, p := range r.Processes {
		n += len(p.Problems)
		if p.Failure != nil {
			n++
		}
	}
	return n
}

// printAggregates writes formatted figures, one block per process.
func printAggregates(w io.Writer, aggs []schema.FormattedAggregate) {
	for _, a := range aggs {
		fmt.Fprintln(w, bold(a.ProcessID))
		if a.Duration != nil {
			fmt.Fprintf(w, "  %-9s %s / %s / %s\n", "duration", a.Duration.Min, a.Duration.Expected, a.Duration.Max)
		}
		if a.Cost != nil {
			fmt.Fprintf(w, "  %-9s %s / %s / %s\n", "cost", a.Cost.Min, a.Cost.Expected, a.Cost.Max)
		}
		if a.Start != nil {
			fmt.Fprintf(w, "  %-9s %s .. %s\n", "start", a.Start.Earliest, a.Start.Latest)
		}
		if a.End != nil {
			fmt.Fprintf(w, "  %-9s %s .. %s\n", "end", a.End.Earliest, a.End.Latest)
		}
	}
}

// formatDuration renders milliseconds the same way aggregates are rendered.
func formatDuration(ms int64) string {
	return format.Duration(float64(ms))
}
