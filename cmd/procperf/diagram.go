package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/procperf/internal/diagram"
	"github.com/rendis/procperf/pkg/schema"
)

func diagramCmd(a *app) *cobra.Command {
	var (
		sf        settingsFlags
		processID string
		outFormat string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "diagram <file>",
		Short: "Draw the linearized flow of a process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFormat != "ascii" && outFormat != "mermaid" {
				return fmt.Errorf("--format must be ascii or mermaid")
			}
			ctx := cmd.Context()
			settings, err := sf.resolve(cmd, a.cfg.Settings)
			if err != nil {
				return err
			}

			analyzer, err := a.analyzer()
			if err != nil {
				return err
			}
			defer analyzer.Close()

			report, err := analyzer.AnalyzeFile(ctx, args[0], settings)
			if err != nil {
				return err
			}
			if !report.Resolved {
				printReport(cmd.ErrOrStderr(), report)
				return errProblems
			}

			pr, err := pickProcess(report, processID)
			if err != nil {
				return err
			}
			model, err := diagram.Build(pr)
			if err != nil {
				return err
			}

			text := diagram.RenderASCII(model)
			if outFormat == "mermaid" {
				text = diagram.RenderMermaid(model)
			}
			if output != "" {
				return os.WriteFile(output, []byte(text), 0o644)
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), text)
			return err
		},
	}

	sf.register(cmd)
	cmd.Flags().StringVar(&processID, "process", "", "Process to draw (default: main process)")
	cmd.Flags().StringVar(&outFormat, "format", "ascii", "Output format: ascii or mermaid")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the diagram to a file")
	return cmd
}

// pickProcess returns the report of processID, or the main process when
// processID is empty.
func pickProcess(r *schema.Report, processID string) (*schema.ProcessReport, error) {
	if processID == "" {
		if main := r.Main(); main != nil {
			return main, nil
		}
		return nil, fmt.Errorf("report has no processes")
	}
	for _, p := range r.Processes {
		if p.ProcessID == processID {
			return p, nil
		}
	}
	return nil, schema.NewErrorf(schema.ErrCodeNotFound, "process %q not in report", processID)
}
