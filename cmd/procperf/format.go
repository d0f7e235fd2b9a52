package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rendis/procperf/internal/format"
	"github.com/rendis/procperf/pkg/schema"
)

func formatCmd(a *app) *cobra.Command {
	var sf settingsFlags

	cmd := &cobra.Command{
		Use:   "format [file]",
		Short: "Render aggregated figures as display strings",
		Long: `Format reads one aggregate or a list of aggregates as JSON (from a file or,
when the file is "-" or omitted, from stdin) and renders durations, costs and
dates, keeping only the requested calculations.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := sf.resolve(cmd, a.cfg.Settings)
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 0 || args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			aggs, err := decodeAggregates(data)
			if err != nil {
				return err
			}
			formatted := format.New(settings).FormatAll(aggs)

			out := cmd.OutOrStdout()
			if flagJSON || flagQuery != "" {
				return writeJSON(cmd.Context(), out, formatted, flagQuery)
			}
			printAggregates(out, formatted)
			return nil
		},
	}

	sf.register(cmd)
	return cmd
}

// decodeAggregates accepts a single aggregate object or an array of them.
func decodeAggregates(data []byte) ([]schema.Aggregate, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "no aggregate input")
	}
	if data[0] == '{' {
		var one schema.Aggregate
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, schema.NewError(schema.ErrCodeValidation, "invalid aggregate").WithCause(err)
		}
		return []schema.Aggregate{one}, nil
	}
	var many []schema.Aggregate
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid aggregates").WithCause(err)
	}
	return many, nil
}
