package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rendis/procperf/pkg/schema"
)

// settingsFlags are the per-command overrides of the configured settings.
type settingsFlags struct {
	file           string
	calculations   []string
	sequenceFlows  bool
	parentPerf     bool
	ignoreBasic    bool
	ignoreOptional bool
	currency       string
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "settings", "", "Settings file (YAML or JSON), replaces configured settings")
	cmd.Flags().StringSliceVar(&f.calculations, "calc", nil, "Calculations to perform: time, cost, dates")
	cmd.Flags().BoolVar(&f.sequenceFlows, "sequence-flow-performance", false, "Read time and cost from sequence flows")
	cmd.Flags().BoolVar(&f.parentPerf, "parent-performance", false, "Let a nested element's own figures replace its body's")
	cmd.Flags().BoolVar(&f.ignoreBasic, "ignore-missing-basic", false, "Do not report missing time and cost")
	cmd.Flags().BoolVar(&f.ignoreOptional, "ignore-missing-optional", false, "Do not report missing dates")
	cmd.Flags().StringVar(&f.currency, "currency", "", "Currency appended to formatted costs")
}

// resolve applies the flags that were set on top of base.
func (f *settingsFlags) resolve(cmd *cobra.Command, base schema.Settings) (schema.Settings, error) {
	settings := base
	if f.file != "" {
		loaded, err := loadSettingsFile(f.file)
		if err != nil {
			return settings, err
		}
		settings = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("calc") {
		settings.Calculations = nil
		for _, c := range f.calculations {
			settings.Calculations = append(settings.Calculations, parseCalculations(c)...)
		}
	}
	if flags.Changed("sequence-flow-performance") {
		settings.ConsiderPerformanceInSequenceFlows = f.sequenceFlows
	}
	if flags.Changed("parent-performance") {
		settings.OverwriteWithParentPerformance = f.parentPerf
	}
	if flags.Changed("ignore-missing-basic") {
		settings.IgnoreMissingBasicPerformance = f.ignoreBasic
	}
	if flags.Changed("ignore-missing-optional") {
		settings.IgnoreMissingOptionalPerformance = f.ignoreOptional
	}
	if flags.Changed("currency") {
		settings.Currency = f.currency
	}
	return settings, nil
}

func analyzeCmd(a *app) *cobra.Command {
	var (
		sf   settingsFlags
		save bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Validate and linearize a process document",
		Long: `Analyze reads a JSON or YAML process document, resolves its called processes,
then validates and linearizes every process. Exits with status 2 when the
report contains problems.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if save {
				s, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer s.Close()
				if err := s.SaveReport(ctx, report); err != nil {
					return err
				}
				a.logger.Info("report saved", "report_id", report.ID, "db", a.cfg.DBPath)
			}

			out := cmd.OutOrStdout()
			if flagJSON || flagQuery != "" {
				if err := writeJSON(ctx, out, report, flagQuery); err != nil {
					return err
				}
			} else {
				printReport(out, report)
			}

			if !report.Succeeded() {
				return fmt.Errorf("%s: %w", args[0], errProblems)
			}
			return nil
		},
	}

	sf.register(cmd)
	cmd.Flags().BoolVar(&save, "save", false, "Store the report in the report database")
	return cmd
}
