package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/procperf/internal/scheduler"
	"github.com/rendis/procperf/internal/store"
	"github.com/rendis/procperf/pkg/schema"
)

func scheduleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage periodic re-analysis jobs",
		Long: `Scheduled jobs re-analyze a process document on a cron schedule while
"procperf serve" runs. Every run stores its report and is appended to the
job's run log.`,
	}
	cmd.AddCommand(
		scheduleAddCmd(a),
		scheduleListCmd(a),
		scheduleRemoveCmd(a),
		scheduleEnableCmd(a, true),
		scheduleEnableCmd(a, false),
		scheduleRunCmd(a),
		scheduleRunsCmd(a),
	)
	return cmd
}

func scheduleAddCmd(a *app) *cobra.Command {
	var settingsFile string

	cmd := &cobra.Command{
		Use:   "add <name> <cron> <file>",
		Short: "Schedule a document for periodic analysis",
		Example: `  procperf schedule add nightly "0 2 * * *" ./models/order.yaml
  procperf schedule add hourly @hourly ./models/order.yaml --settings cost-only.yaml`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			path, err := filepath.Abs(args[2])
			if err != nil {
				return err
			}
			var settings *schema.Settings
			if settingsFile != "" {
				loaded, err := loadSettingsFile(settingsFile)
				if err != nil {
					return err
				}
				settings = &loaded
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			sched := scheduler.NewScheduler(s, nil, a.logger)
			job, err := sched.AddJob(ctx, args[0], args[1], path, settings)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s) next run %s\n",
				green("scheduled"), job.Name, job.ID, job.NextRunAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&settingsFile, "settings", "", "Settings file used for every run (default: built-in defaults)")
	return cmd
}

func scheduleListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			jobs, err := s.ListScheduledJobs(ctx, store.ScheduledJobFilter{})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if flagJSON || flagQuery != "" {
				return writeJSON(ctx, out, jobs, flagQuery)
			}
			if len(jobs) == 0 {
				fmt.Fprintln(out, dim("no scheduled jobs"))
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCRON\tENABLED\tLAST\tNEXT\tPATH")
			for _, j := range jobs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\t%s\n",
					j.ID, j.Name, j.CronExpression, j.Enabled, statusText(j.LastRunStatus), timeText(j.NextRunAt), j.Path)
			}
			return tw.Flush()
		},
	}
}

func scheduleRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <job-id>",
		Short: "Delete a scheduled job and its run log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			if err := s.DeleteScheduledJob(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("removed"), args[0])
			return nil
		},
	}
}

func scheduleEnableCmd(a *app, enable bool) *cobra.Command {
	use, short := "enable <job-id>", "Resume a scheduled job"
	if !enable {
		use, short = "disable <job-id>", "Pause a scheduled job"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			return s.UpdateScheduledJob(ctx, args[0], store.ScheduledJobUpdate{Enabled: &enable})
		},
	}
}

func scheduleRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run <job-id>",
		Short: "Run a scheduled job now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()
			analyzer, err := a.analyzer()
			if err != nil {
				return err
			}
			defer analyzer.Close()

			run, err := scheduler.NewScheduler(s, analyzer, a.logger).RunNow(ctx, args[0])
			if err != nil {
				return err
			}
			if flagJSON || flagQuery != "" {
				return writeJSON(ctx, cmd.OutOrStdout(), run, flagQuery)
			}
			printRun(cmd, run)
			return nil
		},
	}
}

func scheduleRunsCmd(a *app) *cobra.Command {
	var since int64

	cmd := &cobra.Command{
		Use:   "runs <job-id>",
		Short: "Show the run log of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			runs, err := s.ListRuns(ctx, args[0], since)
			if err != nil {
				return err
			}
			if flagJSON || flagQuery != "" {
				return writeJSON(ctx, cmd.OutOrStdout(), runs, flagQuery)
			}
			for _, r := range runs {
				printRun(cmd, r)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&since, "since", 0, "Only runs after this sequence number")
	return cmd
}

func printRun(cmd *cobra.Command, r *store.JobRun) {
	line := fmt.Sprintf("#%d %s %s %s", r.Sequence, r.StartedAt.Format(time.RFC3339),
		statusText(r.Status), dim(formatDuration(r.DurationMs)))
	switch {
	case r.ReportID != "":
		line += " report " + r.ReportID
	case r.Error != "":
		line += " " + r.Error
	}
	fmt.Fprintln(cmd.OutOrStdout(), line)
}

func statusText(status string) string {
	switch status {
	case store.RunSucceeded:
		return green(status)
	case store.RunProblems:
		return yellow(status)
	case store.RunFailed:
		return red(status)
	case "":
		return dim("never")
	}
	return status
}

func timeText(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.RFC3339)
}
