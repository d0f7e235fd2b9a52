package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rendis/procperf/internal/store"
)

func reportsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List, show and delete stored reports",
	}
	cmd.AddCommand(reportsListCmd(a), reportsShowCmd(a), reportsDeleteCmd(a))
	return cmd
}

func reportsListCmd(a *app) *cobra.Command {
	var (
		filter    store.ReportFilter
		succeeded string
		since     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored reports, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			switch succeeded {
			case "":
			case "true", "false":
				v := succeeded == "true"
				filter.Succeeded = &v
			default:
				return fmt.Errorf("--succeeded must be true or false")
			}
			if since > 0 {
				t := time.Now().UTC().Add(-since)
				filter.Since = &t
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			reports, err := s.ListReports(ctx, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if flagJSON || flagQuery != "" {
				return writeJSON(ctx, out, reports, flagQuery)
			}
			if len(reports) == 0 {
				fmt.Fprintln(out, dim("no reports"))
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPROCESS\tRESULT\tPROBLEMS\tCREATED\tSOURCE")
			for _, r := range reports {
				result := green("ok")
				if !r.Succeeded {
					result = red("problems")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.ProcessID, result, r.Problems, r.CreatedAt.Format(time.RFC3339), r.Source)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&filter.ProcessID, "process", "", "Only reports of this main process")
	cmd.Flags().StringVar(&filter.Source, "source", "", "Only reports of this source file")
	cmd.Flags().StringVar(&succeeded, "succeeded", "", "Filter by outcome: true or false")
	cmd.Flags().DurationVar(&since, "since", 0, "Only reports newer than this age (e.g. 24h)")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum reports to list")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Reports to skip")
	return cmd
}

func reportsShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show <report-id>",
		Short: "Print a stored report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			stored, err := s.GetReport(ctx, args[0])
			if err != nil {
				return err
			}
			var body any
			if err := json.Unmarshal(stored.Body, &body); err != nil {
				return err
			}
			return writeJSON(ctx, cmd.OutOrStdout(), body, flagQuery)
		},
	}
}

func reportsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <report-id>...",
		Short: "Delete stored reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			for _, id := range args {
				if err := s.DeleteReport(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", green("deleted"), id)
			}
			return nil
		},
	}
}
