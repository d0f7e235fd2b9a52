package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rendis/procperf/internal/scheduler"
	"github.com/rendis/procperf/internal/store"
	"github.com/rendis/procperf/pkg/mcp"
)

func serveCmd(a *app) *cobra.Command {
	var (
		noStore     bool
		noScheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the MCP tools over stdio and run scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			analyzer, err := a.analyzer()
			if err != nil {
				return err
			}
			defer analyzer.Close()

			deps := mcp.ServerDeps{
				Analyzer: analyzer,
				Settings: a.cfg.Settings,
				Logger:   a.logger,
			}

			if !noStore {
				s, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				defer s.Close()
				deps.Store = s

				if !noScheduler {
					sched, err := startScheduler(ctx, s, analyzer, a.logger)
					if err != nil {
						return err
					}
					defer func() { _ = sched.Stop() }()
				}
			}

			a.logger.Info("serving MCP over stdio", slog.String("db", a.cfg.DBPath), slog.Bool("store", !noStore))
			return mcp.NewServer(deps).Serve(ctx)
		},
	}

	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not persist reports (disables procperf.report and scheduling)")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "Do not run scheduled jobs")
	return cmd
}

// startScheduler runs jobs missed while the server was down, then starts the
// polling loop.
func startScheduler(ctx context.Context, s store.Store, runner scheduler.ReportRunner, logger *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(s, runner, logger)
	if err := sched.RecoverMissed(ctx); err != nil {
		logger.Warn("missed job recovery failed", slog.String("error", err.Error()))
	}
	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	return sched, nil
}
