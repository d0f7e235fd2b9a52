package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rendis/procperf/internal/engine"
	"github.com/rendis/procperf/internal/logging"
	"github.com/rendis/procperf/internal/store"
)

var (
	flagConfig    string
	flagDB        string
	flagLogLevel  string
	flagLogFormat string
	flagPoolSize  int
	flagJSON      bool
	flagQuery     string
)

// errProblems signals a completed analysis that reported problems.
var errProblems = errors.New("analysis reported problems")

// app carries the configuration and logger resolved before each command.
type app struct {
	cfg    Config
	logger *slog.Logger
}

func main() {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:   "procperf",
		Short: "Analyze BPMN process models for time, cost and dates",
		Long: `procperf validates BPMN process models, resolves their called processes and
linearizes every process into an ordered tree of elements, branch blocks and
loops, ready for time, cost and date aggregation.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default ~/.procperf/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "Report database path")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")
	rootCmd.PersistentFlags().IntVar(&flagPoolSize, "pool-size", 0, "Concurrent process analyses (default: CPU count)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().StringVar(&flagQuery, "query", "", "jq expression applied to JSON output")

	rootCmd.AddCommand(analyzeCmd(a))
	rootCmd.AddCommand(diagramCmd(a))
	rootCmd.AddCommand(formatCmd(a))
	rootCmd.AddCommand(reportsCmd(a))
	rootCmd.AddCommand(scheduleCmd(a))
	rootCmd.AddCommand(serveCmd(a))
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errProblems) {
			os.Exit(2)
		}
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// init loads the layered configuration and applies global flags on top.
func (a *app) init(cmd *cobra.Command) error {
	cfg, err := loadConfig(flagConfig, os.Getenv)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = flagDB
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = flagLogFormat
	}
	if flags.Changed("pool-size") {
		cfg.PoolSize = flagPoolSize
	}

	a.cfg = cfg
	a.logger = logging.New(logging.Format(strings.ToLower(cfg.LogFormat)), logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(a.logger)
	return nil
}

func (a *app) analyzer() (*engine.Analyzer, error) {
	return engine.NewAnalyzer(engine.Config{
		PoolSize: a.cfg.PoolSize,
		MaxDepth: a.cfg.MaxDepth,
		Logger:   a.logger,
	})
}

// openStore opens and migrates the report database.
func (a *app) openStore(ctx context.Context) (*store.LibSQLStore, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	s, err := store.NewLibSQLStore("file:" + a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
