package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"msgtrack/pkg/classify"
	"msgtrack/pkg/config"
	"msgtrack/pkg/ledger"
	"msgtrack/pkg/runner"

	"github.com/spf13/cobra"
)

// errRunFailed marks a run whose child exited non-zero.
var errRunFailed = errors.New("run failed") //nolint:gochecknoglobals // sentinel error

// newRunCmd creates the "msgtrack run" subcommand.
func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run <correlation-id>",
		Short: "Run one discussion and record its events",
		Long: "Starts the configured child process with the correlation id as its last\n" +
			"argument, records every classified line and stderr line in the ledger,\n" +
			"and exits non-zero if the run fails.",
		Example: "  msgtrack run 331810",
		Args:    cobra.MatchAll(cobra.ExactArgs(1), nonBlankArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			correlationID := args[0]

			cfg, err := config.Load(config.ResolvePath(opts.configPath))
			if err != nil {
				return err
			}

			logger, closeLog, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			markers, err := cfg.Markers()
			if err != nil {
				return err
			}

			l := ledger.New(cfg.Ledger.Path)
			if err := l.Initialize(); err != nil {
				return err
			}

			r := runner.New(l, classify.New(markers), logger)
			r.SetDir(cfg.Child.Dir)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("run starting", "correlation_id", correlationID, "ledger", cfg.Ledger.Path)
			res, err := r.Execute(ctx, correlationID, cfg.Child.Command, cfg.ChildArgs(correlationID)...)
			if err != nil {
				logger.Error("run failed", "correlation_id", correlationID, "err", err)
				return fmt.Errorf("run %s: %w", correlationID, err)
			}
			if res.ExitCode != 0 {
				logger.Error("run failed", "correlation_id", correlationID, "exit_code", res.ExitCode)
				return fmt.Errorf("run %s: child exited with code %d: %w", correlationID, res.ExitCode, errRunFailed)
			}

			logger.Info("run completed", "correlation_id", correlationID, "events", res.Events,
				"duration_seconds", res.Duration.Seconds())
			fmt.Fprintf(cmd.OutOrStdout(), "run %s completed: %d events in %.1fs\n",
				correlationID, res.Events, res.Duration.Seconds())
			return nil
		},
	}
}

// nonBlankArgs rejects empty or whitespace-only positional arguments.
func nonBlankArgs(_ *cobra.Command, args []string) error {
	for i, arg := range args {
		if strings.TrimSpace(arg) == "" {
			return fmt.Errorf("argument %d must not be blank", i+1)
		}
	}
	return nil
}
