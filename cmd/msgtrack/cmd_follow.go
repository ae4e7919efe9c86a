package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"msgtrack/pkg/config"
	"msgtrack/pkg/ledger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// followPollInterval is the fallback re-read interval when file events are
// missed or fsnotify is unavailable.
const followPollInterval = time.Second

// newFollowCmd creates the "msgtrack follow" subcommand.
func newFollowCmd(opts *rootOptions) *cobra.Command {
	var correlationID string

	cmd := &cobra.Command{
		Use:   "follow",
		Short: "Print ledger events as they are appended",
		Long:  "Prints the existing ledger rows, then watches the ledger file and prints\nnew rows until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.Load(config.ResolvePath(opts.configPath))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return followLedger(ctx, cmd.OutOrStdout(), cfg.Ledger.Path, correlationID)
		},
	}

	cmd.Flags().StringVar(&correlationID, "correlation", "", "only show events of this run")

	return cmd
}

// followLedger prints rows of the ledger at path as they appear until ctx is
// done. Appends replace the file by rename, so the parent directory is
// watched rather than the file itself.
func followLedger(ctx context.Context, w io.Writer, path, correlationID string) error {
	printer := newEventPrinter(w)
	seen := 0

	flush := func() error {
		events, err := ledger.Read(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return err
		}
		if len(events) < seen {
			// Ledger was replaced by a shorter one; start over.
			seen = 0
		}
		for i := seen; i < len(events); i++ {
			if correlationID == "" || events[i].CorrelationID == correlationID {
				printer.print(&events[i])
			}
		}
		seen = len(events)
		return nil
	}

	if err := flush(); err != nil {
		return err
	}

	var changes <-chan fsnotify.Event
	var watchErrs <-chan error
	if watcher := initWatcher(filepath.Dir(path)); watcher != nil {
		defer watcher.Close()
		changes, watchErrs = watcher.Events, watcher.Errors
	}

	ticker := time.NewTicker(followPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Rename) {
				continue
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			fmt.Fprintf(os.Stderr, "fsnotify: watcher error: %v (polling only)\n", err)
			continue
		case <-ticker.C:
		}

		if err := flush(); err != nil {
			return err
		}
	}
}

// initWatcher watches dir for changes. Returns nil if the watcher cannot be
// created; callers fall back to polling.
func initWatcher(dir string) *fsnotify.Watcher {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fsnotify: failed to create watcher: %v (falling back to polling)\n", err)
		return nil
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		fmt.Fprintf(os.Stderr, "fsnotify: failed to watch %s: %v (falling back to polling)\n", dir, err)
		return nil
	}
	return watcher
}
