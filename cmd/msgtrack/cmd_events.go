package main

import (
	"fmt"

	"msgtrack/pkg/config"
	"msgtrack/pkg/eventindex"
	"msgtrack/pkg/ledger"

	"github.com/spf13/cobra"
)

// eventsConfig holds configuration for the events command.
type eventsConfig struct {
	correlationID string
	kind          string
	tail          int
	refresh       bool
}

// newEventsCmd creates the "msgtrack events" subcommand.
func newEventsCmd(opts *rootOptions) *cobra.Command {
	var ecfg eventsConfig

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query recorded events from the sqlite index",
		Long:  "Lists events from the sqlite index, optionally filtered by run and kind.\nUse --refresh to rebuild the index from the ledger first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind := ledger.Kind(ecfg.kind)
			switch kind {
			case "", ledger.KindInsight, ledger.KindResponse, ledger.KindError:
			default:
				return fmt.Errorf("unknown kind %q (want insight, response or error)", ecfg.kind)
			}
			cmd.SilenceUsage = true

			cfg, err := config.Load(config.ResolvePath(opts.configPath))
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ecfg.refresh {
				if _, err := rebuildIndex(ctx, cfg); err != nil {
					return err
				}
			}

			idx, err := eventindex.Open(ctx, cfg.Ledger.Index)
			if err != nil {
				return err
			}
			defer idx.Close()

			events, err := idx.Query(ctx, eventindex.QueryOpts{
				CorrelationID: ecfg.correlationID,
				Kind:          kind,
				Limit:         ecfg.tail,
			})
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(w, "no events found")
				return nil
			}
			printer := newEventPrinter(w)
			for i := range events {
				printer.print(&events[i])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&ecfg.correlationID, "correlation", "", "only show events of this run")
	cmd.Flags().StringVar(&ecfg.kind, "kind", "", "only show events of this kind (insight, response, error)")
	cmd.Flags().IntVar(&ecfg.tail, "tail", 20, "number of most recent events to show (0 = all)")
	cmd.Flags().BoolVar(&ecfg.refresh, "refresh", false, "rebuild the index from the ledger before querying")

	return cmd
}
