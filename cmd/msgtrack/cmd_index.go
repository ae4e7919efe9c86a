package main

import (
	"context"
	"fmt"

	"msgtrack/pkg/config"
	"msgtrack/pkg/eventindex"
	"msgtrack/pkg/ledger"

	"github.com/spf13/cobra"
)

// newIndexCmd creates the "msgtrack index" subcommand.
func newIndexCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the sqlite index from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true

			cfg, err := config.Load(config.ResolvePath(opts.configPath))
			if err != nil {
				return err
			}

			n, err := rebuildIndex(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d events into %s\n", n, cfg.Ledger.Index)
			return nil
		},
	}
}

// rebuildIndex materializes the whole ledger into the configured index.
func rebuildIndex(ctx context.Context, cfg *config.Config) (int, error) {
	events, err := ledger.Read(cfg.Ledger.Path)
	if err != nil {
		return 0, err
	}

	idx, err := eventindex.Open(ctx, cfg.Ledger.Index)
	if err != nil {
		return 0, err
	}
	defer idx.Close()

	n, err := idx.Materialize(ctx, events)
	if err != nil {
		return 0, fmt.Errorf("index %s: %w", cfg.Ledger.Index, err)
	}
	return n, nil
}
