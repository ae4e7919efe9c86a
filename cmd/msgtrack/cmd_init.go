package main

import (
	"fmt"

	"msgtrack/pkg/config"
	"msgtrack/pkg/ledger"

	"github.com/spf13/cobra"
)

// newInitCmd creates the "msgtrack init" subcommand.
func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default config and create an empty ledger",
		Long:  "Writes msgtrack.toml if it does not exist and creates a header-only ledger.\nExisting files are left untouched.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmd.SilenceUsage = true
			w := cmd.OutOrStdout()

			path := config.ResolvePath(opts.configPath)
			wrote, err := config.WriteDefault(path)
			if err != nil {
				return err
			}
			if wrote {
				fmt.Fprintf(w, "wrote %s\n", path)
			} else {
				fmt.Fprintf(w, "kept existing %s\n", path)
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if err := ledger.New(cfg.Ledger.Path).Initialize(); err != nil {
				return err
			}
			fmt.Fprintf(w, "ledger ready at %s\n", cfg.Ledger.Path)
			return nil
		},
	}
}
