package main

import (
	"fmt"

	"msgtrack/internal/appversion"

	"github.com/spf13/cobra"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

// newRootCmd creates the root msgtrack command with all subcommands attached.
// Subcommands set SilenceUsage once their arguments validate, so only
// argument errors print usage.
func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "msgtrack",
		Short:         "Record the narration of discussion runs",
		Long:          "msgtrack runs a discussion process, classifies the lines it prints\nand appends the resulting events to a CSV ledger.",
		Version:       fmt.Sprintf("msgtrack %s", appversion.String()),
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("{{.Version}}\n")
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $MSGTRACK_CONFIG or ./msgtrack.toml)")

	cmd.AddCommand(
		newRunCmd(opts),
		newInitCmd(opts),
		newFollowCmd(opts),
		newIndexCmd(opts),
		newEventsCmd(opts),
	)

	return cmd
}
