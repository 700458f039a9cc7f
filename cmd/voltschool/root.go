package main

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "voltschool",
		Short:         "School bus, student and incident tracker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to YAML config (default $VOLTSCHOOL_CONFIG)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newResetCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newDumpCommand(opts))
	cmd.AddCommand(newIncidentCommand(opts))
	return cmd
}
