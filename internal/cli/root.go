// Package cli wires the cartd subcommands: the relay server, the
// hardware-adapter simulators and the terminal cart monitor.
package cli

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smartcart-io/cartd/internal/obs"
)

// RootOptions holds flags shared by every subcommand.
type RootOptions struct {
	Verbose    bool
	TuningFile string
}

// NewRootCommand builds the cartd command tree.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "cartd",
		Short:         "Smart-cart event synchronization relay and tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// A missing .env file is the normal case.
			_ = godotenv.Load()
			obs.InitLogger(opts.Verbose)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.TuningFile, "tuning", "", "path to a YAML tuning override file")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewSimulateCommand(opts))
	cmd.AddCommand(NewMonitorCommand(opts))

	return cmd
}
