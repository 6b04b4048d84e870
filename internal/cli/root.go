package cli

import (
	"github.com/spf13/cobra"

	"whatado/event-service/internal/config"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	EnvFiles []string
}

// NewRootCommand creates the root command for the event service binary
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "event-service",
		Short: "whatado event discovery and attendance service",
		Long: `Serves event discovery feeds and attendance state over gRPC, with an
HTTP JSON gateway, and manages the MySQL schema.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnvFiles(opts.EnvFiles...)
		},
	}

	cmd.PersistentFlags().StringSliceVar(&opts.EnvFiles, "env-file", nil, "env files to load before reading the environment")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}
