package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"whatado/event-service/internal/config"
	"whatado/event-service/internal/migrations"
	"whatado/event-service/pkg/db"
)

// NewMigrateCommand creates the migrate command and its subcommands
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the MySQL schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back applied migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			return withRunner(cmd.Context(), func(r *migrations.Runner) error {
				return r.Down(steps)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRunner(cmd.Context(), func(r *migrations.Runner) error {
					return r.Up()
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withRunner(cmd.Context(), func(r *migrations.Runner) error {
					v, dirty, err := r.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", v, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withRunner(ctx context.Context, fn func(r *migrations.Runner) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer conn.Close()

	runner, err := migrations.NewRunner(conn.DB)
	if err != nil {
		return err
	}
	return fn(runner)
}
