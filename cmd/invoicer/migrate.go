package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"invoicer/internal/infrastructure/storage/postgres"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
				return m.Down(ctx, steps)
			})
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to roll back (0 = all)")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					return m.Up(ctx)
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Show the current schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd.Context(), func(ctx context.Context, m *postgres.Migrator) error {
					version, dirty, err := m.Version()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version: %d\ndirty: %t\n", version, dirty)
					return nil
				})
			},
		},
	)

	return cmd
}

func withMigrator(ctx context.Context, fn func(ctx context.Context, m *postgres.Migrator) error) error {
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := loadApp()
	if err != nil {
		return err
	}
	defer a.close()

	m, err := postgres.NewMigrator(a.cfg.Database.URL)
	if err != nil {
		return err
	}
	defer m.Close()

	return fn(ctx, m)
}

// runMigrations applies pending migrations ahead of serving.
func runMigrations(ctx context.Context, databaseURL string) error {
	m, err := postgres.NewMigrator(databaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	return m.Up(ctx)
}
