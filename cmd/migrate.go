package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/profilequest/internal/adapters/database"
	"github.com/okian/profilequest/internal/config"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(
		migrateAction("up", "Apply every pending migration", func(ctx context.Context, cmd *cobra.Command, m *database.Migrator) error {
			applied, err := m.Up(ctx)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %d\n", v)
			}
			return nil
		}),
		migrateAction("down", "Roll back the latest migration", func(ctx context.Context, cmd *cobra.Command, m *database.Migrator) error {
			v, err := m.Down(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d\n", v)
			return nil
		}),
		migrateAction("status", "List migrations and whether they are applied", func(ctx context.Context, cmd *cobra.Command, m *database.Migrator) error {
			st, err := m.Status(ctx)
			if err != nil {
				return err
			}
			for _, s := range st {
				state := "pending"
				if s.Applied {
					state = "applied"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", s.Version, state)
			}
			return nil
		}),
	)
	return cmd
}

type migrateFunc func(ctx context.Context, cmd *cobra.Command, m *database.Migrator) error

func migrateAction(use, short string, fn migrateFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			m, closeDB, err := openMigrator(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = closeDB() }()
			return fn(ctx, cmd, m)
		},
	}
}

// openMigrator connects to the configured database. The returned func
// releases every connection it opened.
func openMigrator(ctx context.Context, cfg *config.Config) (*database.Migrator, func() error, error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		db, err := database.OpenSQLite(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		m, err := database.NewMigrator(db, database.SQLite)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return m, db.Close, nil

	case config.DriverPostgres:
		pool, err := database.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}
		m, closeDB, err := database.NewPostgresMigrator(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return m, func() error {
			defer pool.Close()
			return closeDB()
		}, nil

	default:
		return nil, nil, fmt.Errorf("storage driver %q has no schema to migrate", cfg.StorageDriver)
	}
}
