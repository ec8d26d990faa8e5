package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"amm-position-ledger/internal/storage/migrations"
	"amm-position-ledger/internal/storage/postgres"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL and ClickHouse migrations",
		Long: `Apply the embedded schema migrations.

PostgreSQL migrations are recorded in schema_migrations and applied once.
ClickHouse migrations run only when a ClickHouse DSN is configured; every
statement is idempotent.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd, opts)
		},
	}
}

func runMigrate(cmd *cobra.Command, opts *rootOptions) error {
	ctx := cmd.Context()
	cfg := opts.cfg
	log := opts.logger("migrate")

	if cfg.PostgresDSN == "" && cfg.ClickhouseDSN == "" {
		return errors.New("nothing to migrate: set a PostgreSQL or ClickHouse DSN")
	}

	if cfg.PostgresDSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			return fmt.Errorf("postgres migrations: %w", err)
		}
		log.Info().Strs("applied", applied).Msg("postgres migrations complete")
	}

	if cfg.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
		if err != nil {
			return fmt.Errorf("clickhouse migrations: %w", err)
		}
		if err := conn.Close(); err != nil {
			return fmt.Errorf("close clickhouse: %w", err)
		}
		log.Info().Msg("clickhouse migrations complete")
	}
	return nil
}
