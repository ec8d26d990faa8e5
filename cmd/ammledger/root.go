package main

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"amm-position-ledger/internal/config"
	"amm-position-ledger/internal/observability"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	EnvFile       string
	RPCURL        string
	PostgresDSN   string
	ClickhouseDSN string
	LogLevel      string

	cfg *config.Config
}

func newRootCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ammledger",
		Short: "AMM position ledger",
		Long:  "Indexes Uniswap V2 style pair events into accounts, positions, snapshots and transactions.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		SilenceUsage: true,
	}

	// Global flags override the environment when set.
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load (missing file is ignored)")
	cmd.PersistentFlags().StringVar(&opts.RPCURL, "rpc-url", "", "JSON-RPC endpoint")
	cmd.PersistentFlags().StringVar(&opts.PostgresDSN, "postgres-dsn", "", "PostgreSQL connection string")
	cmd.PersistentFlags().StringVar(&opts.ClickhouseDSN, "clickhouse-dsn", "", "ClickHouse connection string (empty disables the snapshot sink)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(newIndexCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newPositionsCommand(opts))
	cmd.AddCommand(newVerifyCommand(opts))

	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("rpc-url") {
		cfg.RPCURL = o.RPCURL
	}
	if flags.Changed("postgres-dsn") {
		cfg.PostgresDSN = o.PostgresDSN
	}
	if flags.Changed("clickhouse-dsn") {
		cfg.ClickhouseDSN = o.ClickhouseDSN
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}

	o.cfg = cfg
	return nil
}

func (o *rootOptions) logger(component string) zerolog.Logger {
	return observability.NewLoggerWithLevel(component, observability.ParseLevel(o.cfg.LogLevel))
}
