package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"amm-position-ledger/internal/chain"
	"amm-position-ledger/internal/indexer"
	"amm-position-ledger/internal/observability"
	"amm-position-ledger/internal/processor"
	"amm-position-ledger/internal/storage"
	chstore "amm-position-ledger/internal/storage/clickhouse"
	"amm-position-ledger/internal/storage/memory"
	"amm-position-ledger/internal/storage/migrations"
	"amm-position-ledger/internal/storage/postgres"
)

// indexOptions holds flags for the index command.
type indexOptions struct {
	*rootOptions
	StartBlock     uint64
	EndBlock       uint64
	BatchSize      uint64
	Follow         bool
	ResolveSenders bool
	Memory         bool
	Migrate        bool
	MetricsAddr    string
}

func newIndexCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &indexOptions{rootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index pair events from a JSON-RPC node",
		Long: `Index factory and pair logs in fixed-size block windows.

Progress is saved after every window, so a restarted run resumes where the
previous one stopped. Without a PostgreSQL DSN (or with --memory) the ledger
is kept in memory and lost on exit.

Examples:
  ammledger index --rpc-url http://localhost:8545 --start-block 10000835 --end-block 10100000
  ammledger index --memory --start-block 10000835 --follow`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIndex(cmd, opts)
		},
	}

	cmd.Flags().Uint64Var(&opts.StartBlock, "start-block", 0, "first block to index")
	cmd.Flags().Uint64Var(&opts.EndBlock, "end-block", 0, "last block to index (0 = chain head)")
	cmd.Flags().Uint64Var(&opts.BatchSize, "batch-size", 0, "blocks per window")
	cmd.Flags().BoolVar(&opts.Follow, "follow", false, "keep polling the chain head after catching up")
	cmd.Flags().BoolVar(&opts.ResolveSenders, "resolve-senders", false, "fill transaction from/to (one extra RPC call per transaction)")
	cmd.Flags().BoolVar(&opts.Memory, "memory", false, "use in-memory storage instead of PostgreSQL")
	cmd.Flags().BoolVar(&opts.Migrate, "migrate", false, "apply migrations before indexing")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "Prometheus metrics HTTP address (empty to disable)")

	return cmd
}

func (o *indexOptions) apply(cmd *cobra.Command) {
	flags := cmd.Flags()
	cfg := o.cfg
	if flags.Changed("start-block") {
		cfg.StartBlock = o.StartBlock
	}
	if flags.Changed("end-block") {
		cfg.EndBlock = o.EndBlock
	}
	if flags.Changed("batch-size") {
		cfg.BatchSize = o.BatchSize
	}
	if flags.Changed("resolve-senders") {
		cfg.ResolveSenders = o.ResolveSenders
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = o.MetricsAddr
	}
}

func runIndex(cmd *cobra.Command, opts *indexOptions) error {
	ctx := cmd.Context()
	opts.apply(cmd)
	cfg := opts.cfg
	if err := cfg.ValidateIndex(); err != nil {
		return err
	}

	log := opts.logger("index")
	metrics := observability.NewMetrics("", prometheus.DefaultRegisterer)

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, log)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	var (
		uow      storage.UnitOfWork
		pairs    storage.PairStore
		progress storage.ProgressStore
	)
	if opts.Memory || cfg.PostgresDSN == "" {
		db := memory.NewDB()
		uow, pairs, progress = db, db.Stores().Pairs, memory.NewProgressStore()
		log.Warn().Msg("using in-memory storage; the ledger is lost on exit")
	} else {
		pool, err := postgres.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer pool.Close()

		if opts.Migrate {
			applied, err := migrations.RunPostgresMigrations(ctx, pool)
			if err != nil {
				return err
			}
			log.Info().Strs("applied", applied).Msg("postgres migrations complete")
		}
		db := postgres.NewDB(pool)
		uow, pairs, progress = db, db.Stores().Pairs, db.Progress()
	}

	procOpts := []processor.Option{
		processor.WithLogger(log),
		processor.WithMetrics(metrics),
		processor.WithHaltOnInvariant(cfg.HaltOnInvariant),
		processor.WithMetadataReader(chain.NewMetadataReader(client, chain.MetadataOptions{
			Logger:  &log,
			Metrics: metrics,
		})),
	}
	if cfg.ClickhouseDSN != "" {
		conn, err := openClickhouse(ctx, cfg.ClickhouseDSN, opts.Migrate)
		if err != nil {
			return err
		}
		defer conn.Close()
		procOpts = append(procOpts, processor.WithSnapshotSink(chstore.NewSnapshotSink(conn)))
	}

	source := chain.NewLogSource(chain.LogSourceOptions{
		Client:         client,
		Factory:        cfg.FactoryAddress,
		ResolveSenders: cfg.ResolveSenders,
		Logger:         &log,
		Metrics:        metrics,
	})

	runner := indexer.NewRunner(indexer.RunnerOptions{
		Source:     source,
		Processor:  processor.New(uow, procOpts...),
		Pairs:      pairs,
		Progress:   progress,
		StartBlock: cfg.StartBlock,
		EndBlock:   cfg.EndBlock,
		BatchSize:  cfg.BatchSize,
		Follow:     opts.Follow,
		Logger:     &log,
	})

	result, err := runner.Run(ctx)
	if errors.Is(err, context.Canceled) {
		log.Info().Uint64("last_block", result.ToBlock).Msg("indexing interrupted")
		return nil
	}
	return err
}

func openClickhouse(ctx context.Context, dsn string, migrate bool) (*chstore.Conn, error) {
	if migrate {
		return migrations.RunClickhouseMigrations(ctx, dsn)
	}
	return chstore.NewConn(ctx, dsn)
}

func startMetricsServer(addr string, log zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info().Str("addr", addr).Msg("starting metrics server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	return srv
}
