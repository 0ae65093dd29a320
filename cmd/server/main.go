// Package main runs the portfolio service:
// - HTTP API (portfolio metrics, ledger, invest/redeem streams)
// - Lifecycle engine bound to the configured wallet
// - Scheduled reconciliation and metrics snapshots
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"rwa-portfolio/internal/api"
	"rwa-portfolio/internal/chain"
	"rwa-portfolio/internal/config"
	"rwa-portfolio/internal/ledger"
	"rwa-portfolio/internal/lifecycle"
	"rwa-portfolio/internal/logger"
	"rwa-portfolio/internal/portfolio"
	"rwa-portfolio/internal/reconcile"
	"rwa-portfolio/internal/scheduler"
)

// shutdownTimeout bounds graceful shutdown after the first signal.
const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	// Flags default to env values.
	port := flag.Int("port", cfg.Port, "HTTP listen port")
	rpcURL := flag.String("rpc-url", cfg.RPCURL, "EVM JSON-RPC HTTP endpoint")
	wsURL := flag.String("ws-url", cfg.WSURL, "EVM JSON-RPC WebSocket endpoint (optional, for newHeads)")
	wallet := flag.String("wallet", cfg.WalletAddress, "Wallet address transactions are sent from")
	postgresDSN := flag.String("postgres-dsn", cfg.PostgresDSN, "PostgreSQL connection string (empty for in-memory)")
	clickhouseDSN := flag.String("clickhouse-dsn", cfg.ClickhouseDSN, "ClickHouse connection string (empty for in-memory)")
	assetsFile := flag.String("assets-file", cfg.AssetsFile, "JSON asset catalog to load at startup")
	dryRun := flag.Bool("dry-run", cfg.DryRun, "Use an in-memory chain with a demo catalog")
	logLevel := flag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.Port = *port
	cfg.RPCURL = *rpcURL
	cfg.WSURL = *wsURL
	cfg.WalletAddress = strings.ToLower(strings.TrimSpace(*wallet))
	cfg.PostgresDSN = *postgresDSN
	cfg.ClickhouseDSN = *clickhouseDSN
	cfg.AssetsFile = *assetsFile
	cfg.DryRun = *dryRun
	cfg.LogLevel = *logLevel

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("initiating graceful shutdown")
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			log.Warn().Str("signal", sig.String()).Msg("second signal, forcing immediate shutdown")
			os.Exit(1)
		case <-time.After(shutdownTimeout):
			log.Error().Dur("timeout", shutdownTimeout).Msg("graceful shutdown timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, log)
	close(done)
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("server error")
	}
	log.Info().Msg("shutdown complete")
}

// run wires every component and blocks until ctx is cancelled or the HTTP
// server fails.
func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := createStores(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("create stores: %w", err)
	}
	defer st.cleanup()

	if err := seedCatalog(ctx, st.catalog, cfg, log); err != nil {
		return err
	}

	gw, closeChain, err := createGateway(ctx, cfg, st.catalog, log)
	if err != nil {
		return fmt.Errorf("create chain gateway: %w", err)
	}
	defer closeChain()

	registry := chain.NewRegistry(cfg.ContractAddresses, cfg.PaymentTokens)
	reconciler := reconcile.New(gw, registry, st.catalog, st.portfolios, reconcile.Config{
		Decimals:    cfg.TokenDecimals,
		Concurrency: cfg.ReconcileConcurrency,
	}, log)
	recorder := ledger.New(st.ledger, ledger.DefaultConfig(), log)

	engine, err := lifecycle.NewEngine(lifecycle.Deps{
		Chain:    gw,
		Registry: registry,
		Catalog:  st.catalog,
		Recorder: recorder,
		Holdings: reconciler,
	}, lifecycle.Config{
		Decimals:       cfg.TokenDecimals,
		ConfirmTimeout: cfg.ConfirmTimeout,
	}, log)
	if err != nil {
		return fmt.Errorf("create lifecycle engine: %w", err)
	}

	service := portfolio.NewService(st.catalog, st.portfolios)

	sched := scheduler.New(log)
	owners := []string{gw.Account()}
	if cfg.ReconcileSchedule != "" {
		job := scheduler.NewReconcileJob(st.portfolios, reconciler, owners, cfg.ReconcileConcurrency, log)
		if err := sched.AddJob(cfg.ReconcileSchedule, job); err != nil {
			return err
		}
		// Warm the cache so the first portfolio read reflects the chain.
		if err := sched.RunNow(job); err != nil {
			log.Warn().Err(err).Msg("initial reconciliation failed")
		}
	}
	if cfg.SnapshotSchedule != "" {
		job := scheduler.NewSnapshotJob(st.portfolios, service, st.snapshots, owners, log)
		if err := sched.AddJob(cfg.SnapshotSchedule, job); err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	srv, err := api.New(api.Config{
		Addr:        cfg.Addr(),
		CORSOrigins: cfg.CORSOrigins,
		Log:         log,
	}, api.Deps{
		Portfolio: service,
		Refresher: reconciler,
		Recorder:  recorder,
		Ledger:    st.ledger,
		Catalog:   st.catalog,
		Snapshots: st.snapshots,
		Lifecycle: engine,
	})
	if err != nil {
		return fmt.Errorf("create api server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info().
		Str("wallet", gw.Account()).
		Bool("dry_run", cfg.DryRun).
		Str("addr", cfg.Addr()).
		Msg("service started")

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout/2)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if n := engine.InFlight(); n > 0 {
		log.Warn().Int("in_flight", n).Msg("exiting with lifecycle runs in flight")
	}
	return ctx.Err()
}
