package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"VaultLedger/internal/core"
	"VaultLedger/internal/event"
	"VaultLedger/internal/ingestion"
	"VaultLedger/internal/observability"
	"VaultLedger/internal/persistence"
	"VaultLedger/internal/projection"
	"VaultLedger/internal/query"
	"VaultLedger/internal/server"
	"VaultLedger/internal/state"
	"VaultLedger/migrations"
)

func main() {
	logger := observability.NewLogger("vaultledger")

	cfg, err := LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("exited with error")
		os.Exit(1)
	}
	logger.Info().Msg("shutdown complete")
}

func run(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	genesis, err := state.LoadGenesis(cfg.GenesisPath)
	if err != nil {
		return fmt.Errorf("load genesis: %w", err)
	}

	// --- Postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("postgres open: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping: %w", err)
	}
	if err := persistence.NewMigrator(db, migrations.FS, observability.NewLogger("migrator")).Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	// --- Observability ---
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	health := observability.NewHealthChecker()
	health.AddCheck("postgres", db.PingContext)

	// --- Core ---
	// Persistence blocks the core; projections drop when behind.
	coreOut := make(chan core.CoreOutput, cfg.PersistChanSize)
	projectionCh := make(chan core.CoreOutput, cfg.ProjectionChanSize)
	persistCh := make(chan core.CoreOutput, cfg.PersistChanSize)
	publishCh := make(chan core.CoreOutput, cfg.PublishChanSize)

	coreLogger := observability.NewLogger("core")
	c, err := core.NewDeterministicCore(genesis, core.Options{
		PersistChan:     coreOut,
		ProjectionChan:  projectionCh,
		DBChecker:       persistence.NewPostgresIdempotencyChecker(db),
		Metrics:         metrics,
		Logger:          &coreLogger,
		LRUCapacity:     cfg.IdempotencyLRUCapacity,
		CheckpointEvery: cfg.CheckpointEvery,
	})
	if err != nil {
		return fmt.Errorf("build core: %w", err)
	}

	store := persistence.NewCheckpointStore(db)
	history := projection.NewHarvestHistory(cfg.HarvestHistorySize)
	projWorker := projection.NewProjectionWorker(db, projectionCh, history, metrics, observability.NewLogger("projection"))

	// --- Recovery: replay the command log from genesis ---
	recoveryLogger := observability.NewLogger("recovery")
	err = persistence.Recover(ctx, store, c, persistence.RecoveryOptions{
		WarmKeys: cfg.IdempotencyLRUCapacity,
		OnReplayed: func(env *event.EventEnvelope) {
			if err := projWorker.Warm(env); err != nil {
				recoveryLogger.Warn().Err(err).Int64("sequence", env.Sequence).Msg("harvest history warm failed")
			}
		},
	}, metrics, recoveryLogger)
	if err != nil {
		return fmt.Errorf("recovery: %w", err)
	}

	// --- NATS ---
	natsLogger := observability.NewLogger("nats")
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, natsLogger)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	defer nc.Close()
	if err := ingestion.EnsureStreams(ctx, js, natsLogger); err != nil {
		return fmt.Errorf("ensure streams: %w", err)
	}

	// --- Workers: drain core output until it closes ---
	ingressCtx, stopIngress := context.WithCancel(ctx)
	defer stopIngress()

	workers, workCtx := errgroup.WithContext(context.Background())
	supervise := func(name string, fn func() error) {
		workers.Go(func() error {
			err := fn()
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("worker", name).Msg("worker failed")
				stopIngress()
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}

	persistWorker := persistence.NewPersistenceWorker(db, persistCh, cfg.PersistBatchSize, cfg.PersistFlushTimeout, metrics, observability.NewLogger("persistence"))
	publisher := ingestion.NewOutboundPublisher(js, publishCh, observability.NewLogger("publisher"))

	supervise("fan-out", func() error { return fanOut(workCtx, coreOut, persistCh, publishCh, metrics) })
	supervise("persistence", func() error { return persistWorker.Run(workCtx) })
	supervise("publisher", func() error { return publisher.Run(workCtx) })
	supervise("projection", func() error { return projWorker.Run(workCtx) })
	samplerCtx, stopSampler := context.WithCancel(workCtx)
	supervise("channel-sampler", func() error {
		return sampleChannels(samplerCtx, metrics, 5*time.Second,
			chanGauge("persist", coreOut),
			chanGauge("projection", projectionCh),
			chanGauge("publish", publishCh),
		)
	})

	// --- Ingress: NATS commands and the gRPC/HTTP surface ---
	rawCh := make(chan ingestion.RawEvent, cfg.CommandChanSize)
	subscriber := ingestion.NewNATSSubscriber(js, rawCh, natsLogger)
	if err := subscriber.Subscribe(ingressCtx, ingestion.DefaultSubscriberConfig()); err != nil {
		stopIngress()
		return errors.Join(fmt.Errorf("nats subscribe: %w", err), shutdownWorkers(workers, stopSampler, coreOut, projectionCh))
	}
	processor := ingestion.NewProcessor(c, rawCh, "nats", metrics, observability.NewLogger("processor"))

	deps := &server.ServerDeps{
		Core:          c,
		QueryService:  query.NewQueryService(c, db, history),
		IngestService: ingestion.NewGRPCIngestService(c, metrics),
		Store:         store,
		Rebuild: func(ctx context.Context) (int64, error) {
			return projWorker.Rebuild(ctx, store)
		},
		ProjectionSeq:  projWorker.LastSequence,
		HealthChecker:  health,
		Metrics:        metrics,
		Logger:         observability.NewLogger("server"),
		RequestTimeout: cfg.RequestTimeout,
	}
	if cfg.MetricsAddr == "" {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	srv := server.NewGRPCServer(cfg.GRPCAddr, cfg.HTTPAddr, deps)

	ingress, gctx := errgroup.WithContext(ingressCtx)
	ingress.Go(func() error { return ignoreCanceled(processor.Run(gctx)) })
	ingress.Go(func() error { return srv.StartGRPC(gctx) })
	ingress.Go(func() error { return srv.StartHTTPGateway(gctx) })
	if cfg.MetricsAddr != "" {
		ingress.Go(func() error { return serveMetrics(gctx, cfg.MetricsAddr, logger) })
	}

	srv.SetServing(true)
	health.SetReady(true)
	logger.Info().
		Int64("sequence", c.GetSequence()).
		Str("grpc", cfg.GRPCAddr).
		Str("http", cfg.HTTPAddr).
		Str("metrics", cfg.MetricsAddr).
		Msg("VaultLedger ready")

	ingressErr := ingress.Wait()

	// --- Graceful shutdown: stop intake, then drain every output ---
	health.SetReady(false)
	srv.SetServing(false)
	subscriber.Stop()

	return errors.Join(ingressErr, shutdownWorkers(workers, stopSampler, coreOut, projectionCh))
}

// shutdownWorkers closes the core outputs once nothing can submit commands
// and waits for the workers to drain them.
func shutdownWorkers(workers *errgroup.Group, stopSampler context.CancelFunc, coreOut, projectionCh chan core.CoreOutput) error {
	close(coreOut)
	close(projectionCh)
	stopSampler()
	return workers.Wait()
}

func serveMetrics(ctx context.Context, addr string, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	stop := context.AfterFunc(ctx, func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	})
	defer stop()

	logger.Info().Str("addr", addr).Msg("metrics server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
