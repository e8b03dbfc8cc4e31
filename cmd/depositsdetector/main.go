package main

import (
	"DepositsDetector/internal/catalog"
	"DepositsDetector/internal/core"
	"DepositsDetector/internal/grpcutil"
	"DepositsDetector/internal/ingestion"
	"DepositsDetector/internal/ledger"
	"DepositsDetector/internal/observability"
	"DepositsDetector/internal/persistence"
	"DepositsDetector/internal/server"
	"DepositsDetector/migrations"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// detectorStore is the durable state of the detector: watermarks and
// deposit operation ids.
type detectorStore interface {
	core.CursorStore
	core.OperationIDStore
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("INFO: deposits detector starting...")

	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	log.Println("INFO: deposits detector stopped")
}

func run(ctx context.Context, cfg Config) error {
	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	healthChecker := observability.NewHealthChecker("store", "loops")

	// --- PostgreSQL: asset catalog, and state when DD_STORE=postgres ---
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Println("INFO: Connected to PostgreSQL")

	if err := persistence.NewMigrator(db, migrationFiles(cfg)).Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	store, closeStore, err := openStore(cfg, db)
	if err != nil {
		return err
	}
	defer closeStore()
	healthChecker.SetReady("store", true)
	log.Printf("INFO: Using %s store", cfg.Store)

	assets := catalog.NewCached(catalog.NewPostgresSource(db), cfg.AssetCacheTTL)

	// --- gRPC upstreams ---
	feedConn, err := grpcutil.Dial(cfg.FeedAddr)
	if err != nil {
		return err
	}
	defer feedConn.Close()
	feed := ingestion.NewFeedClient(feedConn)

	ledgerConn, err := grpcutil.Dial(cfg.LedgerAddr)
	if err != nil {
		return err
	}
	defer ledgerConn.Close()
	cashier := ledger.NewCashierClient(ledgerConn, ledger.CashierClientConfig{
		CallTimeout: cfg.LedgerCallTimeout,
		RPS:         cfg.LedgerRPS,
		Metrics:     metrics,
	}, observability.NewLogger("cashier"))
	gateway := ledger.NewGateway(cashier)

	// --- NATS JetStream: completion events ---
	nc, js, err := ingestion.ConnectNATS(cfg.NATSURL)
	if err != nil {
		return err
	}
	defer nc.Close()
	log.Println("INFO: Connected to NATS JetStream")

	if err := ingestion.EnsureEventsStream(ctx, js, cfg.EventsSubject); err != nil {
		return fmt.Errorf("ensure events stream: %w", err)
	}
	bus := ingestion.NewNATSEventBus(js, cfg.EventsSubject)

	// --- Pipeline ---
	keys := core.NewKeyRegistry(cfg.KeyCacheCapacity, store, metrics)
	processor := core.NewProcessor(keys, gateway, bus, observability.NewLogger("processor"), metrics)
	reprocessor := core.NewReprocessor(assets, feed, processor, observability.NewLogger("reprocess"), metrics)

	srv, err := server.New(cfg.GRPCAddr, cfg.HTTPAddr, &server.Deps{
		Reprocessor:      reprocessor,
		DefaultAccountID: cfg.BrokerAccountIDs[0],
		HealthChecker:    healthChecker,
		Logger:           observability.NewLogger("maintenance"),
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, accountID := range cfg.BrokerAccountIDs {
		loopCfg := core.DefaultLoopConfig(accountID)
		loopCfg.Backoff.Base = cfg.BackoffBase
		loopCfg.Backoff.Cap = cfg.BackoffCap
		loopCfg.IdleDelay = cfg.IdleDelay
		loopCfg.RateLimitCooldown = cfg.RateLimitCooldown

		loop := core.NewLoop(loopCfg, store, assets, feed, processor, observability.NewLogger("loop"), metrics)
		g.Go(func() error {
			return loop.Run(gctx)
		})
	}
	healthChecker.SetReady("loops", true)
	log.Printf("INFO: Started %d ingestion loop(s) for accounts %v", len(cfg.BrokerAccountIDs), cfg.BrokerAccountIDs)

	g.Go(func() error {
		return srv.StartGRPC(gctx)
	})
	g.Go(func() error {
		return srv.StartHTTP(gctx)
	})
	g.Go(func() error {
		return serveMetrics(gctx, cfg.MetricsAddr)
	})

	err = g.Wait()
	healthChecker.SetReady("loops", false)
	return err
}

func openStore(cfg Config, db *sql.DB) (detectorStore, func(), error) {
	switch cfg.Store {
	case "badger":
		bs, err := persistence.OpenBadgerStore(cfg.BadgerDir, observability.NewLogger("badger"))
		if err != nil {
			return nil, nil, fmt.Errorf("open badger store: %w", err)
		}
		return bs, func() {
			if err := bs.Close(); err != nil {
				log.Printf("ERROR: close badger store: %v", err)
			}
		}, nil
	case "memory":
		log.Println("WARN: memory store selected, watermarks and operation ids do not survive a restart")
		return persistence.NewMemoryStore(), func() {}, nil
	default:
		return persistence.NewPostgresStore(db), func() {}, nil
	}
}

func migrationFiles(cfg Config) fs.FS {
	if cfg.MigrationsDir != "" {
		return os.DirFS(cfg.MigrationsDir)
	}
	return migrations.FS
}

func serveMetrics(ctx context.Context, addr string) error {
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:              addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsServer.Shutdown(shutCtx)
	}()

	log.Printf("INFO: Metrics server listening on %s/metrics", addr)
	if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
