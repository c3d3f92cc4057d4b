// Package main is the entry point for the Tabula workflow engine server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tabulahq/tabula/internal/config"
	"github.com/tabulahq/tabula/internal/definition"
	"github.com/tabulahq/tabula/internal/engine"
	"github.com/tabulahq/tabula/internal/observability"
	"github.com/tabulahq/tabula/internal/transport"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	// Step 2: Load configuration.
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "tabula", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Load table definitions, validate, build registry.
	loader := definition.NewLoader()
	defs, err := loader.LoadAll(cfg.Definitions.Directories)
	if err != nil {
		logger.Error("definition loading failed", zap.Error(err))
		return 1
	}

	validator := definition.NewValidator()
	verrs := validator.Validate(defs)
	if len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("definition validation error", zap.String("error", ve.Error()))
		}
		logger.Error("definition validation failed", zap.Int("errors", len(verrs)))
		return 1
	}

	registry := definition.NewRegistry(defs)
	metrics.SetDefinitionsLoaded(float64(len(defs)))
	metrics.RecordDefinitionReload("success")

	// Step 5: Initialize the record store.
	store, storeCloser, err := buildStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Error("store initialization failed", zap.Error(err))
		return 1
	}

	// Step 6: Build the workflow engine.
	eng := engine.NewEngine(registry, store)

	// Step 7: Build the HTTP router.
	jwks := transport.NewJWKSClient(cfg.Identity.JWKSURL, cfg.Identity.JWKSCacheTTL.Std())

	readinessChecks := observability.ReadinessChecks{
		DefinitionsLoaded: func() bool { return len(registry.Tables()) > 0 },
	}
	if hc, ok := store.(observability.HealthChecker); ok {
		readinessChecks.RecordStore = hc
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:         cfg,
		Authenticate:   transport.JWTAuthenticator(cfg.Identity, jwks),
		Engine:         eng,
		Registry:       registry,
		Metrics:        metrics,
		Logger:         logger,
		Health:         observability.HandleHealth(),
		Ready:          observability.HandleReady(readinessChecks),
		MetricsHandler: observability.Handler(),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	// Step 8: Start the background escalation scanner.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	go runEscalationScanner(bgCtx, eng, registry, metrics, cfg.Escalations.ScanInterval.Std(), logger)

	// Step 9: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("tables", len(defs)),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout.Std()
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel background tasks and close the store.
	bgCancel()
	if storeCloser != nil {
		storeCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildStore creates the record store based on config.
func buildStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (engine.Store, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory record store")
		return engine.NewMemoryStore(), nil, nil
	case "postgres", "":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("record store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("record store: parse DSN: %w", err)
		}
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime.Std()

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("record store: connect: %w", err)
		}

		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("record store: ping: %w", err)
		}

		return engine.NewPgStore(pool), pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}

// runEscalationScanner periodically scans every configured table for records
// stuck past an escalation threshold. Detections are logged and exported as
// metrics; the scanner never mutates records.
func runEscalationScanner(ctx context.Context, eng *engine.Engine, registry *definition.Registry, metrics *observability.Metrics, interval time.Duration, logger *zap.Logger) {
	if interval == 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, table := range registry.Tables() {
				start := time.Now()
				escalations, err := eng.CheckEscalations(ctx, table, time.Now().UTC())
				if err != nil {
					metrics.RecordEscalationScan(table, "failure", 0, time.Since(start))
					logger.Error("escalation scan failed",
						zap.String("table", table),
						zap.Error(err),
					)
					continue
				}
				metrics.RecordEscalationScan(table, "success", len(escalations), time.Since(start))
				for _, esc := range escalations {
					logger.Warn("escalation detected",
						zap.String("table", table),
						zap.String("record_id", esc.RecordID),
						zap.String("state", esc.State),
						zap.String("action", esc.Action),
						zap.Duration("elapsed", esc.Elapsed),
					)
				}
			}
		}
	}
}
