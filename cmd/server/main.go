package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/solscope/service/config"
	"github.com/brojonat/solscope/service/db"
	"github.com/brojonat/solscope/service/metrics"
	natspkg "github.com/brojonat/solscope/service/nats"
	"github.com/brojonat/solscope/service/server"
	"github.com/brojonat/solscope/service/solana"
	"github.com/brojonat/solscope/service/temporal"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
		"default_network", cfg.DefaultNetwork,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Prometheus metrics collector, served on /metrics
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// One decoder is shared by every network client
	decoder := solana.NewDecoder(metricsCollector, logger.With("component", "decoder"))

	inspectors := make(map[solana.Network]server.Inspector, len(solana.Networks))
	for _, network := range solana.Networks {
		endpoint, err := solana.SelectRandomEndpoint(cfg.RPCEndpoints(network))
		if err != nil {
			logger.Error("invalid RPC configuration", "network", network, "error", err)
			os.Exit(1)
		}
		label := solana.EndpointLabel(endpoint)
		inspectors[network] = solana.NewClient(
			solana.NewRPCClient(endpoint),
			decoder,
			label,
			metricsCollector,
			logger.With("component", "solana", "network", network),
			solana.WithRecentSignatureLimit(cfg.RecentSignatureLimit),
			solana.WithRequestTimeout(cfg.RPCTimeout),
		)
		logger.Info("initialized solana RPC client",
			"network", network,
			"endpoint", label,
			"total_endpoints", len(cfg.RPCEndpoints(network)),
		)
	}

	opts := server.Options{Metrics: metricsCollector}

	// Optional persistence
	if cfg.DatabaseURL != "" {
		dbPool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer dbPool.Close()

		if err := dbPool.Ping(ctx); err != nil {
			logger.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		store := db.NewStore(dbPool, metricsCollector)
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		opts.Store = store
		logger.Info("connected to database")
	} else {
		logger.Info("DATABASE_URL not set, persistence disabled")
	}

	// Optional event publishing
	if cfg.NATSURL != "" {
		publisher, err := natspkg.NewPublisher(cfg.NATSURL, metricsCollector, logger.With("component", "nats"))
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		opts.Publisher = publisher
	} else {
		logger.Info("NATS_URL not set, event publishing disabled")
	}

	// Batch inspections are optional: the API still serves single inspections
	// when Temporal is unreachable.
	temporalClient, err := temporal.NewClient(
		cfg.TemporalHost,
		cfg.TemporalNamespace,
		cfg.TemporalTaskQueue,
		metricsCollector,
		logger.With("component", "temporal"),
	)
	if err != nil {
		logger.Warn("temporal unavailable, batch endpoints disabled", "error", err)
	} else {
		defer temporalClient.Close()
		opts.Batches = temporalClient
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, cfg.DefaultNetwork, inspectors, decoder, opts, logger)

	logger.Info("server initialized, all dependencies ready",
		"persistence", opts.Store != nil,
		"publishing", opts.Publisher != nil,
		"batches", opts.Batches != nil,
		"temporal_host", cfg.TemporalHost,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
