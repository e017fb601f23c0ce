/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the referral reward ledger server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults -> TOML file -> env -> flags)
  2. Build zap logger and Prometheus registry
  3. Open the store (memory or SQLite) and seed reward definitions
  4. Create the ledger manager and API handler
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config     Optional TOML config file
  -port       HTTP server port (default: 8080)
  -driver     Store driver: memory | sqlite (default: memory)
  -db         SQLite database path (default: ledger.db)
              Use ":memory:" for an in-memory SQLite database
  -log-level  debug | info | warn | error

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Durable ledger
  ./server -driver=sqlite -db="./data/ledger.db"

  # Throwaway in-process ledger on a different port
  ./server -port=3000

SEE ALSO:
  - config/config.go: Configuration layering
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/warp/referral-ledger/api"
	"github.com/warp/referral-ledger/config"
	"github.com/warp/referral-ledger/ledger"
	memstore "github.com/warp/referral-ledger/ledger/store"
	"github.com/warp/referral-ledger/observability"
	"github.com/warp/referral-ledger/store/sqlite"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "TOML config file")
	port := flag.Int("port", 0, "HTTP server port")
	driver := flag.String("driver", "", "Store driver (memory|sqlite)")
	dbPath := flag.String("db", "", "SQLite database path")
	logLevel := flag.String("log-level", "", "Log level")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Server.Port = *port
		case "driver":
			cfg.Store.Driver = *driver
		case "db":
			cfg.Store.Path = *dbPath
		case "log-level":
			cfg.Log.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := observability.NewLogger(observability.LogConfig{
		ServiceName: "referral-ledger",
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Initialize store
	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer closeStore()

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	manager := ledger.NewManager(store,
		ledger.WithLogger(logger),
		ledger.WithRecorder(metrics),
		ledger.WithDedupPolicy(ledger.DedupPolicy(cfg.Ledger.DedupPolicy)),
		ledger.WithDefaultCurrency(cfg.Ledger.DefaultCurrency),
	)

	handler := api.NewHandler(manager, logger)
	router := api.NewRouter(handler, api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("driver", cfg.Store.Driver),
			zap.String("dedup_policy", cfg.Ledger.DedupPolicy),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func openStore(cfg config.Config, logger *zap.Logger) (ledger.TxStore, func(), error) {
	switch strings.ToLower(cfg.Store.Driver) {
	case config.DriverSQLite:
		s, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Ledger.SeedDefinitions {
			if err := s.SeedDefinitions(context.Background(), ledger.DefaultDefinitions()...); err != nil {
				s.Close()
				return nil, nil, fmt.Errorf("seed definitions: %w", err)
			}
		}
		logger.Info("opened sqlite store", zap.String("path", cfg.Store.Path))
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("closing store", zap.Error(err))
			}
		}, nil
	default:
		if cfg.Ledger.SeedDefinitions {
			return memstore.NewSeededMemory(), func() {}, nil
		}
		return memstore.NewMemory(), func() {}, nil
	}
}
