// IDE Server
//
// Features:
// - Virtual file store with PostgreSQL or in-memory backend
// - Automatic fallback to in-memory storage when the database is unreachable
// - Virtual terminal with per-session working directories
// - SSE real-time change events
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/muzaffar401/IDE/internal/api"
	"github.com/muzaffar401/IDE/internal/config"
	"github.com/muzaffar401/IDE/internal/events"
	"github.com/muzaffar401/IDE/internal/logging"
	"github.com/muzaffar401/IDE/internal/metrics"
	"github.com/muzaffar401/IDE/internal/session"
	"github.com/muzaffar401/IDE/internal/shell"
	"github.com/muzaffar401/IDE/internal/vfs"
	"github.com/muzaffar401/IDE/internal/vfs/memory"
	"github.com/muzaffar401/IDE/internal/vfs/postgres"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("IDE Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Pick the primary storage backend. An empty DATABASE_URL means pure
	// in-memory mode with no fallback chain.
	var (
		primary  vfs.Backend
		fallback func() vfs.Backend
		pgStore  *postgres.Backend
	)
	if cfg.DatabaseURL != "" {
		logging.Info("connecting to PostgreSQL...")
		pg, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			logging.Warn("database unavailable, starting on in-memory storage",
				zap.Error(err))
			metrics.RecordStorageFallback()
			primary = memory.New()
		} else {
			pgStore = pg
			primary = pg
			fallback = func() vfs.Backend { return memory.New() }
		}
	} else {
		logging.Info("no DATABASE_URL configured, using in-memory storage")
		primary = memory.New()
	}

	store, err := vfs.Open(ctx, primary, fallback)
	if err != nil {
		logging.Fatal("store init failed", zap.Error(err))
	}
	defer store.Close()
	logging.Info("file store ready", zap.String("backend", store.BackendName()))

	// Initialize SSE broadcaster
	broadcaster := events.NewBroadcaster()

	// Initialize terminal sessions and shell interpreter
	registry := session.NewRegistry()
	interpreter := shell.New(store, registry, broadcaster)

	// Create API server
	srv := api.NewServer(store, registry, interpreter, broadcaster, cfg.MaxContentSize)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	// Start HTTP server
	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logging.Error("server shutdown error", zap.Error(err))
		}
		metricsServer.Close()
	}()

	// Start periodic metrics update
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := store.Count(ctx); err == nil {
					metrics.SetStoreRecordCount(int64(n))
				}
				metrics.SetTerminalSessions(int64(registry.Count()))
				if pgStore != nil && store.BackendName() == "postgres" {
					pgStore.UpdateConnectionMetrics()
				}
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
