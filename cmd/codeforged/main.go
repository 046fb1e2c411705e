// Command codeforged is the process entry point: it loads configuration,
// wires every request-path component together, and serves HTTP until an
// interrupt or terminate signal triggers a graceful shutdown.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codeforge/internal/api"
	"codeforge/internal/audit"
	"codeforge/internal/config"
	"codeforge/internal/depcache"
	"codeforge/internal/logging"
	"codeforge/internal/metrics"
	"codeforge/internal/orchestrator"
	"codeforge/internal/resolver"
	"codeforge/internal/sandbox"
	"codeforge/internal/workspace"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	zapCfg := zap.NewProductionConfig()
	if cfg.Debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := logging.Init(cfg.ExecutionDir, cfg.Debug, cfg.LogLevel, cfg.LogJSON); err != nil {
		logger.Warn("file logging init failed, continuing without it", zap.Error(err))
	}
	defer logging.CloseAll()

	if err := os.MkdirAll(cfg.CacheDir, 0o755); err != nil {
		logger.Fatal("failed to create cache directory", zap.Error(err))
	}
	if err := os.MkdirAll(cfg.ExecutionDir, 0o755); err != nil {
		logger.Fatal("failed to create execution directory", zap.Error(err))
	}

	cache := depcache.New(cfg.CacheDir, cfg.CacheSizeLimitBytes)
	if err := cache.Sweep(); err != nil {
		logger.Warn("startup cache sweep failed", zap.Error(err))
	}

	if cfg.MetricsEnabled {
		metrics.Init()
	}

	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		logger.Fatal("failed to open audit store", zap.Error(err))
	}
	defer auditStore.Close()

	res := resolver.New(cache)
	alloc := workspace.New(cfg.ExecutionDir, cfg.ExecutionsDataPruneMaxCount)
	runner := sandbox.New(cfg.DefaultTimeoutMs)
	orch := orchestrator.New(cache, res, alloc, runner, cfg.DefaultTimeoutMs, cfg.ExecutionsDataPruneMaxCount)

	server := api.NewServer(orch, auditStore, api.Config{
		SecretKey:        cfg.SecretKey,
		DefaultTimeoutMs: cfg.DefaultTimeoutMs,
		MetricsEnabled:   cfg.MetricsEnabled,
		Version:          version,
	})

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Mux(),
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		logger.Error("server failed", zap.Error(err))
		os.Exit(1)
	case sig := <-sigChan:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown failed, forcing close", zap.Error(err))
			httpServer.Close()
		}
	}
}
