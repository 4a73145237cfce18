package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/skuindex/internal/app"
	"github.com/kailas-cloud/skuindex/internal/config"
	logpkg "github.com/kailas-cloud/skuindex/internal/logger"
	"github.com/kailas-cloud/skuindex/internal/metrics"
	asynqTransport "github.com/kailas-cloud/skuindex/internal/transport/asynq"
	chiTransport "github.com/kailas-cloud/skuindex/internal/transport/chi"
	"github.com/kailas-cloud/skuindex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting skuindex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("events_enabled", cfg.Events.Enabled),
	)

	ctx := context.Background()
	a, err := app.New(ctx, &cfg, logger)
	if err != nil {
		logger.Fatal("Failed to build application", zap.Error(err))
	}
	defer a.Close()

	// Relay drains the outbox on a schedule and on every write.
	if err := a.Relay.Start(); err != nil {
		logger.Fatal("Failed to start outbox relay", zap.Error(err))
	}

	var consumer *asynqTransport.Consumer
	if cfg.Events.Enabled {
		handler := asynqTransport.NewHandler(a.Sync, config.Millis(cfg.Timeouts.AsyncMS), logger)
		consumer = asynqTransport.NewConsumer(asynqTransport.Config{
			RedisAddr:   cfg.Events.RedisAddr,
			Password:    cfg.Events.Password,
			Concurrency: cfg.Events.Concurrency,
			Queue:       cfg.Events.Queue,
		}, handler, logger)
		if err := consumer.Start(); err != nil {
			logger.Fatal("Failed to start event consumer", zap.Error(err))
		}
	}

	server := chiTransport.NewServer(a.Parser, a.Search, a.Legacy, a.Catalog, a.SKUs, a.Relay, a.Health, logger).
		WithRateLimit(cfg.Search.RateLimitRPS, cfg.Search.Burst).
		WithAPIKeys(cfg.Auth.APIKeys)

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiTransport.RequestLogger(logger))
	r.Use(chiTransport.Recoverer(logger))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  config.Seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout: config.Seconds(cfg.HTTP.WriteTimeoutSec),
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Seconds(cfg.HTTP.ShutdownSec))
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}
	if consumer != nil {
		consumer.Shutdown()
	}

	logger.Info("Server stopped gracefully")
}
