package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixeltracker/capi-relay/internal/api"
	"github.com/pixeltracker/capi-relay/internal/capi"
	"github.com/pixeltracker/capi-relay/internal/config"
	"github.com/pixeltracker/capi-relay/internal/queue"
	"github.com/pixeltracker/capi-relay/internal/webhook"
	"github.com/pixeltracker/capi-relay/internal/worker"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	redisClient, err := queue.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	logger.Info("connected to redis")

	q := queue.New(redisClient, logger)

	// Requeue jobs a previous run claimed but never finished
	recovered, err := q.RecoverStale(ctx)
	if err != nil {
		logger.Error("failed to recover stale jobs", "error", err)
		os.Exit(1)
	}
	if recovered > 0 {
		logger.Info("requeued stale jobs from previous run", "count", recovered)
	}

	sink := capi.New(capi.Config{
		PixelID:       cfg.PixelID,
		AccessToken:   cfg.AccessToken,
		APIVersion:    cfg.APIVersion,
		TestEventCode: cfg.TestEventCode,
		BaseURL:       cfg.GraphAPIURL,
	}, logger)

	registry := webhook.NewRegistry(logger)

	// Delivery pipeline: dispatcher pulls ready jobs, pool runs them
	processor := worker.NewProcessor(q, sink, logger)
	pool := worker.NewPool(cfg.NumWorkers, processor, logger)
	dispatcher := worker.NewDispatcher(q, pool, logger)

	// The pool runs on the base context: workers must be able to finish and
	// record claimed jobs during shutdown. Only the dispatcher is cancelled.
	pool.Start(ctx)

	dispatchCtx, stopDispatcher := context.WithCancel(ctx)
	dispatcherDone := make(chan struct{})
	go func() {
		dispatcher.Start(dispatchCtx)
		close(dispatcherDone)
	}()

	router := api.NewRouter(sink, q, registry, logger)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	// Stop the dispatcher so no new jobs are claimed, then drain: every job
	// already handed to the pool is delivered and its outcome recorded
	// before workers exit. Waiting jobs stay in Redis for the next start.
	stopDispatcher()
	<-dispatcherDone
	pool.Stop()

	logger.Info("server stopped")
}
