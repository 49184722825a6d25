package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/fashion-scraper/internal/api"
	"github.com/maltedev/fashion-scraper/internal/app"
	"github.com/maltedev/fashion-scraper/internal/config"
	"github.com/maltedev/fashion-scraper/internal/jobs"
	"github.com/maltedev/fashion-scraper/internal/queue"
	"github.com/maltedev/fashion-scraper/internal/scraper"
	"github.com/maltedev/fashion-scraper/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting fashion scraper service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, logger, app.WithRunExportDirs())
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	taskQueue := queue.NewInMemoryQueue(cfg.Server.QueueSize)
	jobManager := jobs.NewManager(taskQueue, a.Runner.Run, scraper.OptionsFromConfig(cfg), logger)

	workerDone := make(chan struct{})
	go func() {
		jobManager.StartWorker(ctx)
		close(workerDone)
	}()

	// A nil *RunArchive must not become a non-nil interface.
	var archive api.RunStore
	if a.Archive != nil {
		archive = a.Archive
	}
	handlers := api.NewHandlers(jobManager, archive, logger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handlers, a.Metrics.Handler(), cfg.Server.AllowedOrigins),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown failed", "error", err)
	}

	// Stop accepting queued work and abort the run in progress.
	taskQueue.Close()
	cancel()

	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		logger.Warn("Worker did not stop before shutdown timeout")
	}

	logger.Info("Server stopped")
}
