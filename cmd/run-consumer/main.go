package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/fashion-scraper/internal/config"
	"github.com/maltedev/fashion-scraper/internal/events"
	"github.com/maltedev/fashion-scraper/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// run-consumer tails the run event stream and logs every completed run.
func main() {
	var (
		group = flag.String("group", "run-consumer-group", "Consumer group name")
		name  = flag.String("name", "consumer-1", "Consumer name within the group")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Redis.Addr == "" {
		log.Fatal("REDIS_ADDR is required")
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	logger.Info("Connected to Redis", "addr", cfg.Redis.Addr)

	consumer := events.NewConsumer(rdb, cfg.Redis.Stream, *group, *name,
		func(ctx context.Context, p *events.RunCompletedPayload) error {
			logger.Info("Run completed",
				"run_id", p.RunID,
				"site", p.Site,
				"queries", p.Queries,
				"extracted", p.Extracted,
				"skipped", p.Skipped,
				"duration", p.Duration,
				"csv", p.CSVPath,
				"json", p.JSONPath)
			return nil
		}, logger)

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer error", "error", err)
		os.Exit(1)
	}
	logger.Info("Consumer stopped")
}
