// Package app assembles the runner and its optional sinks from configuration.
// Both the CLI and the HTTP server build their pipeline through it.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/fashion-scraper/internal/browser"
	"github.com/maltedev/fashion-scraper/internal/config"
	"github.com/maltedev/fashion-scraper/internal/database"
	"github.com/maltedev/fashion-scraper/internal/events"
	"github.com/maltedev/fashion-scraper/internal/export"
	"github.com/maltedev/fashion-scraper/internal/metrics"
	"github.com/maltedev/fashion-scraper/internal/scraper"
	"github.com/redis/go-redis/v9"
)

// App holds the configured pipeline and the connections its sinks own.
type App struct {
	Runner  *scraper.Runner
	Metrics *metrics.Metrics
	Sinks   []scraper.Sink
	// Archive is nil unless DATABASE_URL is set.
	Archive *database.RunArchive

	closers []func()
	logger  *slog.Logger
}

type Option func(*options)

type options struct {
	exportOpts []export.Option
}

// WithRunExportDirs exports every run into <export dir>/<run id>/.
func WithRunExportDirs() Option {
	return func(o *options) {
		o.exportOpts = append(o.exportOpts, export.WithRunDirs())
	}
}

// New connects every configured sink and builds the runner. An unreachable
// sink backend is an error.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		Metrics: metrics.New(),
		logger:  logger.With("component", "app"),
	}

	if err := a.openSinks(ctx, cfg); err != nil {
		a.Close()
		return nil, err
	}

	launcher := scraper.PlaywrightLauncher(browser.OptionsFromConfig(cfg.Browser, cfg.Scraper.UserAgents))
	a.Runner = scraper.NewRunner(launcher, export.NewWriter(cfg.Export.Dir, o.exportOpts...),
		scraper.WithSinks(a.Sinks...),
		scraper.WithMetrics(a.Metrics),
	)

	return a, nil
}

func (a *App) openSinks(ctx context.Context, cfg *config.Config) error {
	if cfg.Export.S3Bucket != "" {
		uploader, err := export.NewS3UploaderFromEnv(ctx, cfg.Export.AWSRegion, cfg.Export.S3Bucket, cfg.Export.S3Prefix)
		if err != nil {
			return err
		}
		a.Sinks = append(a.Sinks, uploader)
		a.logger.Info("s3 upload enabled", "bucket", cfg.Export.S3Bucket, "prefix", cfg.Export.S3Prefix)
	}

	if cfg.Database.URL != "" {
		db, err := database.New(ctx, database.Config{
			URL:      cfg.Database.URL,
			MaxConns: cfg.Database.MaxConns,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		a.closers = append(a.closers, db.Close)

		if err := db.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		a.Archive = database.NewRunArchive(db)
		a.Sinks = append(a.Sinks, a.Archive)
		a.logger.Info("run archive enabled")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		publisher := events.NewPublisher(client, cfg.Redis.Stream, a.logger)
		a.closers = append(a.closers, func() {
			if err := publisher.Close(); err != nil {
				a.logger.Warn("failed to close redis", "error", err)
			}
		})
		a.Sinks = append(a.Sinks, publisher)
		a.logger.Info("run events enabled", "addr", cfg.Redis.Addr, "stream", cfg.Redis.Stream)
	}

	return nil
}

// Close releases sink connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
