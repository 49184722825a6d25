package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/fashion-scraper/internal/metrics"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/site"
	"github.com/maltedev/fashion-scraper/internal/site/registry"
)

// Exporter persists a finished run's records and records the written paths
// on the run.
type Exporter interface {
	Export(run *models.Run) error
}

// Sink receives a run after it has been exported. Sink failures never fail
// the run.
type Sink interface {
	Name() string
	Publish(ctx context.Context, run *models.Run) error
}

type Request struct {
	// ID becomes the run ID; empty means a fresh uuid.
	ID      string
	Site    string
	Queries []string
	Options Options
}

type Runner struct {
	launcher Launcher
	exporter Exporter
	sinks    []Sink
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

type RunnerOption func(*Runner)

func WithSinks(sinks ...Sink) RunnerOption {
	return func(r *Runner) { r.sinks = append(r.sinks, sinks...) }
}

func WithMetrics(m *metrics.Metrics) RunnerOption {
	return func(r *Runner) { r.metrics = m }
}

func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(launcher Launcher, exporter Exporter, opts ...RunnerOption) *Runner {
	r := &Runner{
		launcher: launcher,
		exporter: exporter,
		logger:   slog.Default().With("component", "runner"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the full pipeline for one site: launch, then per query
// search, collect and extract, then export and publish. The returned run
// is non-nil whenever the request was valid, even on failure.
func (r *Runner) Run(ctx context.Context, req Request) (*models.Run, error) {
	adapter, err := registry.Get(req.Site)
	if err != nil {
		return nil, err
	}

	queries := make([]string, 0, len(req.Queries))
	for _, q := range req.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return nil, models.ErrEmptyQuery
	}
	if _, ok := adapter.(site.ListingExtractor); req.Options.ListingOnly && !ok {
		return nil, fmt.Errorf("%s: %w", adapter.Name(), models.ErrListingOnlyUnsupported)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	run := &models.Run{
		ID:        id,
		Site:      adapter.Name(),
		Queries:   queries,
		StartedAt: r.now(),
		Records:   make([]*models.ProductRecord, 0),
	}
	logger := r.logger.With("run_id", run.ID, "site", run.Site)
	logger.Info("run started", "queries", queries, "max_products", req.Options.MaxProducts, "listing_only", req.Options.ListingOnly)

	fail := func(err error) (*models.Run, error) {
		run.FinishedAt = r.now()
		r.metrics.IncError(run.Site, models.ErrorKind(err))
		r.metrics.ObserveRun(run.Site, run.Duration())
		logger.Error("run failed", "error", err, "extracted", run.Extracted)
		return run, err
	}

	session, err := r.launcher(ctx)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn("failed to close browser session", "error", err)
		}
	}()

	page, err := session.NewPage()
	if err != nil {
		return fail(&models.SetupError{Err: err})
	}
	defer page.Close()

	nav := NewNavigator(adapter, req.Options, r.metrics, logger)
	collector := NewCollector(adapter, nav, req.Options, logger)
	extractor := NewExtractor(adapter, nav, req.Options, r.metrics, logger)

	for _, query := range queries {
		searchURL, err := nav.Search(ctx, page, query)
		if err != nil {
			return fail(err)
		}

		if req.Options.ListingOnly {
			cards, err := collector.CollectCards(ctx, page, searchURL)
			if err != nil {
				return fail(err)
			}
			run.Collected += len(cards)
			for _, card := range cards {
				run.Records = append(run.Records, extractor.FromCard(query, card))
				run.Extracted++
				run.FieldFallbacks += len(card.Errors)
			}
			continue
		}

		urls, err := collector.Collect(ctx, page, searchURL)
		if err != nil {
			return fail(err)
		}
		run.Collected += len(urls)

		for i, url := range urls {
			logger.Info("scraping product", "query", query, "index", i+1, "of", len(urls), "url", url)

			rec, fallbacks, err := extractor.Extract(ctx, page, query, url)
			if err != nil {
				if req.Options.SkipFailed && ctx.Err() == nil {
					r.metrics.IncError(run.Site, models.ErrorKind(err))
					logger.Warn("skipping product", "url", url, "error", err)
					run.Skipped++
					continue
				}
				return fail(err)
			}

			run.Records = append(run.Records, rec)
			run.Extracted++
			run.FieldFallbacks += fallbacks
		}
	}

	if r.exporter != nil {
		if err := r.exporter.Export(run); err != nil {
			return fail(err)
		}
	}

	run.FinishedAt = r.now()
	r.metrics.ObserveRun(run.Site, run.Duration())

	for _, sink := range r.sinks {
		if err := sink.Publish(ctx, run); err != nil {
			r.metrics.IncError(run.Site, "sink")
			logger.Error("sink failed", "sink", sink.Name(), "error", err)
		}
	}

	logger.Info("run completed",
		"collected", run.Collected,
		"extracted", run.Extracted,
		"skipped", run.Skipped,
		"field_fallbacks", run.FieldFallbacks,
		"duration", run.Duration())

	return run, nil
}
