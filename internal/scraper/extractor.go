package scraper

import (
	"context"
	"errors"
	"log/slog"

	"github.com/maltedev/fashion-scraper/internal/metrics"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/normalize"
	"github.com/maltedev/fashion-scraper/internal/parser"
	"github.com/maltedev/fashion-scraper/internal/ratelimit"
	"github.com/maltedev/fashion-scraper/internal/site"
)

// Extractor visits product pages and turns them into normalized records.
type Extractor struct {
	adapter site.Adapter
	nav     *Navigator
	opts    Options
	limiter ratelimit.RateLimiter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewExtractor(adapter site.Adapter, nav *Navigator, opts Options, m *metrics.Metrics, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		adapter: adapter,
		nav:     nav,
		opts:    opts,
		limiter: ratelimit.NewSimpleRateLimiter(opts.DelayMin, opts.DelayMax),
		metrics: m,
		logger:  logger.With("component", "extractor"),
	}
}

// Extract loads url and reads every field. The returned count is the number
// of fields that fell back to the sentinel. Only page-level failures are
// returned as errors.
func (e *Extractor) Extract(ctx context.Context, page Page, query, url string) (*models.ProductRecord, int, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	if err := e.nav.Open(ctx, page, url, phaseDetail); err != nil {
		return nil, 0, err
	}

	if err := page.WaitForSelector(ctx, e.adapter.DetailReadySelector(), e.opts.DetailTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		e.logger.Warn("product details not rendered in time, extracting anyway", "url", url, "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, 0, &models.NavigationError{URL: url, Err: err}
	}
	doc, err := parser.NewDocument(html)
	if err != nil {
		return nil, 0, &models.NavigationError{URL: url, Err: err}
	}

	raw, fieldErrs := e.adapter.ExtractDetailFields(doc)
	rec := e.record(query, url, raw, fieldErrs)
	return rec, len(fieldErrs), nil
}

// FromCard normalizes a product read off a search results card.
func (e *Extractor) FromCard(query string, card site.ListingCard) *models.ProductRecord {
	return e.record(query, card.URL, card.Fields, card.Errors)
}

func (e *Extractor) record(query, url string, raw site.RawFields, fieldErrs []error) *models.ProductRecord {
	for _, fieldErr := range fieldErrs {
		field := "unknown"
		var notFound *models.ElementNotFoundError
		if errors.As(fieldErr, &notFound) {
			field = notFound.Field
		}
		e.metrics.IncFieldFallback(e.adapter.Name(), field)
		e.logger.Warn("field not found, using sentinel", "url", url, "field", field, "error", fieldErr)
	}

	rec := normalize.Record(e.adapter.Name(), query, url, raw)
	e.metrics.IncProduct(e.adapter.Name())
	e.logger.Info("extracted product", "url", url, "brand", rec.Brand, "name", rec.Name, "price", rec.Price.String())
	return rec
}
