package scraper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/fashion-scraper/internal/metrics"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/retry"
	"github.com/maltedev/fashion-scraper/internal/site"
)

const (
	phaseSearch  = "search"
	phaseListing = "listing"
	phaseDetail  = "detail"
)

// Navigator loads pages under the retry policy and clears first-visit
// overlays.
type Navigator struct {
	adapter        site.Adapter
	policy         retry.Policy
	dismissTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
}

func NewNavigator(adapter site.Adapter, opts Options, m *metrics.Metrics, logger *slog.Logger) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		adapter:        adapter,
		policy:         opts.Retry,
		dismissTimeout: opts.DismissTimeout,
		metrics:        m,
		logger:         logger.With("component", "navigator"),
	}
}

// Search opens the results page for query and returns its URL.
func (n *Navigator) Search(ctx context.Context, page Page, query string) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", models.ErrEmptyQuery
	}

	searchURL := n.adapter.BuildSearchURL(query)
	n.logger.Info("searching", "query", query, "url", searchURL)

	if err := n.Open(ctx, page, searchURL, phaseSearch); err != nil {
		return "", err
	}

	n.DismissPopups(ctx, page)
	return searchURL, nil
}

// Open navigates page to url, retrying per policy. Exhausting the policy
// yields a *models.NavigationError; a cancelled ctx is returned as is.
func (n *Navigator) Open(ctx context.Context, page Page, url, phase string) error {
	policy := n.policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		n.metrics.IncRetry(n.adapter.Name())
		n.logger.Warn("navigation failed, retrying",
			"url", url,
			"attempt", attempt,
			"delay", delay,
			"error", err)
	}

	err := retry.Do(ctx, policy, func(int) error {
		return page.Navigate(ctx, url)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &models.NavigationError{URL: url, Err: err}
	}

	n.metrics.IncPage(n.adapter.Name(), phase)
	return nil
}

// DismissPopups clicks every overlay selector the adapter declares. Missing
// overlays are expected and only logged at debug level.
func (n *Navigator) DismissPopups(ctx context.Context, page Page) {
	dismisser, ok := n.adapter.(site.PopupDismisser)
	if !ok {
		return
	}

	for _, sel := range dismisser.DismissSelectors() {
		if err := page.Click(ctx, sel, n.dismissTimeout); err != nil {
			n.logger.Debug("no popup to dismiss", "selector", sel, "error", err)
			continue
		}
		n.logger.Info("dismissed popup", "selector", sel)
	}
}
