package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/parser"
	"github.com/maltedev/fashion-scraper/internal/ratelimit"
	"github.com/maltedev/fashion-scraper/internal/site"
)

// Collector gathers products from search result pages. Its seen set
// spans the whole run, so a URL is never returned twice even across
// queries.
type Collector struct {
	adapter site.Adapter
	nav     *Navigator
	opts    Options
	seen    map[string]struct{}
	logger  *slog.Logger
}

type listingReader func(doc *goquery.Document) []site.ListingCard

func NewCollector(adapter site.Adapter, nav *Navigator, opts Options, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		adapter: adapter,
		nav:     nav,
		opts:    opts,
		seen:    make(map[string]struct{}),
		logger:  logger.With("component", "collector"),
	}
}

// Collect returns at most MaxProducts unseen product URLs, in page order,
// starting from the results page page currently shows. A missing result
// container yields an empty list, not an error.
func (c *Collector) Collect(ctx context.Context, page Page, searchURL string) ([]string, error) {
	cards, err := c.collect(ctx, page, searchURL, max(c.opts.MaxListingPages, 1), func(doc *goquery.Document) []site.ListingCard {
		links := c.adapter.ExtractListing(doc)
		cards := make([]site.ListingCard, len(links))
		for i, link := range links {
			cards[i].URL = link
		}
		return cards
	})

	urls := make([]string, len(cards))
	for i, card := range cards {
		urls[i] = card.URL
	}
	return urls, err
}

// CollectCards reads whole products off the results cards instead of
// their links. MaxListingPages <= 0 follows pages until one adds nothing.
func (c *Collector) CollectCards(ctx context.Context, page Page, searchURL string) ([]site.ListingCard, error) {
	extractor, ok := c.adapter.(site.ListingExtractor)
	if !ok {
		return nil, fmt.Errorf("%s: %w", c.adapter.Name(), models.ErrListingOnlyUnsupported)
	}

	pages := c.opts.MaxListingPages
	if pages <= 0 {
		pages = math.MaxInt
	}
	return c.collect(ctx, page, searchURL, pages, extractor.ExtractListingCards)
}

func (c *Collector) collect(ctx context.Context, page Page, searchURL string, pages int, read listingReader) ([]site.ListingCard, error) {
	var cards []site.ListingCard

	for pageNum := 1; pageNum <= pages && !c.full(cards); pageNum++ {
		if pageNum > 1 {
			paginator, ok := c.adapter.(site.Paginator)
			if !ok {
				break
			}
			if err := c.nav.Open(ctx, page, paginator.PageURL(searchURL, pageNum), phaseListing); err != nil {
				if ctx.Err() != nil {
					return cards, ctx.Err()
				}
				c.logger.Warn("failed to open next results page", "page", pageNum, "error", err)
				break
			}
		}

		found, err := c.collectPage(ctx, page, len(cards), read)
		if err != nil {
			return cards, err
		}

		added := 0
		for _, card := range found {
			if c.full(cards) {
				break
			}
			if _, ok := c.seen[card.URL]; ok {
				continue
			}
			c.seen[card.URL] = struct{}{}
			cards = append(cards, card)
			added++
		}

		c.logger.Info("collected listing page", "page", pageNum, "found", len(found), "added", added, "total", len(cards))

		if added == 0 {
			break
		}
	}

	return cards, nil
}

// collectPage scrolls the current results page until enough new cards are
// rendered, a cycle adds nothing, or the cycle budget runs out.
func (c *Collector) collectPage(ctx context.Context, page Page, have int, read listingReader) ([]site.ListingCard, error) {
	if err := page.WaitForSelector(ctx, c.adapter.ListingSelector(), c.opts.ListingTimeout); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("product listing not found", "url", page.URL(), "selector", c.adapter.ListingSelector(), "error", err)
		return nil, nil
	}

	cards, err := c.snapshot(page, read)
	if err != nil {
		return nil, err
	}

	for cycle := 0; cycle < c.opts.ScrollCycles && !c.enough(cards, have); cycle++ {
		if err := page.ScrollToBottom(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.logger.Warn("scroll failed", "cycle", cycle+1, "error", err)
			break
		}
		if err := ratelimit.Sleep(ctx, c.opts.ScrollPause); err != nil {
			return nil, err
		}

		more, err := c.snapshot(page, read)
		if err != nil {
			return nil, err
		}
		if len(more) <= len(cards) {
			break
		}
		cards = more
	}

	return cards, nil
}

func (c *Collector) snapshot(page Page, read listingReader) ([]site.ListingCard, error) {
	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("failed to read listing page: %w", err)
	}
	doc, err := parser.NewDocument(html)
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}
	return read(doc), nil
}

func (c *Collector) full(cards []site.ListingCard) bool {
	return c.opts.MaxProducts > 0 && len(cards) >= c.opts.MaxProducts
}

func (c *Collector) enough(cards []site.ListingCard, have int) bool {
	if c.opts.MaxProducts <= 0 {
		return false
	}
	unseen := 0
	for _, card := range cards {
		if _, ok := c.seen[card.URL]; !ok {
			unseen++
		}
	}
	return have+unseen >= c.opts.MaxProducts
}
