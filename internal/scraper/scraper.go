package scraper

import (
	"context"
	"time"

	"github.com/maltedev/fashion-scraper/internal/browser"
	"github.com/maltedev/fashion-scraper/internal/config"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/retry"
)

// Page is the subset of a browser tab the pipeline drives.
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitForSelector(ctx context.Context, css string, timeout time.Duration) error
	Click(ctx context.Context, css string, timeout time.Duration) error
	ScrollToBottom(ctx context.Context) error
	HTML() (string, error)
	URL() string
	Close() error
}

// Session is one launched browser.
type Session interface {
	NewPage() (Page, error)
	Close() error
}

// Launcher starts a browser session. Failures should be *models.SetupError.
type Launcher func(ctx context.Context) (Session, error)

type Options struct {
	MaxProducts     int
	MaxListingPages int
	ListingTimeout  time.Duration
	DetailTimeout   time.Duration
	DismissTimeout  time.Duration
	ScrollCycles    int
	ScrollPause     time.Duration
	DelayMin        time.Duration
	DelayMax        time.Duration
	SkipFailed      bool
	// ListingOnly builds records from search result cards and never opens
	// product pages.
	ListingOnly     bool
	Retry           retry.Policy
}

func DefaultOptions() Options {
	return Options{
		MaxProducts:     10,
		MaxListingPages: 1,
		ListingTimeout:  10 * time.Second,
		DetailTimeout:   10 * time.Second,
		DismissTimeout:  2 * time.Second,
		ScrollCycles:    3,
		ScrollPause:     time.Second,
		DelayMin:        time.Second,
		DelayMax:        2 * time.Second,
		Retry:           retry.DefaultPolicy(),
	}
}

func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.MaxProducts = cfg.Scraper.MaxProducts
	opts.MaxListingPages = cfg.Scraper.MaxListingPages
	opts.ListingTimeout = cfg.Scraper.ListingTimeout
	opts.DetailTimeout = cfg.Scraper.DetailTimeout
	opts.ScrollCycles = cfg.Scraper.ScrollCycles
	opts.ScrollPause = cfg.Scraper.ScrollPause
	opts.DelayMin = cfg.Scraper.DelayMin
	opts.DelayMax = cfg.Scraper.DelayMax
	opts.SkipFailed = cfg.Scraper.SkipFailed
	opts.ListingOnly = cfg.Scraper.ListingOnly
	opts.Retry = retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
		Multiplier:   cfg.Retry.Multiplier,
		Jitter:       cfg.Retry.Jitter,
	}
	return opts
}

// PlaywrightLauncher launches a real Chromium session for each run.
func PlaywrightLauncher(opts *browser.Options) Launcher {
	return func(ctx context.Context) (Session, error) {
		if err := ctx.Err(); err != nil {
			return nil, &models.SetupError{Err: err}
		}
		b, err := browser.New(opts)
		if err != nil {
			return nil, err
		}
		return &playwrightSession{browser: b}, nil
	}
}

type playwrightSession struct {
	browser *browser.Browser
}

func (s *playwrightSession) NewPage() (Page, error) {
	page, err := s.browser.NewPage()
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *playwrightSession) Close() error {
	return s.browser.Close()
}
