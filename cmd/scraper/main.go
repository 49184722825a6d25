package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/maltedev/fashion-scraper/internal/app"
	"github.com/maltedev/fashion-scraper/internal/config"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/scraper"
	"github.com/maltedev/fashion-scraper/internal/site/registry"
	"github.com/maltedev/fashion-scraper/pkg/logger"
)

// queryList collects repeated -query flags; each value may also be comma
// separated.
type queryList []string

func (q *queryList) String() string { return strings.Join(*q, ",") }

func (q *queryList) Set(value string) error {
	*q = append(*q, config.SplitList(value)...)
	return nil
}

// cliFlags holds the command line; only flags given explicitly override
// the environment.
type cliFlags struct {
	site        string
	queries     queryList
	maxProducts int
	pages       int
	headless    bool
	outDir      string
	skipFailed  bool
	listingOnly bool
	metricsAddr string
}

func newFlagSet(f *cliFlags) *flag.FlagSet {
	fs := flag.NewFlagSet("scraper", flag.ExitOnError)
	fs.StringVar(&f.site, "site", "", "Site to scrape: "+strings.Join(registry.Names(), ", "))
	fs.Var(&f.queries, "query", "Search query; repeat or comma-separate for several")
	fs.IntVar(&f.maxProducts, "max", 0, "Maximum products per query (default SCRAPER_MAX_PRODUCTS)")
	fs.IntVar(&f.pages, "pages", 0, "Maximum listing pages per query; 0 means all pages with -listing-only (default SCRAPER_MAX_LISTING_PAGES)")
	fs.BoolVar(&f.headless, "headless", true, "Run browser in headless mode (default BROWSER_HEADLESS)")
	fs.StringVar(&f.outDir, "out", "", "Output directory (default EXPORT_DIR)")
	fs.BoolVar(&f.skipFailed, "skip-failed", false, "Skip products whose page fails instead of aborting (default SCRAPER_SKIP_FAILED)")
	fs.BoolVar(&f.listingOnly, "listing-only", false, "Read products off the search results without opening product pages (default SCRAPER_LISTING_ONLY)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	return fs
}

// applyFlags copies every flag set on the command line into cfg.
func applyFlags(fs *flag.FlagSet, f *cliFlags, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "site":
			cfg.Scraper.Site = f.site
		case "query":
			cfg.Scraper.Queries = f.queries
		case "max":
			cfg.Scraper.MaxProducts = f.maxProducts
		case "pages":
			cfg.Scraper.MaxListingPages = f.pages
		case "headless":
			cfg.Browser.Headless = f.headless
		case "out":
			cfg.Export.Dir = f.outDir
		case "skip-failed":
			cfg.Scraper.SkipFailed = f.skipFailed
		case "listing-only":
			cfg.Scraper.ListingOnly = f.listingOnly
		}
	})
}

func main() {
	var flags cliFlags
	fs := newFlagSet(&flags)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(fs, &flags, cfg)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("Starting fashion scraper", "site", cfg.Scraper.Site, "queries", cfg.Scraper.Queries, "listing_only", cfg.Scraper.ListingOnly)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if flags.metricsAddr != "" {
		srv := &http.Server{Addr: flags.metricsAddr, Handler: a.Metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	run, err := a.Runner.Run(ctx, scraper.Request{
		Site:    cfg.Scraper.Site,
		Queries: cfg.Scraper.Queries,
		Options: scraper.OptionsFromConfig(cfg),
	})
	if run != nil {
		printSummary(run, err)
	}
	if err != nil {
		logger.Error("Scrape failed", "kind", models.ErrorKind(err), "error", err)
		a.Close()
		os.Exit(1)
	}
}

func printSummary(run *models.Run, runErr error) {
	status := "completed"
	if runErr != nil {
		status = "failed"
	}

	fmt.Printf("\n=== Scrape %s ===\n", status)
	fmt.Printf("Run:        %s\n", run.ID)
	fmt.Printf("Site:       %s\n", run.Site)
	fmt.Printf("Queries:    %s\n", strings.Join(run.Queries, ", "))
	fmt.Printf("Collected:  %d\n", run.Collected)
	fmt.Printf("Extracted:  %d\n", run.Extracted)
	fmt.Printf("Skipped:    %d\n", run.Skipped)
	fmt.Printf("Fallbacks:  %d\n", run.FieldFallbacks)
	fmt.Printf("Duration:   %s\n", run.Duration().Round(time.Second))
	if run.CSVPath != "" {
		fmt.Printf("CSV:        %s\n", run.CSVPath)
		fmt.Printf("JSON:       %s\n", run.JSONPath)
	}
}
