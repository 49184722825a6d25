package main

import (
	"testing"

	"github.com/maltedev/fashion-scraper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Scraper.Site = "nykaa"
	cfg.Scraper.Queries = []string{"kurta"}
	cfg.Scraper.MaxProducts = 25
	cfg.Scraper.MaxListingPages = 2
	cfg.Scraper.SkipFailed = true
	cfg.Browser.Headless = false
	cfg.Export.Dir = "exports"
	return cfg
}

func TestApplyFlagsKeepsEnvironmentForUnsetFlags(t *testing.T) {
	var f cliFlags
	fs := newFlagSet(&f)
	require.NoError(t, fs.Parse(nil))

	cfg := envConfig()
	applyFlags(fs, &f, cfg)

	assert.Equal(t, envConfig(), cfg)
}

func TestApplyFlagsOverridesExplicitFlags(t *testing.T) {
	var f cliFlags
	fs := newFlagSet(&f)
	require.NoError(t, fs.Parse([]string{
		"-site", "myntra",
		"-query", "red dress,linen shirt",
		"-query", "saree",
		"-max", "3",
		"-pages", "0",
		"-headless=true",
		"-skip-failed=false",
		"-listing-only",
		"-out", "tmp",
	}))

	cfg := envConfig()
	applyFlags(fs, &f, cfg)

	assert.Equal(t, "myntra", cfg.Scraper.Site)
	assert.Equal(t, []string{"red dress", "linen shirt", "saree"}, cfg.Scraper.Queries)
	assert.Equal(t, 3, cfg.Scraper.MaxProducts)
	assert.Equal(t, 0, cfg.Scraper.MaxListingPages)
	assert.True(t, cfg.Browser.Headless, "explicit -headless=true beats BROWSER_HEADLESS=false")
	assert.False(t, cfg.Scraper.SkipFailed, "explicit -skip-failed=false beats SCRAPER_SKIP_FAILED=true")
	assert.True(t, cfg.Scraper.ListingOnly)
	assert.Equal(t, "tmp", cfg.Export.Dir)
}
