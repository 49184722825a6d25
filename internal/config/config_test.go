package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp moves into an empty directory so a developer's .env is not picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "myntra", cfg.Scraper.Site)
	assert.Equal(t, DefaultQueries(), cfg.Scraper.Queries)
	assert.Equal(t, 10, cfg.Scraper.MaxProducts)
	assert.Equal(t, 10*time.Second, cfg.Scraper.ListingTimeout)
	assert.Len(t, cfg.Scraper.UserAgents, 4)
	assert.True(t, cfg.Browser.Headless)
	assert.True(t, cfg.Browser.Stealth)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 2.0, cfg.Retry.Multiplier)
	assert.Equal(t, 0.1, cfg.Retry.Jitter)
	assert.False(t, cfg.Scraper.ListingOnly)
	assert.Equal(t, ".", cfg.Export.Dir)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, "auto", cfg.Logging.Format)
}

func TestLoadFromEnvironment(t *testing.T) {
	chdirTemp(t)

	t.Setenv("SCRAPER_SITE", "nykaa")
	t.Setenv("SCRAPER_QUERIES", "red dress, ,linen shirt")
	t.Setenv("SCRAPER_MAX_PRODUCTS", "5")
	t.Setenv("SCRAPER_SKIP_FAILED", "true")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("RETRY_INITIAL_DELAY", "250ms")
	t.Setenv("RETRY_MULTIPLIER", "1.5")
	t.Setenv("SCRAPER_MAX_LISTING_PAGES", "not-a-number")
	t.Setenv("SCRAPER_LISTING_ONLY", "true")
	t.Setenv("RETRY_JITTER", "0.25")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "nykaa", cfg.Scraper.Site)
	assert.Equal(t, []string{"red dress", "linen shirt"}, cfg.Scraper.Queries)
	assert.Equal(t, 5, cfg.Scraper.MaxProducts)
	assert.True(t, cfg.Scraper.SkipFailed)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 250*time.Millisecond, cfg.Retry.InitialDelay)
	assert.Equal(t, 1.5, cfg.Retry.Multiplier)
	assert.Equal(t, 1, cfg.Scraper.MaxListingPages, "invalid values keep the default")
	assert.True(t, cfg.Scraper.ListingOnly)
	assert.Equal(t, 0.25, cfg.Retry.Jitter)
}

func TestValidateListingOnlyAllowsUnbounded(t *testing.T) {
	chdirTemp(t)
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Scraper.ListingOnly = true
	cfg.Scraper.MaxListingPages = 0
	cfg.Scraper.MaxProducts = 0
	assert.NoError(t, cfg.Validate())

	cfg.Scraper.MaxListingPages = -1
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EXPORT_DIR=out\nLOG_LEVEL=debug\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("EXPORT_DIR")
		os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "out", cfg.Export.Dir)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	chdirTemp(t)
	base, err := Load()
	require.NoError(t, err)

	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{name: "zero max products", modify: func(c *Config) { c.Scraper.MaxProducts = 0 }},
		{name: "zero listing pages", modify: func(c *Config) { c.Scraper.MaxListingPages = 0 }},
		{name: "negative scroll cycles", modify: func(c *Config) { c.Scraper.ScrollCycles = -1 }},
		{name: "delay min above max", modify: func(c *Config) { c.Scraper.DelayMin = 5 * time.Second }},
		{name: "no user agents", modify: func(c *Config) { c.Scraper.UserAgents = nil }},
		{name: "zero attempts", modify: func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{name: "initial above max delay", modify: func(c *Config) { c.Retry.InitialDelay = time.Minute }},
		{name: "multiplier below one", modify: func(c *Config) { c.Retry.Multiplier = 0.5 }},
		{name: "jitter above one", modify: func(c *Config) { c.Retry.Jitter = 1.5 }},
		{name: "empty export dir", modify: func(c *Config) { c.Export.Dir = "" }},
		{name: "zero queue size", modify: func(c *Config) { c.Server.QueueSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			cfg := &c
			require.NoError(t, cfg.Validate())
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b c"}, SplitList(" a ,, b c ,"))
	assert.Nil(t, SplitList(" , "))
}
