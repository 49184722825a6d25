package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Retry    RetryConfig
	Export   ExportConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Server   ServerConfig
	Logging  LoggingConfig
}

type ScraperConfig struct {
	Site            string
	Queries         []string
	MaxProducts     int
	MaxListingPages int
	ListingTimeout  time.Duration
	DetailTimeout   time.Duration
	ScrollCycles    int
	ScrollPause     time.Duration
	DelayMin        time.Duration
	DelayMax        time.Duration
	SkipFailed      bool
	ListingOnly     bool
	UserAgents      []string
}

type BrowserConfig struct {
	Headless       bool
	Stealth        bool
	Timeout        time.Duration
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	Proxy          string
}

type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       float64
}

type ExportConfig struct {
	Dir       string
	S3Bucket  string
	S3Prefix  string
	AWSRegion string
}

type DatabaseConfig struct {
	URL      string // empty disables the run archive
	MaxConns int32
}

type RedisConfig struct {
	Addr     string // empty disables run events
	Password string
	DB       int
	Stream   string
}

type ServerConfig struct {
	Port            string
	Host            string
	AllowedOrigins  []string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	QueueSize       int
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Scraper: ScraperConfig{
			Site:            getEnvOrDefault("SCRAPER_SITE", "myntra"),
			Queries:         getStringSliceOrDefault("SCRAPER_QUERIES", DefaultQueries()),
			MaxProducts:     getIntOrDefault("SCRAPER_MAX_PRODUCTS", 10),
			MaxListingPages: getIntOrDefault("SCRAPER_MAX_LISTING_PAGES", 1),
			ListingTimeout:  getDurationOrDefault("SCRAPER_LISTING_TIMEOUT", 10*time.Second),
			DetailTimeout:   getDurationOrDefault("SCRAPER_DETAIL_TIMEOUT", 10*time.Second),
			ScrollCycles:    getIntOrDefault("SCRAPER_SCROLL_CYCLES", 3),
			ScrollPause:     getDurationOrDefault("SCRAPER_SCROLL_PAUSE", time.Second),
			DelayMin:        getDurationOrDefault("SCRAPER_DELAY_MIN", time.Second),
			DelayMax:        getDurationOrDefault("SCRAPER_DELAY_MAX", 2*time.Second),
			SkipFailed:      getBoolOrDefault("SCRAPER_SKIP_FAILED", false),
			ListingOnly:     getBoolOrDefault("SCRAPER_LISTING_ONLY", false),
			UserAgents:      getStringSliceOrDefault("SCRAPER_USER_AGENTS", DefaultUserAgents()),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", true),
			Stealth:        getBoolOrDefault("BROWSER_STEALTH", true),
			Timeout:        getDurationOrDefault("BROWSER_TIMEOUT", 30*time.Second),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-IN,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Kolkata"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-IN"),
			Proxy:          getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Retry: RetryConfig{
			MaxAttempts:  getIntOrDefault("RETRY_MAX_ATTEMPTS", 3),
			InitialDelay: getDurationOrDefault("RETRY_INITIAL_DELAY", time.Second),
			MaxDelay:     getDurationOrDefault("RETRY_MAX_DELAY", 10*time.Second),
			Multiplier:   getFloatOrDefault("RETRY_MULTIPLIER", 2),
			Jitter:       getFloatOrDefault("RETRY_JITTER", 0.1),
		},
		Export: ExportConfig{
			Dir:       getEnvOrDefault("EXPORT_DIR", "."),
			S3Bucket:  getEnvOrDefault("EXPORT_S3_BUCKET", ""),
			S3Prefix:  getEnvOrDefault("EXPORT_S3_PREFIX", "exports"),
			AWSRegion: getEnvOrDefault("AWS_REGION", "ap-south-1"),
		},
		Database: DatabaseConfig{
			URL:      getEnvOrDefault("DATABASE_URL", ""),
			MaxConns: int32(getIntOrDefault("DATABASE_MAX_CONNS", 4)),
		},
		Redis: RedisConfig{
			Addr:     getEnvOrDefault("REDIS_ADDR", ""),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "scraper:runs"),
		},
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "8080"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:*", "https://localhost:*"}),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			QueueSize:       getIntOrDefault("SERVER_QUEUE_SIZE", 100),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "auto"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	// In listing-only mode 0 lifts the product cap and follows every page.
	if c.Scraper.ListingOnly {
		if c.Scraper.MaxProducts < 0 {
			return fmt.Errorf("SCRAPER_MAX_PRODUCTS cannot be negative")
		}
		if c.Scraper.MaxListingPages < 0 {
			return fmt.Errorf("SCRAPER_MAX_LISTING_PAGES cannot be negative")
		}
	} else {
		if c.Scraper.MaxProducts < 1 {
			return fmt.Errorf("SCRAPER_MAX_PRODUCTS must be at least 1")
		}
		if c.Scraper.MaxListingPages < 1 {
			return fmt.Errorf("SCRAPER_MAX_LISTING_PAGES must be at least 1")
		}
	}

	if c.Scraper.ScrollCycles < 0 {
		return fmt.Errorf("SCRAPER_SCROLL_CYCLES cannot be negative")
	}

	if c.Scraper.DelayMin > c.Scraper.DelayMax {
		return fmt.Errorf("SCRAPER_DELAY_MIN cannot be greater than SCRAPER_DELAY_MAX")
	}

	if len(c.Scraper.UserAgents) == 0 {
		return fmt.Errorf("SCRAPER_USER_AGENTS must contain at least one entry")
	}

	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}

	if c.Retry.InitialDelay > c.Retry.MaxDelay {
		return fmt.Errorf("RETRY_INITIAL_DELAY (%s) cannot exceed RETRY_MAX_DELAY (%s)", c.Retry.InitialDelay, c.Retry.MaxDelay)
	}

	if c.Retry.Multiplier < 1 {
		return fmt.Errorf("RETRY_MULTIPLIER must be at least 1")
	}

	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("RETRY_JITTER must be between 0 and 1")
	}

	if c.Export.Dir == "" {
		return fmt.Errorf("EXPORT_DIR cannot be empty")
	}

	if c.Server.QueueSize < 1 {
		return fmt.Errorf("SERVER_QUEUE_SIZE must be at least 1")
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return SplitList(value)
	}
	return defaultValue
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func DefaultQueries() []string {
	return []string{
		"white shirt",
		"black dress",
		"denim jeans",
		"summer kurti",
		"co-ord set",
		"oversized t-shirt",
		"sneakers",
		"blue linen pants",
		"pink blazer for women",
		"yellow maxi dress",
	}
}

func DefaultUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}
