package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/go-rod/stealth"
	"github.com/maltedev/fashion-scraper/internal/config"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/retry"
	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	timeout time.Duration
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Stealth        bool
	Timeout        time.Duration
	UserAgents     []string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Stealth:        true,
		Timeout:        30 * time.Second,
		UserAgents:     config.DefaultUserAgents(),
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-IN,en;q=0.9",
		TimezoneID:     "Asia/Kolkata",
		Locale:         "en-IN",
		ExtraHeaders: map[string]string{
			"Accept": "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"DNT":    "1",
		},
	}
}

// OptionsFromConfig maps the environment configuration onto launch options.
func OptionsFromConfig(cfg config.BrowserConfig, userAgents []string) *Options {
	opts := DefaultOptions()
	opts.Headless = cfg.Headless
	opts.Stealth = cfg.Stealth
	opts.ProxyServer = cfg.Proxy

	if cfg.Timeout > 0 {
		opts.Timeout = cfg.Timeout
	}
	if cfg.ViewportWidth > 0 && cfg.ViewportHeight > 0 {
		opts.ViewportWidth = cfg.ViewportWidth
		opts.ViewportHeight = cfg.ViewportHeight
	}
	if cfg.AcceptLanguage != "" {
		opts.AcceptLanguage = cfg.AcceptLanguage
	}
	if cfg.TimezoneID != "" {
		opts.TimezoneID = cfg.TimezoneID
	}
	if cfg.Locale != "" {
		opts.Locale = cfg.Locale
	}
	if len(userAgents) > 0 {
		opts.UserAgents = userAgents
	}
	return opts
}

// PickUserAgent returns one entry of agents chosen by intn, or "" when the
// pool is empty so the browser keeps its own.
func PickUserAgent(agents []string, intn func(int) int) string {
	if len(agents) == 0 {
		return ""
	}
	if intn == nil {
		intn = rand.IntN
	}
	return agents[intn(len(agents))]
}

func (o *Options) launchArgs() []string {
	args := []string{
		"--disable-dev-shm-usage",
		"--no-sandbox",
		"--disable-setuid-sandbox",
		fmt.Sprintf("--window-size=%d,%d", o.ViewportWidth, o.ViewportHeight),
	}
	if o.Stealth {
		args = append(args, "--disable-blink-features=AutomationControlled")
	}
	return args
}

// New starts playwright, launches Chromium and opens one browser context.
// Every failure is reported as a *models.SetupError.
func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, &models.SetupError{Err: fmt.Errorf("start playwright: %w", err)}
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args:     opts.launchArgs(),
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, &models.SetupError{Err: fmt.Errorf("launch browser: %w", err)}
	}

	userAgent := PickUserAgent(opts.UserAgents, nil)
	headers := make(map[string]string, len(opts.ExtraHeaders)+1)
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	contextOpts := playwright.BrowserNewContextOptions{
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            &opts.Locale,
		TimezoneId:        &opts.TimezoneID,
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	}
	if userAgent != "" {
		contextOpts.UserAgent = &userAgent
	}

	context, err := browser.NewContext(contextOpts)
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, &models.SetupError{Err: fmt.Errorf("create browser context: %w", err)}
	}

	if opts.Stealth {
		script := stealth.JS
		if err := context.AddInitScript(playwright.Script{Content: &script}); err != nil {
			context.Close()
			browser.Close()
			pw.Stop()
			return nil, &models.SetupError{Err: fmt.Errorf("install stealth script: %w", err)}
		}
	}

	b := &Browser{
		pw:      pw,
		browser: browser,
		context: context,
		timeout: opts.Timeout,
		logger:  slog.Default().With("component", "browser"),
	}
	b.logger.Info("browser started", "headless", opts.Headless, "stealth", opts.Stealth, "user_agent", userAgent)

	return b, nil
}

func (b *Browser) NewPage() (*Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.timeout.Milliseconds()))
	page.SetDefaultNavigationTimeout(float64(b.timeout.Milliseconds()))

	return &Page{page: page, timeout: b.timeout}, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Page wraps a playwright page with the handful of operations the scraper
// needs. Calls check ctx before talking to the browser since playwright
// itself is not context aware.
type Page struct {
	page    playwright.Page
	timeout time.Duration
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resp, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(p.timeout.Milliseconds())),
	})
	if err != nil {
		return err
	}
	if resp == nil {
		return nil
	}
	return statusError(resp.Status())
}

// statusError maps an HTTP response status to a navigation error. A page
// that is gone will not come back on retry.
func statusError(status int) error {
	switch {
	case status == http.StatusNotFound, status == http.StatusGone:
		return retry.Permanent(fmt.Errorf("unexpected status %d", status))
	case status >= http.StatusBadRequest:
		return fmt.Errorf("unexpected status %d", status)
	default:
		return nil
	}
}

// WaitForSelector blocks until css is attached to the DOM or timeout passes.
func (p *Page) WaitForSelector(ctx context.Context, css string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.page.Locator(css).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *Page) Click(ctx context.Context, css string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return p.page.Locator(css).First().Click(playwright.LocatorClickOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (p *Page) ScrollToBottom(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, err := p.page.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (p *Page) HTML() (string, error) {
	return p.page.Content()
}

func (p *Page) URL() string {
	return p.page.URL()
}

func (p *Page) Close() error {
	return p.page.Close()
}
