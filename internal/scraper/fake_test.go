package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/parser"
	"github.com/maltedev/fashion-scraper/internal/retry"
	"github.com/stretchr/testify/mock"
)

// fakePage serves canned HTML per URL. Each URL maps to successive
// renderings; every ScrollToBottom advances to the next one.
type fakePage struct {
	mu       sync.Mutex
	pages    map[string][]string
	failures map[string]int // remaining failing navigations, -1 fails forever
	current  string
	scrolls  int
	visits   []string
	clicks   []string
	closed   bool
}

func newFakePage() *fakePage {
	return &fakePage{
		pages:    make(map[string][]string),
		failures: make(map[string]int),
	}
}

func (p *fakePage) serve(url string, renderings ...string) {
	p.pages[url] = renderings
}

func (p *fakePage) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	p.visits = append(p.visits, url)

	if n := p.failures[url]; n != 0 {
		if n > 0 {
			p.failures[url] = n - 1
		}
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	if _, ok := p.pages[url]; !ok {
		return retry.Permanent(fmt.Errorf("unexpected status 404 for %s", url))
	}

	p.current = url
	p.scrolls = 0
	return nil
}

func (p *fakePage) html() string {
	renderings := p.pages[p.current]
	if len(renderings) == 0 {
		return "<html><body></body></html>"
	}
	return renderings[min(p.scrolls, len(renderings)-1)]
}

func (p *fakePage) WaitForSelector(ctx context.Context, css string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doc, err := parser.NewDocument(p.html())
	if err != nil {
		return err
	}
	if doc.Find(css).Length() == 0 {
		return fmt.Errorf("timeout %v exceeded waiting for %q", timeout, css)
	}
	return nil
}

func (p *fakePage) Click(ctx context.Context, css string, timeout time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !strings.Contains(p.html(), "No thanks") {
		return fmt.Errorf("timeout %v exceeded waiting for %q", timeout, css)
	}
	p.clicks = append(p.clicks, css)
	return nil
}

func (p *fakePage) ScrollToBottom(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls++
	return nil
}

func (p *fakePage) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.html(), nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type fakeSession struct {
	page   *fakePage
	closed bool
}

func (s *fakeSession) NewPage() (Page, error) { return s.page, nil }

func (s *fakeSession) Close() error {
	s.closed = true
	return nil
}

func launcherFor(s *fakeSession) Launcher {
	return func(context.Context) (Session, error) { return s, nil }
}

type fakeExporter struct {
	runs []*models.Run
	err  error
}

func (e *fakeExporter) Export(run *models.Run) error {
	if e.err != nil {
		return &models.ExportError{Path: "out/" + run.Site + "_products.csv", Err: e.err}
	}
	e.runs = append(e.runs, run)
	run.CSVPath = "out/" + run.Site + "_products.csv"
	run.JSONPath = "out/" + run.Site + "_products.json"
	return nil
}

type mockSink struct {
	mock.Mock
}

func (m *mockSink) Name() string { return "mock" }

func (m *mockSink) Publish(ctx context.Context, run *models.Run) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func testOptions() Options {
	return Options{
		MaxProducts:     5,
		MaxListingPages: 1,
		ListingTimeout:  time.Second,
		DetailTimeout:   time.Second,
		DismissTimeout:  time.Second,
		ScrollCycles:    3,
		Retry: retry.Policy{
			MaxAttempts:  2,
			InitialDelay: time.Millisecond,
			Multiplier:   1,
		},
	}
}

const myntraSearchURL = "https://www.myntra.com/red-dress?rawQuery=red+dress"

func myntraProductURL(id int) string {
	return fmt.Sprintf("https://www.myntra.com/dresses/roadster/red-dress-%d/%d/buy", id, id)
}

func myntraListing(ids ...int) string {
	var b strings.Builder
	b.WriteString(`<html><body><ul class="results-base">`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<li class="product-base"><a href="/dresses/roadster/red-dress-%d/%d/buy"><h3>Roadster</h3></a></li>`, id, id)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func myntraCards(ids ...int) string {
	var b strings.Builder
	b.WriteString(`<html><body><span class="breadcrumbs-crumb">Home</span><span class="breadcrumbs-crumb">Dresses</span><ul class="results-base">`)
	for _, id := range ids {
		fmt.Fprintf(&b, `<li class="product-base"><a data-refreshpage="true" href="/dresses/roadster/red-dress-%d/%d/buy">
<img class="img-responsive" src="https://assets.myntassets.com/assets/images/%d/1.jpg?w=230">
<div class="product-ratingsContainer"><span>4.1</span><div class="product-ratingsCount">| 2k</div></div>
<h3 class="product-brand">Roadster</h3><h4 class="product-product">Women Red Dress %d</h4>
<div class="product-price"><span class="product-discountedPrice">Rs. %d</span><span class="product-strike">Rs. 1999</span><span class="product-discountPercentage">(50%% OFF)</span></div>
</a></li>`, id, id, id, id, 900+id)
	}
	b.WriteString(`</ul></body></html>`)
	return b.String()
}

func myntraDetail(id int, withRating bool) string {
	rating := ""
	if withRating {
		rating = `<div class="index-overallRating"><div>4.3</div></div>`
	}
	return fmt.Sprintf(`<html><body>
<span class="breadcrumbs-crumb">Home</span><span class="breadcrumbs-crumb">Dresses</span>
<img class="img-responsive" src="https://assets.myntassets.com/assets/images/%d/1.jpg?w=300">
<h1 class="pdp-title">Roadster</h1>
<h1 class="pdp-name">Women Red Dress %d</h1>
%s
<div class="index-ratingsCount">87 Ratings</div>
<span class="pdp-price"><strong>₹%d</strong></span>
<span class="pdp-mrp"><s>₹1,999</s></span>
<span class="pdp-discount">(50%% OFF)</span>
<button class="size-buttons-size-button">S</button>
<button class="size-buttons-size-button size-buttons-size-button-disabled">M</button>
<div class="user-review-reviewTextWrapper">Great fit</div>
</body></html>`, id, id, rating, 900+id)
}
