package nykaa

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fashion-scraper/internal/parser"
	"github.com/maltedev/fashion-scraper/internal/site"
)

const (
	Name    = "nykaa"
	baseURL = "https://www.nykaafashion.com"
)

// Nykaa Fashion ships hashed emotion class names; they are matched as
// class tokens so the leading space some of them carry does not matter.
var (
	brandField = parser.Field{Name: "brand", Selectors: []parser.Selector{
		parser.CSS("a.css-6mpq2k"),
		parser.CSS("h1 a[href*='/brands/']"),
	}}
	nameField = parser.Field{Name: "name", Selectors: []parser.Selector{
		parser.CSS("span.css-cmh3n9"),
		parser.CSS("h1"),
	}}
	priceField = parser.Field{Name: "price", Selectors: []parser.Selector{
		parser.CSS("span.css-5pw8k6"),
	}}
	originalPriceField = parser.Field{Name: "original_price", Selectors: []parser.Selector{
		parser.CSS("span.css-1byl9fj"),
	}}
	ratingField = parser.Field{Name: "rating", Selectors: []parser.Selector{
		parser.CSS("div.css-xoezkq"),
	}}
	reviewsField = parser.Field{Name: "reviews", Selectors: []parser.Selector{
		parser.CSS("p.css-183zl1c"),
	}}
	imagesField = parser.Field{Name: "image_urls", Selectors: []parser.Selector{
		parser.Attr("img.css-kwk7lt", "src"),
		parser.Attr(".product-image img", "src"),
	}}

	imageKeywords = []string{"nykaa", "assets", "product"}
)

const sizeCSS = "span.css-la6tof"

type Adapter struct{}

var _ site.Adapter = (*Adapter)(nil)

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) BaseURL() string { return baseURL }

func (a *Adapter) BuildSearchURL(query string) string {
	return baseURL + "/catalogsearch/result/?" + url.Values{"q": {strings.TrimSpace(query)}}.Encode()
}

func (a *Adapter) PageURL(searchURL string, page int) string {
	return site.AppendPageParam(searchURL, page)
}

// DismissSelectors targets the newsletter overlay shown on first visit.
func (a *Adapter) DismissSelectors() []string {
	return []string{`button:has-text("No thanks")`}
}

func (a *Adapter) ListingSelector() string { return "div.css-384pms" }

func (a *Adapter) ExtractListing(doc *goquery.Document) []string {
	return site.ListingLinks(doc, baseURL, a.ListingSelector())
}

func (a *Adapter) DetailReadySelector() string { return "span.css-cmh3n9, h1" }

// ExtractDetailFields reads the product page DOM. Nykaa does not render a
// discount badge consistently, so discount is derived during normalization.
func (a *Adapter) ExtractDetailFields(doc *goquery.Document) (site.RawFields, []error) {
	ex := site.NewExtraction(doc)

	raw := site.RawFields{
		Brand:         ex.Text(brandField, ""),
		Name:          ex.Text(nameField, ""),
		Price:         ex.Text(priceField, ""),
		OriginalPrice: ex.Text(originalPriceField, ""),
		Rating:        ex.Text(ratingField, ""),
		Reviews:       ex.All(reviewsField, nil),
		ImageURLs:     ex.Images(imagesField, imageKeywords, nil),
		Sizes:         ex.Sizes(sizeCSS),
	}

	return raw, ex.Errors
}
