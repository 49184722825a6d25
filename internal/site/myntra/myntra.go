package myntra

import (
	"bytes"
	"encoding/json"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/parser"
	"github.com/maltedev/fashion-scraper/internal/site"
)

const (
	Name    = "myntra"
	baseURL = "https://www.myntra.com"

	stateMarker = "window.__myx"
)

var (
	brandField = parser.Field{Name: "brand", Selectors: []parser.Selector{
		parser.CSS("h1.pdp-title"),
		parser.CSS(".pdp-title"),
	}}
	nameField = parser.Field{Name: "name", Selectors: []parser.Selector{
		parser.CSS("h1.pdp-name"),
		parser.CSS(".pdp-name"),
	}}
	priceField = parser.Field{Name: "price", Selectors: []parser.Selector{
		parser.CSS(".pdp-price strong"),
		parser.CSS(".pdp-price"),
	}}
	originalPriceField = parser.Field{Name: "original_price", Selectors: []parser.Selector{
		parser.CSS(".pdp-mrp s"),
		parser.CSS(".pdp-mrp"),
	}}
	discountField = parser.Field{Name: "discount_percent", Selectors: []parser.Selector{
		parser.CSS(".pdp-discount"),
	}}
	ratingField = parser.Field{Name: "rating", Selectors: []parser.Selector{
		parser.CSS(".index-overallRating > div:first-child"),
		parser.CSS(".index-overallRating"),
	}}
	reviewCountField = parser.Field{Name: "review_count", Selectors: []parser.Selector{
		parser.CSS(".index-ratingsCount"),
	}}
	reviewsField = parser.Field{Name: "reviews", Selectors: []parser.Selector{
		parser.CSS(".user-review-reviewTextWrapper"),
	}}
	imagesField = parser.Field{Name: "image_urls", Selectors: []parser.Selector{
		parser.BackgroundImage(".image-grid-image"),
		parser.BackgroundImage(".image-grid-imageContainer"),
		parser.Attr("img.img-responsive", "src"),
		parser.Attr(".pdp-main-container img", "src"),
	}}
	breadcrumbField = parser.Field{Name: "breadcrumb", Selectors: []parser.Selector{
		parser.CSS(".breadcrumbs-crumb"),
	}}

	cardBrandField = parser.Field{Name: "brand", Selectors: []parser.Selector{
		parser.CSS(".product-brand"),
	}}
	cardNameField = parser.Field{Name: "name", Selectors: []parser.Selector{
		parser.CSS(".product-product"),
	}}
	cardPriceField = parser.Field{Name: "price", Selectors: []parser.Selector{
		parser.CSS(".product-discountedPrice"),
		parser.CSS(".product-price > span"),
	}}
	cardOriginalPriceField = parser.Field{Name: "original_price", Selectors: []parser.Selector{
		parser.CSS(".product-strike"),
	}}
	cardDiscountField = parser.Field{Name: "discount_percent", Selectors: []parser.Selector{
		parser.CSS(".product-discountPercentage"),
	}}
	cardRatingField = parser.Field{Name: "rating", Selectors: []parser.Selector{
		parser.CSS(".product-ratingsContainer > span:first-child"),
		parser.CSS(".product-ratingsContainer"),
	}}
	cardReviewCountField = parser.Field{Name: "review_count", Selectors: []parser.Selector{
		parser.CSS(".product-ratingsCount"),
	}}
	cardImageField = parser.Field{Name: "image_urls", Selectors: []parser.Selector{
		parser.Attr("img.img-responsive", "src"),
		parser.Attr("picture img", "src"),
	}}

	imageKeywords = []string{"myntra", "assets"}
	slugPattern   = regexp.MustCompile(`[^a-z0-9]+`)
)

const sizeButtonCSS = ".size-buttons-size-button"

type Adapter struct{}

var (
	_ site.Adapter          = (*Adapter)(nil)
	_ site.ListingExtractor = (*Adapter)(nil)
)

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Name() string { return Name }

func (a *Adapter) BaseURL() string { return baseURL }

// BuildSearchURL produces the URL the search box redirects to, e.g.
// /red-dress?rawQuery=red+dress.
func (a *Adapter) BuildSearchURL(query string) string {
	query = strings.TrimSpace(query)
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(query), "-"), "-")
	return baseURL + "/" + slug + "?" + url.Values{"rawQuery": {query}}.Encode()
}

func (a *Adapter) PageURL(searchURL string, page int) string {
	return site.AppendPageParam(searchURL, page)
}

func (a *Adapter) ListingSelector() string { return "li.product-base" }

func (a *Adapter) ExtractListing(doc *goquery.Document) []string {
	return site.ListingLinks(doc, baseURL, a.ListingSelector())
}

// ExtractListingCards reads brand, name, prices, rating and image straight
// off each result card. The page breadcrumb is shared by every card; sizes
// and reviews only exist on product pages and stay empty.
func (a *Adapter) ExtractListingCards(doc *goquery.Document) []site.ListingCard {
	breadcrumb, _ := parser.All(doc, breadcrumbField)

	var cards []site.ListingCard
	seen := make(map[string]struct{})
	doc.Find(a.ListingSelector()).Each(func(_ int, card *goquery.Selection) {
		link := card.Find("a[data-refreshpage='true']").First()
		if link.Length() == 0 {
			link = card.Find("a[href]").First()
		}
		u := parser.AbsoluteURL(baseURL, link.AttrOr("href", ""))
		if u == "" {
			return
		}
		if _, dup := seen[u]; dup {
			return
		}
		seen[u] = struct{}{}

		ex := site.NewExtraction(goquery.NewDocumentFromNode(card.Get(0)))
		cards = append(cards, site.ListingCard{
			URL: u,
			Fields: site.RawFields{
				Brand:         ex.Text(cardBrandField, ""),
				Name:          ex.Text(cardNameField, ""),
				Price:         ex.Text(cardPriceField, ""),
				OriginalPrice: ex.Text(cardOriginalPriceField, ""),
				Discount:      ex.Text(cardDiscountField, ""),
				Rating:        ex.Text(cardRatingField, ""),
				ReviewCount:   ex.Text(cardReviewCountField, ""),
				ImageURLs:     ex.Images(cardImageField, imageKeywords, nil),
				Breadcrumb:    breadcrumb,
			},
			Errors: ex.Errors,
		})
	})
	return cards
}

func (a *Adapter) DetailReadySelector() string { return ".pdp-title, .pdp-name" }

// ExtractDetailFields prefers the embedded pdpData state and falls back to
// the rendered DOM field by field.
func (a *Adapter) ExtractDetailFields(doc *goquery.Document) (site.RawFields, []error) {
	state := parseState(doc)
	ex := site.NewExtraction(doc)

	raw := site.RawFields{
		Brand:         ex.Text(brandField, state.brand()),
		Name:          ex.Text(nameField, state.Name),
		Price:         ex.Text(priceField, numberText(state.Price)),
		OriginalPrice: ex.Text(originalPriceField, numberText(state.MRP)),
		Discount:      ex.Text(discountField, state.discount()),
		Rating:        ex.Text(ratingField, state.rating()),
		ReviewCount:   ex.Text(reviewCountField, state.ratingCount()),
		Reviews:       ex.All(reviewsField, nil),
		ImageURLs:     ex.Images(imagesField, imageKeywords, state.images()),
		Breadcrumb:    ex.All(breadcrumbField, nil),
	}

	if sizes := state.sizes(); len(sizes) > 0 {
		raw.Sizes = sizes
	} else {
		raw.Sizes = ex.Sizes(sizeButtonCSS)
	}

	return raw, ex.Errors
}

type pdpState struct {
	Name  string          `json:"name"`
	MRP   json.RawMessage `json:"mrp"`
	Price json.RawMessage `json:"price"`
	Brand struct {
		Name string `json:"name"`
	} `json:"brand"`
	Discounts []struct {
		DiscountPercent json.RawMessage `json:"discountPercent"`
	} `json:"discounts"`
	Ratings *struct {
		AverageRating json.RawMessage `json:"averageRating"`
		TotalCount    json.RawMessage `json:"totalCount"`
	} `json:"ratings"`
	Sizes []struct {
		Label     string `json:"label"`
		Available bool   `json:"available"`
	} `json:"sizes"`
	Media struct {
		Albums []struct {
			Images []struct {
				Src string `json:"src"`
			} `json:"images"`
		} `json:"albums"`
	} `json:"media"`
}

// parseState decodes window.__myx.pdpData. A missing or malformed state
// yields an empty value so every field falls through to the DOM.
func parseState(doc *goquery.Document) *pdpState {
	var payload []byte
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		i := strings.Index(text, stateMarker)
		if i < 0 {
			return true
		}
		if j := strings.Index(text[i:], "{"); j >= 0 {
			payload = []byte(text[i+j:])
		}
		return false
	})

	state := &pdpState{}
	if payload == nil {
		return state
	}

	var envelope struct {
		PdpData *pdpState `json:"pdpData"`
	}
	// Decode reads exactly one value, so trailing statements are ignored.
	if err := json.NewDecoder(bytes.NewReader(payload)).Decode(&envelope); err != nil || envelope.PdpData == nil {
		return state
	}
	return envelope.PdpData
}

func (s *pdpState) brand() string { return s.Brand.Name }

func (s *pdpState) discount() string {
	for _, d := range s.Discounts {
		if v := numberText(d.DiscountPercent); v != "" && v != "0" {
			return v
		}
	}
	return ""
}

func (s *pdpState) rating() string {
	if s.Ratings == nil {
		return ""
	}
	v := numberText(s.Ratings.AverageRating)
	if v == "0" {
		return ""
	}
	return v
}

func (s *pdpState) ratingCount() string {
	if s.Ratings == nil {
		return ""
	}
	return numberText(s.Ratings.TotalCount)
}

func (s *pdpState) images() []string {
	var urls []string
	for _, album := range s.Media.Albums {
		for _, img := range album.Images {
			if img.Src != "" {
				urls = append(urls, img.Src)
			}
		}
	}
	return urls
}

func (s *pdpState) sizes() []models.SizeAvailability {
	var sizes []models.SizeAvailability
	for _, size := range s.Sizes {
		if size.Label == "" {
			continue
		}
		availability := models.OutOfStock
		if size.Available {
			availability = models.InStock
		}
		sizes = append(sizes, models.SizeAvailability{Size: size.Label, Availability: availability})
	}
	return sizes
}

// numberText renders a JSON number or string as plain text; anything else
// is treated as absent.
func numberText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
