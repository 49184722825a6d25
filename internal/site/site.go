// Package site defines the per-site capabilities the shared scraping
// pipeline is composed from.
package site

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fashion-scraper/internal/models"
)

// Adapter knows the URL scheme and DOM layout of one storefront.
type Adapter interface {
	Name() string
	BaseURL() string
	BuildSearchURL(query string) string

	// ListingSelector matches one product card on a search results page.
	ListingSelector() string
	// ExtractListing returns absolute product URLs in page order.
	ExtractListing(doc *goquery.Document) []string

	// DetailReadySelector is awaited before a product page is snapshotted.
	DetailReadySelector() string
	// ExtractDetailFields never fails as a whole: each missing field is
	// reported as an *models.ElementNotFoundError and left empty.
	ExtractDetailFields(doc *goquery.Document) (RawFields, []error)
}

// PopupDismisser is implemented by sites that show a blocking overlay on
// first load.
type PopupDismisser interface {
	DismissSelectors() []string
}

// Paginator is implemented by sites whose search results span pages.
type Paginator interface {
	PageURL(searchURL string, page int) string
}

// ListingExtractor is implemented by sites whose search result cards carry
// enough product data to skip the product pages.
type ListingExtractor interface {
	// ExtractListingCards returns one card per product in page order. Cards
	// without a product link are dropped.
	ExtractListingCards(doc *goquery.Document) []ListingCard
}

// ListingCard is one product read off a search results card. Errors holds
// an *models.ElementNotFoundError per field the card lacked.
type ListingCard struct {
	URL    string
	Fields RawFields
	Errors []error
}

// RawFields holds the unnormalized strings read off a product page.
type RawFields struct {
	Brand         string
	Name          string
	Price         string
	OriginalPrice string
	Discount      string
	Rating        string
	ReviewCount   string
	Reviews       []string
	ImageURLs     []string
	Sizes         []models.SizeAvailability
	Breadcrumb    []string
}
