// Package normalize turns the raw strings an adapter reads off a product
// page into a ProductRecord. Every function here is idempotent: feeding a
// normalized value back in yields the same value.
package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/parser"
	"github.com/maltedev/fashion-scraper/internal/site"
)

const BreadcrumbSeparator = " > "

var (
	numberPattern   = regexp.MustCompile(`\d+(?:\.\d+)?`)
	currencyPattern = regexp.MustCompile(`(?i)₹|rs\.?|inr|mrp|\$|€|£`)
	countPattern    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(k|m|l|lakh)?\b`)
)

// Record builds a normalized record from raw adapter output.
func Record(siteName, query, productURL string, raw site.RawFields) *models.ProductRecord {
	rec := models.NewProductRecord(siteName, query, productURL)

	rec.Brand = Text(raw.Brand)
	rec.Name = Text(raw.Name)
	rec.Price = Price(raw.Price)
	rec.OriginalPrice = Price(raw.OriginalPrice)
	rec.DiscountPercent = Discount(raw.Discount)
	rec.Rating = Rating(raw.Rating)
	rec.ReviewCount = Count(raw.ReviewCount)
	rec.Reviews = append(rec.Reviews, raw.Reviews...)
	rec.ImageURLs = append(rec.ImageURLs, raw.ImageURLs...)
	rec.Sizes = append(rec.Sizes, raw.Sizes...)
	rec.Breadcrumb = Breadcrumb(raw.Breadcrumb)

	Normalize(rec)
	return rec
}

// Normalize cleans an existing record in place and derives the fields that
// can be computed from others.
func Normalize(rec *models.ProductRecord) {
	rec.Brand = Text(rec.Brand)
	rec.Name = Text(rec.Name)
	rec.Breadcrumb = Text(rec.Breadcrumb)

	rec.Price = nonNegative(rec.Price)
	rec.OriginalPrice = nonNegative(rec.OriginalPrice)
	rec.Rating = inRange(rec.Rating, 0, 5)
	rec.DiscountPercent = inRange(rec.DiscountPercent, 0, 100)
	rec.ReviewCount = nonNegative(rec.ReviewCount)

	rec.Reviews = Reviews(rec.Reviews)
	rec.ImageURLs = ImageURLs(rec.ImageURLs)
	rec.Sizes = Sizes(rec.Sizes)

	// A product without a strike-through price sells at list price.
	if !rec.OriginalPrice.Valid && rec.Price.Valid {
		rec.OriginalPrice = rec.Price
	}
	if !rec.DiscountPercent.Valid && rec.Price.Valid && rec.OriginalPrice.Valid {
		rec.DiscountPercent = derivedDiscount(rec.Price.Value, rec.OriginalPrice.Value)
	}
}

// Text collapses whitespace and substitutes the sentinel for empty input.
func Text(raw string) string {
	s := parser.CollapseSpace(raw)
	if s == "" {
		return models.NotAvailable
	}
	return s
}

// Price parses strings such as "₹1,299", "Rs. 1299" or "MRP 2,599.50".
func Price(raw string) models.Number {
	s := currencyPattern.ReplaceAllString(raw, "")
	s = strings.ReplaceAll(s, ",", "")
	return firstNumber(s)
}

// Rating accepts "4.2", "4.2 | 1.2k Ratings" or "4.2/5"; values outside
// 0..5 are discarded.
func Rating(raw string) models.Number {
	return inRange(firstNumber(raw), 0, 5)
}

// Count parses review counts like "1,234", "(123)" or "1.2k Ratings".
func Count(raw string) models.Number {
	s := strings.ReplaceAll(raw, ",", "")
	m := countPattern.FindStringSubmatch(s)
	if m == nil {
		return models.Number{}
	}

	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.Number{}
	}

	switch strings.ToLower(m[2]) {
	case "k":
		v *= 1_000
	case "m":
		v *= 1_000_000
	case "l", "lakh":
		v *= 100_000
	}
	return models.NumberOf(math.Round(v))
}

// Discount parses "(55% OFF)", "55%" or "55".
func Discount(raw string) models.Number {
	return inRange(firstNumber(raw), 0, 100)
}

func Breadcrumb(crumbs []string) string {
	parts := make([]string, 0, len(crumbs))
	for _, c := range crumbs {
		if c = parser.CollapseSpace(c); c != "" && c != "/" {
			parts = append(parts, c)
		}
	}
	if len(parts) == 0 {
		return models.NotAvailable
	}
	return strings.Join(parts, BreadcrumbSeparator)
}

func Reviews(reviews []string) []string {
	out := make([]string, 0, len(reviews))
	for _, r := range reviews {
		if r = parser.CollapseSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return parser.Dedupe(out)
}

// ImageURLs keeps absolute http(s) URLs without their resize parameters.
func ImageURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			continue
		}
		out = append(out, parser.StripQuery(u))
	}
	return parser.Dedupe(out)
}

func Sizes(sizes []models.SizeAvailability) []models.SizeAvailability {
	out := make([]models.SizeAvailability, 0, len(sizes))
	seen := make(map[string]bool, len(sizes))
	for _, s := range sizes {
		s.Size = parser.CollapseSpace(s.Size)
		if s.Size == "" || seen[s.Size] {
			continue
		}
		seen[s.Size] = true
		if s.Availability != models.OutOfStock {
			s.Availability = models.InStock
		}
		out = append(out, s)
	}
	return out
}

func firstNumber(s string) models.Number {
	m := numberPattern.FindString(s)
	if m == "" {
		return models.Number{}
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return models.Number{}
	}
	return models.NumberOf(v)
}

func derivedDiscount(price, original float64) models.Number {
	if original <= 0 || price > original {
		return models.Number{}
	}
	return models.NumberOf(math.Round((original - price) / original * 100))
}

func nonNegative(n models.Number) models.Number {
	if n.Valid && n.Value < 0 {
		return models.Number{}
	}
	return n
}

func inRange(n models.Number, lo, hi float64) models.Number {
	if !n.Valid || n.Value < lo || n.Value > hi {
		return models.Number{}
	}
	return n
}
