package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NotAvailable is the sentinel written for any field that could not be
// extracted or parsed.
const NotAvailable = "N/A"

const (
	InStock    = "In Stock"
	OutOfStock = "Out of Stock"
)

// Number is a numeric field that may hold the NotAvailable sentinel instead
// of a value. It is never encoded as null.
type Number struct {
	Value float64
	Valid bool
}

func NumberOf(v float64) Number {
	return Number{Value: v, Valid: true}
}

// ParseNumber is the inverse of Number.String.
func ParseNumber(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == NotAvailable {
		return Number{}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Number{}, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return NumberOf(v), nil
}

func (n Number) String() string {
	if !n.Valid {
		return NotAvailable
	}
	return strconv.FormatFloat(n.Value, 'f', -1, 64)
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return json.Marshal(NotAvailable)
	}
	return json.Marshal(n.Value)
}

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := ParseNumber(s)
		if err != nil {
			return err
		}
		*n = parsed
		return nil
	}
	if string(data) == "null" {
		*n = Number{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = NumberOf(v)
	return nil
}

type SizeAvailability struct {
	Size         string `json:"size"`
	Availability string `json:"availability"`
}

func (s SizeAvailability) String() string {
	return fmt.Sprintf("%s (%s)", s.Size, s.Availability)
}

// ParseSizeAvailability reads the "S (In Stock)" form produced by String.
func ParseSizeAvailability(s string) SizeAvailability {
	s = strings.TrimSpace(s)
	open := strings.LastIndex(s, " (")
	if open < 0 || !strings.HasSuffix(s, ")") {
		return SizeAvailability{Size: s, Availability: InStock}
	}
	return SizeAvailability{
		Size:         s[:open],
		Availability: s[open+2 : len(s)-1],
	}
}

// ProductRecord is one scraped product. Field order here is the export
// order for both CSV and JSON.
type ProductRecord struct {
	Site            string             `json:"site"`
	SearchQuery     string             `json:"search_query"`
	Brand           string             `json:"brand"`
	Name            string             `json:"name"`
	ProductURL      string             `json:"product_url"`
	Price           Number             `json:"price"`
	OriginalPrice   Number             `json:"original_price"`
	DiscountPercent Number             `json:"discount_percent"`
	Rating          Number             `json:"rating"`
	ReviewCount     Number             `json:"review_count"`
	Reviews         []string           `json:"reviews"`
	ImageURLs       []string           `json:"image_urls"`
	Sizes           []SizeAvailability `json:"sizes"`
	Breadcrumb      string             `json:"breadcrumb"`
}

// NewProductRecord returns a record with every optional field set to its
// sentinel.
func NewProductRecord(site, query, url string) *ProductRecord {
	return &ProductRecord{
		Site:        site,
		SearchQuery: query,
		Brand:       NotAvailable,
		Name:        NotAvailable,
		ProductURL:  url,
		Reviews:     make([]string, 0),
		ImageURLs:   make([]string, 0),
		Sizes:       make([]SizeAvailability, 0),
		Breadcrumb:  NotAvailable,
	}
}

func (p *ProductRecord) Validate() []string {
	var errors []string

	if p.ProductURL == "" {
		errors = append(errors, "product_url is required")
	}

	if p.Brand == "" {
		errors = append(errors, "brand must hold a value or the sentinel")
	}

	if p.Name == "" {
		errors = append(errors, "name must hold a value or the sentinel")
	}

	if p.Breadcrumb == "" {
		errors = append(errors, "breadcrumb must hold a value or the sentinel")
	}

	if p.Price.Valid && p.Price.Value < 0 {
		errors = append(errors, "price must not be negative")
	}

	if p.Rating.Valid && (p.Rating.Value < 0 || p.Rating.Value > 5) {
		errors = append(errors, "rating must be between 0 and 5")
	}

	if p.Reviews == nil || p.ImageURLs == nil || p.Sizes == nil {
		errors = append(errors, "list fields must not be nil")
	}

	return errors
}

// Run is the outcome of one pipeline execution against one site.
type Run struct {
	ID             string           `json:"id"`
	Site           string           `json:"site"`
	Queries        []string         `json:"queries"`
	StartedAt      time.Time        `json:"started_at"`
	FinishedAt     time.Time        `json:"finished_at"`
	Collected      int              `json:"collected"`
	Extracted      int              `json:"extracted"`
	Skipped        int              `json:"skipped"`
	FieldFallbacks int              `json:"field_fallbacks"`
	CSVPath        string           `json:"csv_path,omitempty"`
	JSONPath       string           `json:"json_path,omitempty"`
	Records        []*ProductRecord `json:"-"`
}

func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
