package site

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/parser"
)

// Extraction accumulates field lookups against one document so adapters
// can read fields one by one without aborting on the first miss.
type Extraction struct {
	Doc    *goquery.Document
	Errors []error
}

func NewExtraction(doc *goquery.Document) *Extraction {
	return &Extraction{Doc: doc}
}

// Text returns preset when non-empty, otherwise the field lookup result.
func (e *Extraction) Text(f parser.Field, preset string) string {
	if preset != "" {
		return preset
	}
	v, err := parser.Text(e.Doc, f)
	if err != nil {
		e.Errors = append(e.Errors, err)
		return ""
	}
	return v
}

func (e *Extraction) All(f parser.Field, preset []string) []string {
	if len(preset) > 0 {
		return preset
	}
	v, err := parser.All(e.Doc, f)
	if err != nil {
		e.Errors = append(e.Errors, err)
		return nil
	}
	return v
}

// Images tries each selector in order and returns the http(s) URLs of the
// first one that yields any, query stripped. When none match it falls back
// to any <img> whose src contains one of keywords.
func (e *Extraction) Images(f parser.Field, keywords []string, preset []string) []string {
	if urls := httpURLs(preset); len(urls) > 0 {
		return urls
	}

	for _, s := range f.Selectors {
		values, err := parser.All(e.Doc, parser.Field{Name: f.Name, Selectors: []parser.Selector{s}})
		if err != nil {
			continue
		}
		if urls := httpURLs(values); len(urls) > 0 {
			return urls
		}
	}

	var fallback []string
	e.Doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src := strings.TrimSpace(sel.AttrOr("src", ""))
		lower := strings.ToLower(src)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				fallback = append(fallback, src)
				return
			}
		}
	})
	if urls := httpURLs(fallback); len(urls) > 0 {
		return urls[:1]
	}

	e.Errors = append(e.Errors, &models.ElementNotFoundError{Field: f.Name, Selectors: selectorNames(f, "img[src*=keyword]")})
	return nil
}

// Sizes reads size buttons; a button whose class contains "disabled" or
// that carries aria-disabled="true" is out of stock.
func (e *Extraction) Sizes(css string) []models.SizeAvailability {
	var sizes []models.SizeAvailability
	e.Doc.Find(css).Each(func(_ int, sel *goquery.Selection) {
		label := parser.CollapseSpace(sel.Text())
		if label == "" {
			return
		}
		sizes = append(sizes, models.SizeAvailability{
			Size:         label,
			Availability: availability(sel),
		})
	})

	if len(sizes) == 0 {
		e.Errors = append(e.Errors, &models.ElementNotFoundError{Field: "sizes", Selectors: []string{css}})
	}
	return sizes
}

func availability(sel *goquery.Selection) string {
	class := strings.ToLower(sel.AttrOr("class", ""))
	if strings.Contains(class, "disabled") || sel.AttrOr("aria-disabled", "") == "true" {
		return models.OutOfStock
	}
	if _, disabled := sel.Attr("disabled"); disabled {
		return models.OutOfStock
	}
	return models.InStock
}

func httpURLs(values []string) []string {
	var out []string
	for _, v := range values {
		if strings.HasPrefix(v, "http") {
			out = append(out, parser.StripQuery(v))
		}
	}
	return parser.Dedupe(out)
}

func selectorNames(f parser.Field, extra ...string) []string {
	names := make([]string, 0, len(f.Selectors)+len(extra))
	for _, s := range f.Selectors {
		names = append(names, s.String())
	}
	return append(names, extra...)
}

// ListingLinks returns the first link of every card matched by cardCSS,
// resolved against base and deduplicated.
func ListingLinks(doc *goquery.Document, base, cardCSS string) []string {
	var urls []string
	doc.Find(cardCSS).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find("a[href]").First().Attr("href")
		if !ok && goquery.NodeName(card) == "a" {
			href, ok = card.Attr("href")
		}
		if !ok {
			return
		}
		if u := parser.AbsoluteURL(base, href); u != "" {
			urls = append(urls, u)
		}
	})
	return parser.Dedupe(urls)
}

// AppendPageParam adds p=<page> to a search URL. Page 1 is the URL itself.
func AppendPageParam(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}
	sep := "?"
	if strings.Contains(searchURL, "?") {
		sep = "&"
	}
	return searchURL + sep + "p=" + strconv.Itoa(page)
}
