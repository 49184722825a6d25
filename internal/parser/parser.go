package parser

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/fashion-scraper/internal/models"
)

// Selector locates a value in a rendered page. An empty Attr reads the
// element text; Attr "style" reads a CSS background-image url.
type Selector struct {
	CSS  string
	Attr string
}

func CSS(css string) Selector { return Selector{CSS: css} }

func Attr(css, attr string) Selector { return Selector{CSS: css, Attr: attr} }

func BackgroundImage(css string) Selector { return Selector{CSS: css, Attr: "style"} }

func (s Selector) String() string {
	if s.Attr == "" {
		return s.CSS
	}
	return fmt.Sprintf("%s@%s", s.CSS, s.Attr)
}

func (s Selector) valueOf(sel *goquery.Selection) string {
	switch s.Attr {
	case "":
		return CollapseSpace(sel.Text())
	case "style":
		return BackgroundImageURL(sel.AttrOr("style", ""))
	default:
		return strings.TrimSpace(sel.AttrOr(s.Attr, ""))
	}
}

// Field is a named value with selectors tried in order.
type Field struct {
	Name      string
	Selectors []Selector
}

func (f Field) notFound() error {
	names := make([]string, len(f.Selectors))
	for i, s := range f.Selectors {
		names[i] = s.String()
	}
	return &models.ElementNotFoundError{Field: f.Name, Selectors: names}
}

func NewDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Text returns the first non-empty value produced by the field's selectors.
func Text(doc *goquery.Document, f Field) (string, error) {
	for _, s := range f.Selectors {
		var value string
		doc.Find(s.CSS).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			value = s.valueOf(sel)
			return value == ""
		})
		if value != "" {
			return value, nil
		}
	}
	return "", f.notFound()
}

// All returns every non-empty value of the first selector that yields any.
func All(doc *goquery.Document, f Field) ([]string, error) {
	for _, s := range f.Selectors {
		var values []string
		doc.Find(s.CSS).Each(func(_ int, sel *goquery.Selection) {
			if v := s.valueOf(sel); v != "" {
				values = append(values, v)
			}
		})
		if len(values) > 0 {
			return values, nil
		}
	}
	return nil, f.notFound()
}

var (
	spacePattern = regexp.MustCompile(`\s+`)
	bgURLPattern = regexp.MustCompile(`url\(\s*["']?([^"')]+)["']?\s*\)`)
)

func CollapseSpace(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// BackgroundImageURL extracts the url from a `background-image: url("...")`
// style declaration.
func BackgroundImageURL(style string) string {
	m := bgURLPattern.FindStringSubmatch(style)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// AbsoluteURL resolves href against base. Unparseable input yields "".
func AbsoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
		return ""
	}

	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	b, err := url.Parse(base)
	if err != nil {
		return ""
	}
	return b.ResolveReference(ref).String()
}

// StripQuery drops the query string and fragment from a URL.
func StripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		return raw[:i]
	}
	return raw
}

// Dedupe keeps the first occurrence of each value.
func Dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
