package registry

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/maltedev/fashion-scraper/internal/models"
	"github.com/maltedev/fashion-scraper/internal/site"
	"github.com/maltedev/fashion-scraper/internal/site/myntra"
	"github.com/maltedev/fashion-scraper/internal/site/nykaa"
)

var adapters = map[string]func() site.Adapter{
	myntra.Name: func() site.Adapter { return myntra.New() },
	nykaa.Name:  func() site.Adapter { return nykaa.New() },
}

// Get returns the adapter registered under name (case-insensitive).
func Get(name string) (site.Adapter, error) {
	ctor, ok := adapters[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %s)", models.ErrUnknownSite, name, strings.Join(Names(), ", "))
	}
	return ctor(), nil
}

// ForURL picks the adapter whose base host matches rawURL.
func ForURL(rawURL string) (site.Adapter, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: cannot parse %q", models.ErrUnknownSite, rawURL)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	for _, name := range Names() {
		a := adapters[name]()
		base, _ := url.Parse(a.BaseURL())
		if strings.TrimPrefix(base.Host, "www.") == host {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: no adapter for host %q", models.ErrUnknownSite, u.Host)
}

func Names() []string {
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
