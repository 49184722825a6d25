package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus collectors for scrape runs. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	Registry            *prometheus.Registry
	PagesTotal          *prometheus.CounterVec
	ProductsTotal       *prometheus.CounterVec
	FieldFallbacksTotal *prometheus.CounterVec
	RetriesTotal        *prometheus.CounterVec
	ErrorsTotal         *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_pages_total",
			Help: "Pages loaded by the browser, by site and phase.",
		},
		[]string{"site", "phase"},
	)
	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_products_total",
			Help: "Product records produced, by site.",
		},
		[]string{"site"},
	)
	fallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_field_fallbacks_total",
			Help: "Fields that fell back to the sentinel value.",
		},
		[]string{"site", "field"},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_retries_total",
			Help: "Navigation retries scheduled, by site.",
		},
		[]string{"site"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "Scraper errors by kind.",
		},
		[]string{"site", "kind"},
	)
	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scraper_run_duration_seconds",
			Help:    "Wall time of complete runs.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"site"},
	)

	registry.MustRegister(pages, products, fallbacks, retries, errorsTotal, runDuration)

	return &Metrics{
		Registry:            registry,
		PagesTotal:          pages,
		ProductsTotal:       products,
		FieldFallbacksTotal: fallbacks,
		RetriesTotal:        retries,
		ErrorsTotal:         errorsTotal,
		RunDuration:         runDuration,
	}
}

func (m *Metrics) IncPage(site, phase string) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(site, phase).Inc()
}

func (m *Metrics) IncProduct(site string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(site).Inc()
}

func (m *Metrics) IncFieldFallback(site, field string) {
	if m == nil {
		return
	}
	m.FieldFallbacksTotal.WithLabelValues(site, field).Inc()
}

func (m *Metrics) IncRetry(site string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(site).Inc()
}

func (m *Metrics) IncError(site, kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(site, kind).Inc()
}

func (m *Metrics) ObserveRun(site string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(site).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
