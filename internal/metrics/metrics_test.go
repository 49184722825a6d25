package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.IncPage("myntra", "search")
		m.IncProduct("myntra")
		m.IncFieldFallback("myntra", "rating")
		m.IncRetry("myntra")
		m.IncError("myntra", "navigation")
		m.ObserveRun("myntra", time.Second)
	})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCounters(t *testing.T) {
	m := New()

	m.IncProduct("nykaa")
	m.IncProduct("nykaa")
	m.IncFieldFallback("nykaa", "rating")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ProductsTotal.WithLabelValues("nykaa")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FieldFallbacksTotal.WithLabelValues("nykaa", "rating")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.IncError("myntra", "setup")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scraper_errors_total{kind="setup",site="myntra"} 1`)
}
