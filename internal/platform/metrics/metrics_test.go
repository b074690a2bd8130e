package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_RecordsRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/api/v1/order/:dealer/catalog", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/order/acme/catalog", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/v1/order/:dealer/catalog", "200"))
	if got != 1 {
		t.Errorf("request counter = %v, want 1", got)
	}
}

func TestMiddleware_UsesHTTPErrorCode(t *testing.T) {
	m := New(prometheus.NewRegistry())
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/fail", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusNotFound, "dealer not found")
	})

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fail", nil))
	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/fail", "404")); got != 1 {
		t.Errorf("404 counter = %v, want 1", got)
	}
}

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.OrderRepaired("tests", 3)
	m.OrderRepaired("tests", 0)
	m.OrderSaved("groups", nil)
	m.OrderSaved("groups", errors.New("tx aborted"))
	m.ApplicationSubmitted("create")
	m.QuoteComputed()
	m.UploadFailed("photo")
	m.EventPublished("application.created", nil)
	m.BreakerState("imagehost", 1)

	if got := testutil.ToFloat64(m.OrderRepairs.WithLabelValues("tests")); got != 3 {
		t.Errorf("repairs = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.OrderSaves.WithLabelValues("groups", "error")); got != 1 {
		t.Errorf("failed saves = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("imagehost")); got != 1 {
		t.Errorf("breaker state = %v, want 1", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.OrderRepaired("tests", 1)
	m.OrderSaved("tests", nil)
	m.ApplicationSubmitted("create")
	m.QuoteComputed()
	m.UploadFailed("photo")
	m.EventPublished("x", nil)
	m.BreakerState("x", 0)

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	if err := m.Middleware()(func(c echo.Context) error { return nil })(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHandler_ExposesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.QuoteComputed()

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "labdesk_quotes_computed_total 1") {
		t.Error("expected quote counter in exposition output")
	}
}
