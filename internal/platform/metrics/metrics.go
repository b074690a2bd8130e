// Package metrics exposes Prometheus collectors for the HTTP layer and the
// ordering workflows. All recording methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	HTTPRequests          *prometheus.CounterVec
	HTTPDuration          *prometheus.HistogramVec
	ApplicationsSubmitted *prometheus.CounterVec
	QuotesComputed        prometheus.Counter
	OrderRepairs          *prometheus.CounterVec
	OrderSaves            *prometheus.CounterVec
	UploadFailures        *prometheus.CounterVec
	EventsPublished       *prometheus.CounterVec
	CircuitBreakerState   *prometheus.GaugeVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labdesk_http_requests_total",
			Help: "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labdesk_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route"}),
		ApplicationsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labdesk_applications_submitted_total",
			Help: "Applications created or resubmitted",
		}, []string{"mode"}),
		QuotesComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "labdesk_quotes_computed_total",
			Help: "Order totals computed for the public form",
		}),
		OrderRepairs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labdesk_order_repairs_total",
			Help: "Catalog items that were assigned a missing order value",
		}, []string{"kind"}),
		OrderSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labdesk_order_saves_total",
			Help: "Manual ordering batches by outcome",
		}, []string{"kind", "result"}),
		UploadFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labdesk_upload_failures_total",
			Help: "Image uploads that failed and were skipped",
		}, []string{"target"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labdesk_events_published_total",
			Help: "Application events handed to the broker by outcome",
		}, []string{"type", "result"}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labdesk_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.ApplicationsSubmitted,
		m.QuotesComputed,
		m.OrderRepairs,
		m.OrderSaves,
		m.UploadFailures,
		m.EventsPublished,
		m.CircuitBreakerState,
	)
	return m
}

// Handler serves the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency keyed by the echo route
// pattern, which keeps dealer names out of the label set.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func (m *Metrics) ApplicationSubmitted(mode string) {
	if m != nil {
		m.ApplicationsSubmitted.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) QuoteComputed() {
	if m != nil {
		m.QuotesComputed.Inc()
	}
}

func (m *Metrics) OrderRepaired(kind string, n int) {
	if m != nil && n > 0 {
		m.OrderRepairs.WithLabelValues(kind).Add(float64(n))
	}
}

func (m *Metrics) OrderSaved(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OrderSaves.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) UploadFailed(target string) {
	if m != nil {
		m.UploadFailures.WithLabelValues(target).Inc()
	}
}

func (m *Metrics) EventPublished(eventType string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsPublished.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) BreakerState(name string, state int) {
	if m != nil {
		m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	}
}
