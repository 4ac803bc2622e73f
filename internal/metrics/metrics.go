// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// Access decision labels.
const (
	DecisionAllow  = "allow"
	DecisionDeny   = "deny"
	DecisionBypass = "bypass"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	AuthOperationsTotal     *prometheus.CounterVec
	AccessDecisionsTotal    *prometheus.CounterVec
	TokensPurgedTotal       *prometheus.CounterVec
	ResetNotificationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "learning_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "learning_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		AuthOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Auth operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		AccessDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "access_decisions_total",
				Help: "Per-product access decisions",
			},
			[]string{"decision"},
		),
		TokensPurgedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tokens_purged_total",
				Help: "Expired tokens removed by the cleanup job",
			},
			[]string{"kind"},
		),
		ResetNotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reset_notifications_total",
				Help: "Password reset notifications by result",
			},
			[]string{"result"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.AuthOperationsTotal,
		m.AccessDecisionsTotal,
		m.TokensPurgedTotal,
		m.ResetNotificationsTotal,
	)
	return m
}

func (m *Metrics) AuthOperation(op, outcome string) {
	if m == nil {
		return
	}
	m.AuthOperationsTotal.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) AccessDecision(decision string) {
	if m == nil {
		return
	}
	m.AccessDecisionsTotal.WithLabelValues(decision).Inc()
}

func (m *Metrics) TokensPurged(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensPurgedTotal.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) ResetNotification(result string) {
	if m == nil {
		return
	}
	m.ResetNotificationsTotal.WithLabelValues(result).Inc()
}

// Middleware instruments echo requests. Routes are labelled by their
// registered path so ids do not explode cardinality. Errors are rendered
// here through c.Error so the recorded status is the one the client sees.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if m == nil {
				return next(c)
			}
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}
			status := c.Response().Status
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			m.HTTPRequestsTotal.WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(c.Request().Method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
