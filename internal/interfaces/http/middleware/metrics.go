package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTP metric names
const (
	MetricHTTPRequestsTotal   = "kekhai_http_requests_total"
	MetricHTTPRequestDuration = "kekhai_http_request_duration_seconds"
)

// HTTPDurationBuckets are latency buckets in seconds
var HTTPDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

type httpMetrics struct {
	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func newHTTPMetrics(registerer prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricHTTPRequestsTotal,
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status_code"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricHTTPRequestDuration,
				Help:    "HTTP request latency distribution in seconds.",
				Buckets: HTTPDurationBuckets,
			},
			[]string{"method", "route"},
		),
	}
	registerer.MustRegister(m.requestTotal, m.requestDuration)
	return m
}

// HTTPMetrics returns a middleware recording request counts and latency per
// route pattern. Unmatched routes are labelled "unmatched" to bound cardinality.
func HTTPMetrics(registerer prometheus.Registerer) gin.HandlerFunc {
	if registerer == nil {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	m := newHTTPMetrics(registerer)

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requestTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
