package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func init() { register(httpRequestsTotal, httpRequestDuration) }

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_http_requests_total",
			Help: "Admin API requests by route and status code.",
		},
		[]string{"route", "code"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "admin_http_request_duration_seconds",
			Help:    "Admin API latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

func ObserveHTTP(route string, code int, d time.Duration) {
	httpRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
