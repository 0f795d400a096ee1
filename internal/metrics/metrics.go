// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific collectors.
	Registry = prometheus.NewRegistry()

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"client", "method", "route", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "storefront",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		},
		[]string{"method", "route"},
	)

	clientConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "storefront",
			Subsystem: "tenant",
			Name:      "open_connections",
			Help:      "Number of client databases with a cached connection handle.",
		},
	)

	connectionOpens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "tenant",
			Name:      "connection_opens_total",
			Help:      "Client database open attempts by result.",
		},
		[]string{"client", "result"},
	)

	eventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Domain events handed to the broker, by queue and result.",
		},
		[]string{"queue", "result"},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		clientConnections,
		connectionOpens,
		eventsPublished,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))
}

// ObserveRequest records one finished HTTP request.  client is empty for
// routes outside /api.
func ObserveRequest(client, method, route string, status int, elapsed time.Duration) {
	if client == "" {
		client = "none"
	}
	httpRequests.WithLabelValues(client, method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// SetOpenConnections reports the size of the client connection cache.
func SetOpenConnections(n int) { clientConnections.Set(float64(n)) }

// ConnectionOpened counts an open attempt for a client database.
func ConnectionOpened(client string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	connectionOpens.WithLabelValues(client, result).Inc()
}

// EventPublished counts a publish attempt.
func EventPublished(queue string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	eventsPublished.WithLabelValues(queue, result).Inc()
}
