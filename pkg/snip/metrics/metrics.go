// Package metrics holds the prometheus collectors for the HTTP surface and
// the link lifecycle, plus the gin glue that feeds and exposes them.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// once guards registration; the default registry panics on duplicates
	once sync.Once

	// HTTPRequestsTotal counts finished requests. route is the gin route
	// template, never the raw path, to keep label cardinality bounded.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// LinksCreatedTotal counts new links by how their code was chosen
	LinksCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snip_links_created_total",
			Help: "Short links created, by code source (alias or generated).",
		},
		[]string{"source"},
	)

	RedirectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snip_redirects_total",
			Help: "Short codes resolved to a redirect.",
		},
	)

	RedirectMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snip_redirect_misses_total",
			Help: "Short codes that did not resolve.",
		},
	)
)

// Init registers the collectors with the default registry. Safe to call repeatedly.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			LinksCreatedTotal,
			RedirectsTotal,
			RedirectMissesTotal,
		)
	})
}

// LinkCreated records a new link. alias reports whether the caller chose the code.
func LinkCreated(alias bool) {
	source := "generated"
	if alias {
		source = "alias"
	}
	LinksCreatedTotal.WithLabelValues(source).Inc()
}

// RedirectServed records a successful resolution
func RedirectServed() {
	RedirectsTotal.Inc()
}

// RedirectMissed records a resolution that ended in not found
func RedirectMissed() {
	RedirectMissesTotal.Inc()
}
