// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SourceFailures counts aggregation sources that failed and contributed
	// zero events. Labelled by source name.
	SourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_events_source_failures_total",
		Help: "Aggregation sources that failed and were skipped.",
	}, []string{"source"})

	// CatalogSize reports the size of the last aggregated catalog per mode.
	CatalogSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "campus_events_catalog_size",
		Help: "Events in the most recent catalog snapshot.",
	}, []string{"mode"})

	// CheckoutAttempts counts checkout attempts by final outcome
	// (success, partial, already_registered, error).
	CheckoutAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_events_checkout_attempts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})

	// HTTPRequests counts façade requests by route and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_events_http_requests_total",
		Help: "HTTP requests served by the façade.",
	}, []string{"route", "status"})
)
