// Package metrics declares the Prometheus instruments of the engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values.
const (
	ResultOK          = "ok"
	ResultError       = "error"
	ResultNotFound    = "not_found"
	ResultRedirect    = "redirect"
	ResultInvalid     = "invalid"
	ResultStale       = "stale"
	ResultUnavailable = "unavailable"
)

var (
	IdentityPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sone_identity_polls_total",
		Help: "Identity service poll cycles by result",
	}, []string{"result"})

	IdentityEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sone_identity_events_total",
		Help: "Identity change events emitted by kind",
	}, []string{"kind"})

	Fetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sone_document_fetches_total",
		Help: "Content document fetch attempts by result",
	}, []string{"result"})

	ContentEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sone_content_events_total",
		Help: "Post and reply change events by kind",
	}, []string{"kind"})

	Publishes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sone_publishes_total",
		Help: "Own document publish attempts by result",
	}, []string{"result"})

	TrackedIdentities = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sone_tracked_identities",
		Help: "Remote identities with an active content lane",
	})

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sone_document_fetch_duration_seconds",
		Help:    "Duration of one fetch-parse-diff attempt",
		Buckets: prometheus.DefBuckets,
	})
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
