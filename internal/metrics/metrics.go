// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingest outcomes.
const (
	OutcomeIngested  = "ingested"
	OutcomeDuplicate = "duplicate"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
)

var (
	IngestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_ingest_runs_total",
		Help: "Dataset ingestions by profile and outcome.",
	}, []string{"profile", "outcome"})

	RecordsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_ingest_records_written_total",
		Help: "Coefficient records upserted by profile.",
	}, []string{"profile"})

	CurvesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_ingest_curves_skipped_total",
		Help: "Curves left absent because the series was degenerate.",
	}, []string{"profile"})

	IngestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "habitat_ingest_duration_seconds",
		Help:    "Duration of a dataset ingestion.",
		Buckets: []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	}, []string{"profile"})

	ScoreRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_score_requests_total",
		Help: "Score lookups by metric and scope (country or catalog).",
	}, []string{"metric", "scope"})

	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_score_cache_lookups_total",
		Help: "Catalog score cache lookups by result (hit or miss).",
	}, []string{"result"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "habitat_http_requests_total",
		Help: "HTTP requests by route pattern and status code.",
	}, []string{"route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "habitat_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
)
