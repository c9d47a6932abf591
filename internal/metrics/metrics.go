// Package metrics defines the prometheus collectors of the catalog pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Sync metrics
var (
	// SyncRunsTotal counts sync runs by outcome (ok, error).
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_runs_total",
			Help: "Catalog sync runs by outcome",
		},
		[]string{"outcome"},
	)

	// SyncFilesTotal counts files seen by sync, by result.
	SyncFilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_files_total",
			Help: "Files processed by catalog sync, by result",
		},
		[]string{"result"}, // upserted, unchanged, skipped, download_failed, failed
	)

	// SyncDuration observes sync run latency in seconds.
	SyncDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Catalog sync run duration",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
)

// Enrichment metrics
var (
	// EnrichRecordsTotal counts enrichment records by artifact kind and result.
	EnrichRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_enrich_records_total",
			Help: "Records processed by the enrichment schedulers",
		},
		[]string{"kind", "result"}, // succeeded, failed
	)

	// EnrichArtifactQuality counts persisted artifacts by parse quality.
	EnrichArtifactQuality = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_enrich_artifact_quality_total",
			Help: "Persisted artifacts by response parse quality",
		},
		[]string{"kind", "quality"},
	)

	// AIRequestDuration observes external AI call latency in seconds.
	AIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_ai_request_duration_seconds",
			Help:    "External AI request latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"operation"}, // chat, embedding
	)
)

// Search metrics
var (
	// SearchRequestsTotal counts searches by the ranking path that answered.
	SearchRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_search_requests_total",
			Help: "Semantic searches by ranking path",
		},
		[]string{"path"},
	)

	// EmbeddingCacheTotal counts query embedding cache lookups.
	EmbeddingCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_embedding_cache_total",
			Help: "Query embedding cache lookups",
		},
		[]string{"result"}, // hit, miss
	)
)
