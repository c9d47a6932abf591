package models

import (
	"time"
)

// EnrichWindow is the caller-held cursor passed to an enrichment scheduler.
type EnrichWindow struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// EnrichState is the terminal state of one scheduler invocation.
type EnrichState string

const (
	EnrichDone    EnrichState = "done"
	EnrichPartial EnrichState = "partial_batch_complete"
)

// EnrichResult summarises one scheduler invocation. NextOffset is where the
// caller resumes; HasMore reports whether another invocation is worthwhile.
type EnrichResult struct {
	Kind       ArtifactKind `json:"kind"`
	State      EnrichState  `json:"state"`
	Processed  int          `json:"processed"`
	Succeeded  int          `json:"succeeded"`
	Failed     int          `json:"failed"`
	NextOffset int          `json:"nextOffset"`
	HasMore    bool         `json:"hasMore"`
	Errors     []string     `json:"errors"`
}

// SyncResult summarises one catalog synchronization run.
type SyncResult struct {
	RunID          string   `json:"runId"`
	Listed         int      `json:"listed"`
	Filtered       int      `json:"filtered"`
	Downloaded     int      `json:"downloaded"`
	DownloadFailed int      `json:"downloadFailed"`
	Skipped        int      `json:"skipped"`
	Upserted       int      `json:"upserted"`
	Unchanged      int      `json:"unchanged"`
	Failed         int      `json:"failed"`
	Errors         []string `json:"errors"`
	DurationMs     int64    `json:"durationMs"`
}

// SearchPath identifies which ranking path answered a search.
type SearchPath string

const (
	SearchPathDatabase SearchPath = "database"
	SearchPathFallback SearchPath = "fallback"
)

// SearchResult is a catalog entry ranked against a query.
type SearchResult struct {
	CatalogEntry
	Similarity float64 `json:"similarity"`
}

// SearchResponse contains ranked results and metadata about the query.
type SearchResponse struct {
	Query     string          `json:"query"`
	Threshold float64         `json:"threshold"`
	Path      SearchPath      `json:"path"`
	Results   []*SearchResult `json:"results"`
}

// HealthStatus represents service health
type HealthStatus struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// ProblemDetails represents RFC 7807 Problem Details
type ProblemDetails struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}
