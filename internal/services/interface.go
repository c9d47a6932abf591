package services

import (
	"context"

	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// SyncRunner runs one catalog synchronization.
type SyncRunner interface {
	Run(ctx context.Context) (*models.SyncResult, error)
}

// Searcher answers semantic searches.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) (*models.SearchResponse, error)
}

// RawFetcher downloads a definition file from the raw-content mirror.
type RawFetcher interface {
	FetchRaw(ctx context.Context, rawURL string) ([]byte, error)
}

// Pinger checks a backing service.
type Pinger interface {
	Ping(ctx context.Context) error
}
