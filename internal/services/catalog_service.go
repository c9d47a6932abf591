// Package services exposes the catalog operations used by the HTTP API, the
// MCP tools and the command line.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/enrich"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// ErrUnknownKind is returned for an artifact kind with no scheduler.
var ErrUnknownKind = errors.New("unknown artifact kind")

// ServiceName is reported by the health check.
const ServiceName = "workflow-catalog"

// Deps are the collaborators of a CatalogService. Syncer is nil when the
// source repository is not configured; SyncUnavailable then explains why.
type Deps struct {
	Store           repository.Repository
	Syncer          SyncRunner
	SyncUnavailable error
	Runners         []enrich.Runner
	Search          Searcher
	Raw             RawFetcher
	Cache           Pinger
	Version         string
}

// CatalogService is a service for syncing, enriching and reading the catalog.
type CatalogService struct {
	store           repository.Repository
	syncer          SyncRunner
	syncUnavailable error
	runners         map[models.ArtifactKind]enrich.Runner
	search          Searcher
	raw             RawFetcher
	cache           Pinger
	version         string
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(d Deps) *CatalogService {
	runners := make(map[models.ArtifactKind]enrich.Runner, len(d.Runners))
	for _, r := range d.Runners {
		runners[r.Kind()] = r
	}
	return &CatalogService{
		store:           d.Store,
		syncer:          d.Syncer,
		syncUnavailable: d.SyncUnavailable,
		runners:         runners,
		search:          d.Search,
		raw:             d.Raw,
		cache:           d.Cache,
		version:         d.Version,
	}
}

// Sync runs one catalog synchronization.
func (s *CatalogService) Sync(ctx context.Context) (*models.SyncResult, error) {
	if s.syncer == nil {
		if s.syncUnavailable != nil {
			return nil, s.syncUnavailable
		}
		return nil, errors.New("catalog sync is not configured")
	}
	return s.syncer.Run(ctx)
}

// Runner returns the scheduler for kind.
func (s *CatalogService) Runner(kind models.ArtifactKind) (enrich.Runner, error) {
	r, ok := s.runners[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return r, nil
}

// Enrich runs one window of the scheduler for kind.
func (s *CatalogService) Enrich(ctx context.Context, kind models.ArtifactKind, w models.EnrichWindow) (*models.EnrichResult, error) {
	r, err := s.Runner(kind)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, w)
}

// EnrichAll invokes the scheduler for kind from w.Offset, resuming from each
// returned NextOffset until no work remains. progress, if set, sees every
// batch result. The returned result aggregates all batches.
func (s *CatalogService) EnrichAll(ctx context.Context, kind models.ArtifactKind, w models.EnrichWindow, progress func(*models.EnrichResult)) (*models.EnrichResult, error) {
	r, err := s.Runner(kind)
	if err != nil {
		return nil, err
	}

	total := &models.EnrichResult{Kind: kind, State: models.EnrichDone, NextOffset: w.Offset, Errors: []string{}}
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := r.Run(ctx, models.EnrichWindow{Offset: total.NextOffset, Limit: w.Limit})
		if err != nil {
			return total, err
		}
		if progress != nil {
			progress(res)
		}

		advanced := res.NextOffset > total.NextOffset
		total.Processed += res.Processed
		total.Succeeded += res.Succeeded
		total.Failed += res.Failed
		total.Errors = append(total.Errors, res.Errors...)
		total.NextOffset = res.NextOffset
		total.HasMore = res.HasMore
		total.State = res.State

		if !res.HasMore || !advanced {
			return total, nil
		}
	}
}

// Search runs a semantic search.
func (s *CatalogService) Search(ctx context.Context, query string, limit int) (*models.SearchResponse, error) {
	return s.search.Search(ctx, query, limit)
}

// ListWorkflows returns a page of the catalog.
func (s *CatalogService) ListWorkflows(ctx context.Context, opts repository.ListOptions) ([]models.CatalogEntry, error) {
	entries, err := s.store.ListWorkflows(ctx, opts)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []models.CatalogEntry{}
	}
	return entries, nil
}

// GetWorkflow returns an entry with whichever artifacts exist for it.
func (s *CatalogService) GetWorkflow(ctx context.Context, slug string) (*models.WorkflowDetail, error) {
	entry, err := s.store.GetWorkflowBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	detail := &models.WorkflowDetail{CatalogEntry: *entry}

	if detail.Description, err = s.store.GetDescription(ctx, entry.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if detail.SEO, err = s.store.GetSEO(ctx, entry.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if detail.HasEmbedding, err = s.store.HasEmbedding(ctx, entry.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

// Download returns the raw definition file of an entry.
func (s *CatalogService) Download(ctx context.Context, slug string) (*models.CatalogEntry, []byte, error) {
	entry, err := s.store.GetWorkflowBySlug(ctx, slug)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.raw.FetchRaw(ctx, entry.RawURL)
	if err != nil {
		return entry, nil, fmt.Errorf("download %s: %w", slug, err)
	}
	return entry, data, nil
}

// Health checks the database and, when configured, the cache. The second
// return value is false when a required dependency is down.
func (s *CatalogService) Health(ctx context.Context) (*models.HealthStatus, bool) {
	status := &models.HealthStatus{
		Status:    "ok",
		Service:   ServiceName,
		Version:   s.version,
		Timestamp: time.Now().UTC(),
		Checks:    map[string]string{},
	}
	healthy := true

	if err := s.store.Ping(ctx); err != nil {
		status.Checks["database"] = err.Error()
		status.Status = "unavailable"
		healthy = false
	} else {
		status.Checks["database"] = "ok"
	}

	if s.cache != nil {
		if err := s.cache.Ping(ctx); err != nil {
			status.Checks["cache"] = err.Error()
			if healthy {
				status.Status = "degraded"
			}
		} else {
			status.Checks["cache"] = "ok"
		}
	}
	return status, healthy
}
