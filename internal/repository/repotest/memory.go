// Package repotest provides an in-memory repository.Repository for tests.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// Memory is a repository.Repository backed by maps. Entries keep insertion
// order, which stands in for creation order.
type Memory struct {
	mu           sync.Mutex
	order        []string
	entries      map[string]*models.CatalogEntry
	descriptions map[string]*models.DescriptionArtifact
	seo          map[string]*models.SEOArtifact
	embeddings   map[string]*models.EmbeddingArtifact

	// PingErr and MatchErr, when set, are returned by Ping and MatchWorkflows.
	PingErr  error
	MatchErr error
}

var _ repository.Repository = (*Memory)(nil)

// NewMemory creates an empty Memory.
func NewMemory() *Memory {
	return &Memory{
		entries:      map[string]*models.CatalogEntry{},
		descriptions: map[string]*models.DescriptionArtifact{},
		seo:          map[string]*models.SEOArtifact{},
		embeddings:   map[string]*models.EmbeddingArtifact{},
	}
}

func (m *Memory) Ping(context.Context) error { return m.PingErr }

func (m *Memory) UpsertWorkflow(_ context.Context, e *models.CatalogEntry) error {
	if e.Slug == "" {
		return fmt.Errorf("%w: slug is required", repository.ErrInvalidEntry)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if existing, ok := m.entries[e.Slug]; ok {
		e.ID, e.CreatedAt = existing.ID, existing.CreatedAt
	} else {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		e.CreatedAt = now
		m.order = append(m.order, e.Slug)
	}
	e.UpdatedAt = now
	stored := *e
	m.entries[e.Slug] = &stored
	return nil
}

func (m *Memory) ListWorkflows(_ context.Context, opts repository.ListOptions) ([]models.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []models.CatalogEntry
	for _, slug := range m.order {
		e := m.entries[slug]
		if opts.Category != "" && e.Category != opts.Category {
			continue
		}
		all = append(all, *e)
	}
	if opts.Offset >= len(all) {
		return nil, nil
	}
	end := len(all)
	if opts.Limit > 0 {
		end = min(opts.Offset+opts.Limit, len(all))
	}
	return all[opts.Offset:end], nil
}

func (m *Memory) GetWorkflowBySlug(_ context.Context, slug string) (*models.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[slug]
	if !ok {
		return nil, repository.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (m *Memory) GetWorkflowsByIDs(_ context.Context, ids []string) ([]models.CatalogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.CatalogEntry
	for _, e := range m.entries {
		if want[e.ID] {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *Memory) SourceSHAs(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.entries))
	for slug, e := range m.entries {
		out[slug] = e.SourceSHA
	}
	return out, nil
}

func (m *Memory) ArtifactWorkflowIDs(_ context.Context, kind models.ArtifactKind) (map[string]struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := map[string]struct{}{}
	var keys []string
	switch kind {
	case models.ArtifactDescription:
		keys = mapKeys(m.descriptions)
	case models.ArtifactSEO:
		keys = mapKeys(m.seo)
	case models.ArtifactEmbedding:
		keys = mapKeys(m.embeddings)
	}
	for _, k := range keys {
		ids[k] = struct{}{}
	}
	return ids, nil
}

func (m *Memory) UpsertDescription(_ context.Context, a *models.DescriptionArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.descriptions[a.WorkflowID] = a
	return nil
}

func (m *Memory) UpsertSEO(_ context.Context, a *models.SEOArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seo[a.WorkflowID] = a
	return nil
}

func (m *Memory) UpsertEmbedding(_ context.Context, a *models.EmbeddingArtifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.embeddings[a.WorkflowID] = a
	return nil
}

func (m *Memory) GetDescription(_ context.Context, id string) (*models.DescriptionArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.descriptions[id]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func (m *Memory) GetSEO(_ context.Context, id string) (*models.SEOArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.seo[id]; ok {
		return a, nil
	}
	return nil, repository.ErrNotFound
}

func (m *Memory) HasEmbedding(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.embeddings[id]
	return ok, nil
}

// MatchWorkflows returns MatchErr when set. Otherwise it ranks like the
// match_workflows SQL function, using rank.
func (m *Memory) MatchWorkflows(ctx context.Context, query []float32, threshold float64, limit int) ([]repository.Match, error) {
	if m.MatchErr != nil {
		return nil, m.MatchErr
	}
	rows, _ := m.ListEmbeddings(ctx, 0)
	return rank(query, rows, threshold, limit), nil
}

func (m *Memory) ListEmbeddings(_ context.Context, limit int) ([]models.EmbeddingArtifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := mapKeys(m.embeddings)
	sort.Strings(keys)
	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	out := make([]models.EmbeddingArtifact, 0, len(keys))
	for _, k := range keys {
		out = append(out, *m.embeddings[k])
	}
	return out, nil
}

func mapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}
