package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/config"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/enrich"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository/repotest"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// pagedRunner pretends the catalog has total unenriched entries.
type pagedRunner struct {
	total   int
	windows []models.EnrichWindow
	stall   bool
}

func (r *pagedRunner) Kind() models.ArtifactKind { return models.ArtifactDescription }
func (r *pagedRunner) DefaultLimit() int         { return 10 }

func (r *pagedRunner) Run(_ context.Context, w models.EnrichWindow) (*models.EnrichResult, error) {
	r.windows = append(r.windows, w)
	if r.stall {
		return &models.EnrichResult{NextOffset: w.Offset, HasMore: true, State: models.EnrichPartial}, nil
	}
	n := min(w.Limit, r.total-w.Offset)
	res := &models.EnrichResult{
		Processed:  n,
		Succeeded:  n - 1,
		Failed:     1,
		Errors:     []string{"boom"},
		NextOffset: w.Offset + n,
		HasMore:    w.Offset+n < r.total,
	}
	res.State = models.EnrichDone
	if res.HasMore {
		res.State = models.EnrichPartial
	}
	return res, nil
}

type rawFunc func(ctx context.Context, url string) ([]byte, error)

func (f rawFunc) FetchRaw(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestEnrichAll_FollowsCursor(t *testing.T) {
	runner := &pagedRunner{total: 25}
	svc := NewCatalogService(Deps{Store: repotest.NewMemory(), Runners: []enrich.Runner{runner}})

	var batches int
	total, err := svc.EnrichAll(context.Background(), models.ArtifactDescription, models.EnrichWindow{Limit: 10},
		func(*models.EnrichResult) { batches++ })
	require.NoError(t, err)

	assert.Equal(t, 3, batches)
	assert.Equal(t, []models.EnrichWindow{{Offset: 0, Limit: 10}, {Offset: 10, Limit: 10}, {Offset: 20, Limit: 10}}, runner.windows)
	assert.Equal(t, 25, total.Processed)
	assert.Equal(t, 22, total.Succeeded)
	assert.Equal(t, 3, total.Failed)
	assert.Len(t, total.Errors, 3)
	assert.Equal(t, 25, total.NextOffset)
	assert.False(t, total.HasMore)
	assert.Equal(t, models.EnrichDone, total.State)
}

func TestEnrichAll_StopsWithoutProgress(t *testing.T) {
	runner := &pagedRunner{stall: true}
	svc := NewCatalogService(Deps{Store: repotest.NewMemory(), Runners: []enrich.Runner{runner}})

	total, err := svc.EnrichAll(context.Background(), models.ArtifactDescription, models.EnrichWindow{Limit: 10}, nil)
	require.NoError(t, err)
	assert.Len(t, runner.windows, 1)
	assert.True(t, total.HasMore)
}

func TestEnrich_UnknownKind(t *testing.T) {
	svc := NewCatalogService(Deps{Store: repotest.NewMemory()})
	_, err := svc.Enrich(context.Background(), models.ArtifactSEO, models.EnrichWindow{Limit: 1})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestSync_NotConfigured(t *testing.T) {
	missing := errors.Join(config.ErrMissing, errors.New("source.owner"))
	svc := NewCatalogService(Deps{Store: repotest.NewMemory(), SyncUnavailable: missing})
	_, err := svc.Sync(context.Background())
	assert.ErrorIs(t, err, config.ErrMissing)
}

func TestGetWorkflow(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewMemory()
	entry := &models.CatalogEntry{Slug: "hubspot-sync-json", Name: "Sync", RawURL: "https://raw/x.json"}
	require.NoError(t, store.UpsertWorkflow(ctx, entry))
	require.NoError(t, store.UpsertDescription(ctx, &models.DescriptionArtifact{WorkflowID: entry.ID, Description: "Syncs"}))
	require.NoError(t, store.UpsertEmbedding(ctx, &models.EmbeddingArtifact{WorkflowID: entry.ID, Vector: []float32{1}}))

	svc := NewCatalogService(Deps{Store: store})
	detail, err := svc.GetWorkflow(ctx, "hubspot-sync-json")
	require.NoError(t, err)
	assert.Equal(t, "Syncs", detail.Description.Description)
	assert.Nil(t, detail.SEO)
	assert.True(t, detail.HasEmbedding)

	_, err = svc.GetWorkflow(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDownload(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewMemory()
	require.NoError(t, store.UpsertWorkflow(ctx, &models.CatalogEntry{Slug: "a-json", RawURL: "https://raw/a.json"}))

	var gotURL string
	svc := NewCatalogService(Deps{Store: store, Raw: rawFunc(func(_ context.Context, url string) ([]byte, error) {
		gotURL = url
		return []byte(`{"nodes":[]}`), nil
	})})

	entry, data, err := svc.Download(ctx, "a-json")
	require.NoError(t, err)
	assert.Equal(t, "a-json", entry.Slug)
	assert.Equal(t, "https://raw/a.json", gotURL)
	assert.JSONEq(t, `{"nodes":[]}`, string(data))
}

func TestHealth(t *testing.T) {
	ctx := context.Background()

	store := repotest.NewMemory()
	status, ok := NewCatalogService(Deps{Store: store, Version: "v1"}).Health(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "v1", status.Version)

	status, ok = NewCatalogService(Deps{Store: store, Cache: pinger{err: errors.New("refused")}}).Health(ctx)
	assert.True(t, ok)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, "refused", status.Checks["cache"])

	store.PingErr = errors.New("down")
	status, ok = NewCatalogService(Deps{Store: store}).Health(ctx)
	assert.False(t, ok)
	assert.Equal(t, "unavailable", status.Status)
}

func TestListWorkflows_EmptyIsNotNil(t *testing.T) {
	svc := NewCatalogService(Deps{Store: repotest.NewMemory()})
	entries, err := svc.ListWorkflows(context.Background(), repository.ListOptions{Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}
