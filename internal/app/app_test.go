package app

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/config"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/enrich"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/logging"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository/repotest"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/search"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

func TestBuild_Unconfigured(t *testing.T) {
	a := &App{}
	svc, err := a.build(context.Background(), &config.Config{}, repotest.NewMemory(), logging.NewNop())
	require.NoError(t, err)

	_, err = svc.Sync(context.Background())
	assert.True(t, errors.Is(err, config.ErrMissing))

	for _, kind := range models.ArtifactKinds {
		_, err = svc.Enrich(context.Background(), kind, models.EnrichWindow{})
		assert.True(t, errors.Is(err, enrich.ErrNotConfigured), kind)
	}

	_, err = svc.Search(context.Background(), "anything", 5)
	assert.True(t, errors.Is(err, search.ErrNotConfigured))

	status, ok := svc.Health(context.Background())
	assert.True(t, ok)
	assert.NotContains(t, status.Checks, "cache")
}

func TestBuild_WithCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{}
	cfg.Redis.Addr = mr.Addr()
	cfg.AI.Embedding.Flavor = "ollama"
	cfg.AI.Embedding.BaseURL = "http://localhost:11434"
	cfg.AI.Embedding.Model = "nomic-embed-text"

	a := &App{}
	t.Cleanup(a.Close)
	svc, err := a.build(context.Background(), cfg, repotest.NewMemory(), logging.NewNop())
	require.NoError(t, err)

	status, ok := svc.Health(context.Background())
	assert.True(t, ok)
	assert.Equal(t, "ok", status.Checks["cache"])

	// no entries yet, so the embedding scheduler finishes without calling out
	res, err := svc.Enrich(context.Background(), models.ArtifactEmbedding, models.EnrichWindow{})
	require.NoError(t, err)
	assert.Equal(t, models.EnrichDone, res.State)
	assert.Zero(t, res.Processed)
}

func TestBuild_BadEmbeddingShape(t *testing.T) {
	cfg := &config.Config{}
	cfg.AI.Embedding.Flavor = "custom"
	cfg.AI.Embedding.BaseURL = "http://localhost:9000"
	cfg.AI.Embedding.Model = "m"
	cfg.AI.Embedding.ResponsePath = ".data[["

	_, err := (&App{}).build(context.Background(), cfg, repotest.NewMemory(), logging.NewNop())
	assert.Error(t, err)
}
