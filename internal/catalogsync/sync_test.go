package catalogsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/classify"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/logging"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/source"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

type memStore struct {
	mu       sync.Mutex
	rows     map[string]models.CatalogEntry
	writes   int
	failSlug string
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]models.CatalogEntry)}
}

func (m *memStore) UpsertWorkflow(_ context.Context, e *models.CatalogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Slug == m.failSlug {
		return errors.New("constraint violation")
	}
	m.writes++
	now := time.Now()
	if existing, ok := m.rows[e.Slug]; ok {
		e.ID = existing.ID
		e.CreatedAt = existing.CreatedAt
	} else {
		e.ID = uuid.NewString()
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	m.rows[e.Slug] = *e
	return nil
}

func (m *memStore) SourceSHAs(context.Context) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.rows))
	for slug, e := range m.rows {
		out[slug] = e.SourceSHA
	}
	return out, nil
}

func hubspotWorkflow() []byte {
	nodes := make([]map[string]any, 0, 12)
	for i := 0; i < 12; i++ {
		n := map[string]any{
			"id":       fmt.Sprintf("n%d", i),
			"name":     fmt.Sprintf("Step %d", i),
			"type":     "n8n-nodes-base.set",
			"position": []float64{float64(i * 100), 0},
		}
		if i == 3 {
			n["type"] = "n8n-nodes-base.hubspot"
			n["credentials"] = map[string]any{"hubspotApi": map[string]any{"id": "1"}}
		}
		nodes = append(nodes, n)
	}
	data, _ := json.Marshal(map[string]any{"name": "HubSpot Sync", "nodes": nodes, "connections": map[string]any{}})
	return data
}

type fixture struct {
	tree      []source.Blob
	files     map[string][]byte
	rawCalls  atomic.Int32
	status    int
	truncated bool
}

func (fx *fixture) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/repos/acme/flows/git/trees/main", func(w http.ResponseWriter, r *http.Request) {
		if fx.status != 0 {
			w.WriteHeader(fx.status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"tree": fx.tree, "truncated": fx.truncated})
	})
	mux.HandleFunc("/raw/acme/flows/main/", func(w http.ResponseWriter, r *http.Request) {
		fx.rawCalls.Add(1)
		p := r.URL.Path[len("/raw/acme/flows/main/"):]
		data, ok := fx.files[p]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(data)
	})
	return mux
}

func newSyncer(t *testing.T, fx *fixture, store Store, opts Options) *Syncer {
	t.Helper()
	srv := httptest.NewServer(fx.handler())
	t.Cleanup(srv.Close)
	fetcher := source.NewFetcher(source.Config{
		Owner:      "acme",
		Repo:       "flows",
		Branch:     "main",
		APIBaseURL: srv.URL + "/api",
		RawBaseURL: srv.URL + "/raw",
		BatchSize:  10,
	}, logging.NewNop())
	return New(fetcher, store, classify.New(classify.FirstMatch), logging.NewNop(), opts)
}

func hubspotFixture() *fixture {
	return &fixture{
		tree: []source.Blob{
			{Path: "hubspot", Type: "tree"},
			{Path: "hubspot/sync.json", Type: "blob", Size: 900, SHA: "sha-1"},
			{Path: "notes.txt", Type: "blob", Size: 12, SHA: "sha-2"},
		},
		files: map[string][]byte{
			"hubspot/sync.json": hubspotWorkflow(),
			"notes.txt":         []byte("not a workflow"),
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	fx := hubspotFixture()
	store := newMemStore()

	result, err := newSyncer(t, fx, store, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 3, result.Listed)
	assert.Equal(t, 1, result.Filtered)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Upserted)
	assert.EqualValues(t, 1, fx.rawCalls.Load(), "notes.txt must be filtered before download")

	require.Len(t, store.rows, 1)
	entry := store.rows["hubspot-sync-json"]
	assert.Equal(t, "HubSpot Sync", entry.Name)
	assert.Equal(t, "CRM & Sales", entry.Category)
	assert.Equal(t, models.ComplexityMedium, entry.Complexity)
	assert.Equal(t, 12, entry.NodeCount)
	assert.True(t, entry.HasCredentials)
	assert.Contains(t, entry.Tags, "hubspot")
	assert.Equal(t, "sha-1", entry.SourceSHA)
	assert.Equal(t, int64(900), entry.SizeBytes)
}

func TestRun_NotAWorkflowProducesNoWrites(t *testing.T) {
	fx := &fixture{
		tree:  []source.Blob{{Path: "misc/config.json", Type: "blob", SHA: "x"}},
		files: map[string][]byte{"misc/config.json": []byte(`{"foo": "bar"}`)},
	}
	store := newMemStore()

	result, err := newSyncer(t, fx, store, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Upserted)
	assert.Equal(t, 0, store.writes)
}

func TestRun_IsIdempotent(t *testing.T) {
	fx := hubspotFixture()
	store := newMemStore()
	syncer := newSyncer(t, fx, store, Options{})

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)
	first := store.rows["hubspot-sync-json"]

	second, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, second.Upserted)

	require.Len(t, store.rows, 1)
	again := store.rows["hubspot-sync-json"]
	assert.Equal(t, first.ID, again.ID)
	first.UpdatedAt, again.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, again)
}

func TestRun_ListingFailureIsFatal(t *testing.T) {
	fx := hubspotFixture()
	fx.status = http.StatusInternalServerError
	store := newMemStore()

	result, err := newSyncer(t, fx, store, Options{}).Run(context.Background())
	require.Error(t, err)
	var listing *source.ListingError
	assert.True(t, errors.As(err, &listing))
	assert.Equal(t, 0, store.writes)
	assert.EqualValues(t, 0, fx.rawCalls.Load())
	assert.NotEmpty(t, result.RunID)
}

func TestRun_TruncatedListingIsFatal(t *testing.T) {
	fx := hubspotFixture()
	fx.truncated = true
	store := newMemStore()

	_, err := newSyncer(t, fx, store, Options{}).Run(context.Background())
	var truncated *source.TruncatedListingError
	require.True(t, errors.As(err, &truncated), "got %v", err)
	assert.Equal(t, len(fx.tree), truncated.Entries)
	assert.Equal(t, 0, store.writes)
	assert.EqualValues(t, 0, fx.rawCalls.Load())
}

func TestRun_PerFileFailuresAreCounted(t *testing.T) {
	fx := &fixture{
		tree: []source.Blob{
			{Path: "hubspot/sync.json", Type: "blob", SHA: "a"},
			{Path: "slack/gone.json", Type: "blob", SHA: "b"},
			{Path: "gmail/send.json", Type: "blob", SHA: "c"},
		},
		files: map[string][]byte{
			"hubspot/sync.json": hubspotWorkflow(),
			"gmail/send.json":   []byte(`{"nodes":[{"name":"Send","type":"n8n-nodes-base.gmail"}]}`),
		},
	}
	store := newMemStore()
	store.failSlug = "gmail-send-json"

	result, err := newSyncer(t, fx, store, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 1, result.DownloadFailed)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, 1, result.Failed)
	assert.Len(t, result.Errors, 2)
}

func TestRun_IncrementalSkipsUnchanged(t *testing.T) {
	fx := hubspotFixture()
	store := newMemStore()
	syncer := newSyncer(t, fx, store, Options{Incremental: true})

	_, err := syncer.Run(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, fx.rawCalls.Load())

	result, err := syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Unchanged)
	assert.Equal(t, 0, result.Downloaded)
	assert.EqualValues(t, 1, fx.rawCalls.Load())

	fx.tree[1].SHA = "sha-new"
	result, err = syncer.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Upserted)
	assert.Equal(t, "sha-new", store.rows["hubspot-sync-json"].SourceSHA)
}
