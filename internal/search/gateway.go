// Package search ranks catalog entries against a free-text query by cosine
// similarity of their embeddings.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/ai"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/metrics"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// Defaults for Options.
const (
	DefaultThreshold    = 0.3
	DefaultFallbackRows = 1000
	DefaultLimit        = 10
	MaxLimit            = 100
)

var (
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrNotConfigured is returned when no embedding service is configured.
	ErrNotConfigured = errors.New("search embedding service not configured")
)

var tracer = otel.Tracer("github.com/1weso1/aw-nexus-folio-sub001/internal/search")

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Store is the part of the catalog store used for ranking.
type Store interface {
	MatchWorkflows(ctx context.Context, query []float32, threshold float64, limit int) ([]repository.Match, error)
	ListEmbeddings(ctx context.Context, limit int) ([]models.EmbeddingArtifact, error)
	GetWorkflowsByIDs(ctx context.Context, ids []string) ([]models.CatalogEntry, error)
}

// QueryCache stores query embeddings.
type QueryCache interface {
	Get(ctx context.Context, model, query string) ([]float32, bool, error)
	Set(ctx context.Context, model, query string, vector []float32) error
}

// Options tune a Gateway.
type Options struct {
	Threshold    float64
	FallbackRows int
	DefaultLimit int
}

// Gateway answers semantic searches.
type Gateway struct {
	embedder ai.Embedder
	store    Store
	cache    QueryCache
	opts     Options
	logger   Logger
}

// NewGateway creates a Gateway. cache may be nil.
func NewGateway(embedder ai.Embedder, store Store, cache QueryCache, opts Options, logger Logger) *Gateway {
	if opts.Threshold <= 0 {
		opts.Threshold = DefaultThreshold
	}
	if opts.FallbackRows <= 0 {
		opts.FallbackRows = DefaultFallbackRows
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	return &Gateway{embedder: embedder, store: store, cache: cache, opts: opts, logger: logger}
}

// Search embeds the query and returns up to limit entries with similarity at
// or above the threshold, best first. Ranking runs in the database; if that
// fails, up to FallbackRows embeddings are ranked in process with the same
// similarity function and threshold.
func (g *Gateway) Search(ctx context.Context, query string, limit int) (*models.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if g.embedder == nil {
		return nil, ErrNotConfigured
	}
	if limit <= 0 {
		limit = g.opts.DefaultLimit
	}
	limit = min(limit, MaxLimit)

	ctx, span := tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.Int("search.limit", limit),
		attribute.Float64("search.threshold", g.opts.Threshold),
	))
	defer span.End()

	vec, err := g.queryEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	path := models.SearchPathDatabase
	matches, err := g.store.MatchWorkflows(ctx, vec, g.opts.Threshold, limit)
	if err != nil {
		g.logger.Warn("database ranking unavailable, ranking in process", "error", err)
		path = models.SearchPathFallback
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("error", err.Error())))
		rows, err := g.store.ListEmbeddings(ctx, g.opts.FallbackRows)
		if err != nil {
			return nil, fmt.Errorf("load embeddings: %w", err)
		}
		matches = Rank(vec, rows, g.opts.Threshold, limit)
	}
	metrics.SearchRequestsTotal.WithLabelValues(string(path)).Inc()
	span.SetAttributes(attribute.String("search.path", string(path)), attribute.Int("search.matches", len(matches)))

	results, err := g.hydrate(ctx, matches)
	if err != nil {
		return nil, err
	}
	return &models.SearchResponse{
		Query:     query,
		Threshold: g.opts.Threshold,
		Path:      path,
		Results:   results,
	}, nil
}

func (g *Gateway) queryEmbedding(ctx context.Context, query string) ([]float32, error) {
	model := g.embedder.Model()
	if g.cache != nil {
		vec, ok, err := g.cache.Get(ctx, model, query)
		switch {
		case err != nil:
			g.logger.Warn("query embedding cache read failed", "error", err)
		case ok:
			metrics.EmbeddingCacheTotal.WithLabelValues("hit").Inc()
			return vec, nil
		default:
			metrics.EmbeddingCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	vec, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	if g.cache != nil {
		if err := g.cache.Set(ctx, model, query, vec); err != nil {
			g.logger.Warn("query embedding cache write failed", "error", err)
		}
	}
	return vec, nil
}

// hydrate loads the entries for matches, keeping the match order.
func (g *Gateway) hydrate(ctx context.Context, matches []repository.Match) ([]*models.SearchResult, error) {
	results := make([]*models.SearchResult, 0, len(matches))
	if len(matches) == 0 {
		return results, nil
	}
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.WorkflowID
	}
	entries, err := g.store.GetWorkflowsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load matched workflows: %w", err)
	}
	byID := make(map[string]models.CatalogEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	for _, m := range matches {
		e, ok := byID[m.WorkflowID]
		if !ok {
			continue
		}
		results = append(results, &models.SearchResult{CatalogEntry: e, Similarity: m.Similarity})
	}
	return results, nil
}

// Rank scores rows against query and returns the best limit rows at or above
// threshold. Ties are broken by workflow ID, matching the database ordering.
func Rank(query []float32, rows []models.EmbeddingArtifact, threshold float64, limit int) []repository.Match {
	var matches []repository.Match
	for _, r := range rows {
		sim := CosineSimilarity(query, r.Vector)
		if sim >= threshold {
			matches = append(matches, repository.Match{WorkflowID: r.WorkflowID, Similarity: sim})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].WorkflowID < matches[j].WorkflowID
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// CosineSimilarity returns the cosine of the angle between a and b. It is 0
// when the lengths differ or either vector is all zeros.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
