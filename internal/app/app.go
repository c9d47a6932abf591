// Package app assembles the catalog service from configuration. Operations
// whose settings are missing stay unconfigured and report so when invoked.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/1weso1/aw-nexus-folio-sub001/internal/ai"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/cache"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/catalogsync"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/classify"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/config"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/enrich"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/logging"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/repository"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/search"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/services"
	"github.com/1weso1/aw-nexus-folio-sub001/internal/source"
	"github.com/1weso1/aw-nexus-folio-sub001/pkg/models"
)

// Version is reported by the health check and the MCP handshake.
var Version = "dev"

// App holds the assembled service and the resources it owns.
type App struct {
	Service *services.CatalogService

	pool  *pgxpool.Pool
	redis *redis.Client
}

// New connects to the database and, when configured, the cache, and wires
// every catalog operation.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	pool, err := repository.Connect(ctx, cfg.DSN())
	if err != nil {
		return nil, err
	}
	a := &App{pool: pool}

	svc, err := a.build(ctx, cfg, repository.NewPostgresCatalog(pool), logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc
	return a, nil
}

func (a *App) build(ctx context.Context, cfg *config.Config, store repository.Repository, logger *logging.Logger) (*services.CatalogService, error) {
	fetcher := source.NewFetcher(source.Config{
		Owner:      cfg.Source.Owner,
		Repo:       cfg.Source.Repo,
		Branch:     cfg.Source.Branch,
		Token:      cfg.Source.Token,
		APIBaseURL: cfg.Source.APIBaseURL,
		RawBaseURL: cfg.Source.RawBaseURL,
		BatchSize:  cfg.Source.BatchSize,
		BatchDelay: cfg.Source.BatchDelay,
		Timeout:    cfg.Source.Timeout,
		Retries:    cfg.Source.Retries,
	}, logger)

	deps := services.Deps{
		Store:   store,
		Raw:     fetcher,
		Version: Version,
	}

	if err := cfg.ValidateSource(); err != nil {
		logger.Warn("catalog sync disabled", "reason", err)
		deps.SyncUnavailable = err
	} else {
		classifier := classify.New(classify.ParseResolution(cfg.Classify.CategoryRule))
		deps.Syncer = catalogsync.New(fetcher, store, classifier, logger.With("component", "sync"), catalogsync.Options{
			Incremental: cfg.Source.Incremental,
		})
	}

	var chat enrich.Completer
	if err := cfg.ValidateChat(); err != nil {
		logger.Warn("text generation disabled", "reason", err)
	} else {
		chat = ai.NewChatClient(ai.ChatConfig{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.ChatModel,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
	}

	var embedder ai.Embedder
	if err := cfg.ValidateEmbedding(); err != nil {
		logger.Warn("embeddings disabled", "reason", err)
	} else {
		e, err := ai.NewEmbedder(ai.EmbeddingConfig{
			Flavor:       cfg.AI.Embedding.Flavor,
			BaseURL:      cfg.AI.Embedding.BaseURL,
			APIKey:       cfg.AI.Embedding.APIKey,
			Model:        cfg.AI.Embedding.Model,
			Path:         cfg.AI.Embedding.Path,
			ResponsePath: cfg.AI.Embedding.ResponsePath,
			Timeout:      cfg.AI.Timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		embedder = e
	}

	var limiter *rate.Limiter
	if cfg.AI.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.AI.RequestsPerSecond), 1)
	}
	strategy := enrich.ParseStrategy(cfg.Enrich.Strategy)
	opts := func(limit int) enrich.Options {
		return enrich.Options{Strategy: strategy, DefaultLimit: limit, Limiter: limiter}
	}
	kindLogger := func(kind models.ArtifactKind) *logging.Logger {
		return logger.With("component", "enrich", "kind", string(kind))
	}
	descLog, seoLog, embLog := kindLogger(models.ArtifactDescription), kindLogger(models.ArtifactSEO), kindLogger(models.ArtifactEmbedding)
	deps.Runners = []enrich.Runner{
		enrich.NewDescriptionScheduler(
			enrich.NewDescriptionGenerator(chat, store, fetcher, cfg.Enrich.MaxContextBytes, descLog),
			store, opts(cfg.Enrich.DescriptionLimit), descLog),
		enrich.NewSEOScheduler(
			enrich.NewSEOGenerator(chat, store, seoLog),
			store, opts(cfg.Enrich.SEOLimit), seoLog),
		enrich.NewEmbeddingScheduler(
			enrich.NewEmbeddingGenerator(embedder, store, embLog),
			store, opts(cfg.Enrich.EmbeddingLimit), embLog),
	}

	var queryCache search.QueryCache
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c := cache.NewEmbeddingCache(a.redis, "", cfg.Redis.TTL)
		if err := c.Ping(ctx); err != nil {
			logger.Warn("query cache unreachable, continuing without it", "addr", cfg.Redis.Addr, "error", err)
		}
		queryCache = c
		deps.Cache = c
	}

	deps.Search = search.NewGateway(embedder, store, queryCache, search.Options{
		Threshold:    cfg.Search.Threshold,
		FallbackRows: cfg.Search.FallbackRows,
		DefaultLimit: cfg.Search.DefaultLimit,
	}, logger.With("component", "search"))

	return services.NewCatalogService(deps), nil
}

// Close releases the database pool and the cache client.
func (a *App) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
