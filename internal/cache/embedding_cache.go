// Package cache stores query embeddings in redis so repeated searches skip
// the embedding service.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// EmbeddingCache caches query vectors keyed by model and query text.
type EmbeddingCache struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type cachedEmbedding struct {
	Vector    []float32 `json:"vector"`
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewEmbeddingCache creates an EmbeddingCache. A zero ttl defaults to 24h.
func NewEmbeddingCache(client redis.UniversalClient, prefix string, ttl time.Duration) *EmbeddingCache {
	if prefix == "" {
		prefix = "catalog:qemb:"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EmbeddingCache{redis: client, prefix: prefix, ttl: ttl}
}

// Get returns the cached vector. A miss is reported as (nil, false, nil).
func (c *EmbeddingCache) Get(ctx context.Context, model, query string) ([]float32, bool, error) {
	data, err := c.redis.Get(ctx, c.key(model, query)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var cached cachedEmbedding
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, false, err
	}
	return cached.Vector, true, nil
}

// Set stores a vector with the cache TTL.
func (c *EmbeddingCache) Set(ctx context.Context, model, query string, vector []float32) error {
	data, err := json.Marshal(cachedEmbedding{Vector: vector, Model: model, CreatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, c.key(model, query), data, c.ttl).Err()
}

// Ping checks the redis connection.
func (c *EmbeddingCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}

func (c *EmbeddingCache) key(model, query string) string {
	sum := sha256.Sum256([]byte(query))
	return c.prefix + model + ":" + hex.EncodeToString(sum[:])
}
