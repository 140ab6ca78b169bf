// Package cache provides a Redis-backed query cache with singleflight
// deduplication. Query terms are normalised and hashed so that
// semantically identical searches share one cache entry.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/quiverdb/quiver/internal/engine"
	"github.com/quiverdb/quiver/pkg/config"
	pkgredis "github.com/quiverdb/quiver/pkg/redis"
)

const keyPrefix = "quiver:"

// QueryCache wraps a Redis client with singleflight de-duplication and
// hit/miss counters.
type QueryCache struct {
	client *pkgredis.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a QueryCache backed by the given Redis client.
func New(client *pkgredis.Client, cfg config.RedisConfig) *QueryCache {
	return &QueryCache{
		client: client,
		cfg:    cfg,
		logger: slog.Default().With("component", "query-cache"),
	}
}

// Get reads a cached result. Returns (zero, false) on miss or error.
func (c *QueryCache) Get(ctx context.Context, kind string, terms []string) (engine.Results, bool) {
	key := c.buildKey(kind, terms)
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.misses.Add(1)
		return engine.Results{}, false
	}
	var results engine.Results
	if err := json.Unmarshal([]byte(data), &results); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.misses.Add(1)
		return engine.Results{}, false
	}
	c.hits.Add(1)
	return results, true
}

// Set stores a result with the configured TTL.
func (c *QueryCache) Set(ctx context.Context, kind string, terms []string, results engine.Results) {
	key := c.buildKey(kind, terms)
	data, err := json.Marshal(results)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute returns a cached result if available; otherwise invokes
// computeFn, caches the outcome, and returns it. A singleflight group
// prevents thundering-herd cache-miss storms.
func (c *QueryCache) GetOrCompute(
	ctx context.Context,
	kind string,
	terms []string,
	computeFn func() (engine.Results, error),
) (engine.Results, bool, error) {
	if results, ok := c.Get(ctx, kind, terms); ok {
		return results, true, nil
	}
	key := c.buildKey(kind, terms)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if results, ok := c.Get(ctx, kind, terms); ok {
			return results, nil
		}
		results, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.Set(ctx, kind, terms, results)
		return results, nil
	})
	if err != nil {
		return engine.Results{}, false, err
	}
	return val.(engine.Results), false, nil
}

// Invalidate flushes every cached query result. The HTTP ingest handler
// calls it after each indexed document; documents ingested through the
// Kafka consumer do not invalidate the cache.
func (c *QueryCache) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating cache: %w", err)
	}
	c.logger.Info("cache invalidated", "keys_deleted", deleted)
	return nil
}

// Stats returns the cumulative hit and miss counters.
func (c *QueryCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// buildKey produces a deterministic SHA-256 cache key. Free-text terms are
// order-insensitive; phrase terms are not.
func (c *QueryCache) buildKey(kind string, terms []string) string {
	canonical := make([]string, len(terms))
	for i, t := range terms {
		canonical[i] = strings.ToLower(t)
	}
	if kind != "phrase" {
		sort.Strings(canonical)
	}
	raw := kind + "|" + strings.Join(canonical, ",")
	hash := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
