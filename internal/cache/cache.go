// Package cache provides an optional redis-backed cache for introspection
// documents, so repeated dashboard actions against the same target do not
// re-introspect on every click.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/twmb/murmur3"

	"github.com/kestrelsec/graphaudit/internal/config"
)

// Cache is nil-safe: a nil *Cache misses on every lookup and drops every
// store, so call sites need no configuration checks.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis when an address is configured; otherwise it returns
// nil and caching stays off.
func New(ctx context.Context, cfg config.CacheConfig) (*Cache, error) {
	if cfg.Addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Cache{client: client, ttl: ttl}, nil
}

// Key derives the cache key for a target/headers pair. Headers participate
// because different credentials can see different schemas.
func Key(target, rawHeaders string) string {
	h := murmur3.Sum64([]byte(target + "\x00" + rawHeaders))
	return fmt.Sprintf("graphaudit:introspection:%016x", h)
}

// GetIntrospection returns the cached document for key, or ok=false.
func (c *Cache) GetIntrospection(ctx context.Context, key string) (map[string]interface{}, bool) {
	if c == nil {
		return nil, false
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var document map[string]interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return nil, false
	}
	return document, true
}

// SetIntrospection stores the document under key for the configured TTL.
func (c *Cache) SetIntrospection(ctx context.Context, key string, document map[string]interface{}) {
	if c == nil {
		return
	}

	raw, err := json.Marshal(document)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, key, raw, c.ttl).Err()
}

func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
