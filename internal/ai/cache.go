package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/meddiag-engine/internal/domain"
)

const cacheKeyPrefix = "meddiag:ai:"

// ResponseCache keeps validated model outputs. Tier 1 is an in-memory
// expirable LRU, tier 2 an optional Redis instance shared between replicas.
type ResponseCache struct {
	memory *expirable.LRU[string, string]
	redis  *redis.Client
	// redisErr is set when Redis was configured but could not be reached.
	redisErr error
	ttl      time.Duration
	logger   *logrus.Logger
}

// NewMemoryCache creates a cache with only the in-memory tier.
func NewMemoryCache(cfg domain.CacheConfig, logger *logrus.Logger) *ResponseCache {
	size := cfg.MemorySize
	if size <= 0 {
		size = 512
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &ResponseCache{
		memory: expirable.NewLRU[string, string](size, nil, ttl),
		ttl:    ttl,
		logger: logger,
	}
}

// NewDegradedCache creates a memory-only cache standing in for a configured
// Redis tier that failed with cause. Ping keeps reporting cause.
func NewDegradedCache(cfg domain.CacheConfig, logger *logrus.Logger, cause error) *ResponseCache {
	c := NewMemoryCache(cfg, logger)
	c.redisErr = cause
	return c
}

// NewResponseCache creates the cache and connects the Redis tier when a URL
// is configured. A Redis that cannot be reached is an error.
func NewResponseCache(cfg domain.CacheConfig, logger *logrus.Logger) (*ResponseCache, error) {
	c := NewMemoryCache(cfg, logger)
	if cfg.RedisURL == "" {
		return c, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	c.redis = client
	return c, nil
}

// Key derives the cache key of one request.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a cached document. Redis hits are promoted to memory.
func (c *ResponseCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil {
		return "", false
	}
	if v, ok := c.memory.Get(key); ok {
		return v, true
	}
	if c.redis == nil {
		return "", false
	}

	v, err := c.redis.Get(ctx, cacheKeyPrefix+key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WithError(err).Warn("Redis cache read failed")
		}
		return "", false
	}
	c.memory.Add(key, v)
	return v, true
}

// Set stores a document in every tier. Redis failures are logged only.
func (c *ResponseCache) Set(ctx context.Context, key, value string) {
	if c == nil {
		return
	}
	c.memory.Add(key, value)
	if c.redis == nil {
		return
	}
	if err := c.redis.Set(ctx, cacheKeyPrefix+key, value, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Redis cache write failed")
	}
}

// Len returns the number of in-memory entries.
func (c *ResponseCache) Len() int {
	if c == nil {
		return 0
	}
	return c.memory.Len()
}

// HasRedis reports whether the shared tier is connected.
func (c *ResponseCache) HasRedis() bool {
	return c != nil && c.redis != nil
}

// Ping checks the Redis tier. A cache never configured with Redis always
// succeeds; a degraded one returns the connection failure.
func (c *ResponseCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	if c.redis == nil {
		return c.redisErr
	}
	return c.redis.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (c *ResponseCache) Close() error {
	if c == nil || c.redis == nil {
		return nil
	}
	return c.redis.Close()
}
