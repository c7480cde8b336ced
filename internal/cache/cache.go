// Package cache stores catalog score maps in Redis. A Cache with no client
// behaves as an always-empty cache.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const keyPrefix = "habitat:scores:"

// ScoreCache caches catalog score maps with a TTL.
type ScoreCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// New connects to redisURL (redis://host:port/db). An empty URL returns a
// disabled cache.
func New(ctx context.Context, redisURL string, ttl time.Duration) (*ScoreCache, error) {
	c := &ScoreCache{ttl: ttl, log: zap.L().With(zap.String("component", "cache"))}
	if redisURL == "" {
		return c, nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return c, eris.Wrap(err, "cache: parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return c, eris.Wrap(err, "cache: redis ping")
	}
	c.client = client
	return c, nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *redis.Client, ttl time.Duration) *ScoreCache {
	return &ScoreCache{client: client, ttl: ttl, log: zap.L().With(zap.String("component", "cache"))}
}

// Available reports whether a Redis client is configured.
func (c *ScoreCache) Available() bool {
	return c != nil && c.client != nil
}

// GetScores returns the cached map for key. Redis errors are logged and
// reported as a miss.
func (c *ScoreCache) GetScores(ctx context.Context, key string) (map[string]*float64, bool) {
	if !c.Available() {
		return nil, false
	}
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.log.Warn("cache: get failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}

	var scores map[string]*float64
	if err := json.Unmarshal(val, &scores); err != nil {
		c.log.Warn("cache: corrupt entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return scores, true
}

// SetScores stores scores under key. Failures are logged, not returned.
func (c *ScoreCache) SetScores(ctx context.Context, key string, scores map[string]*float64) {
	if !c.Available() {
		return
	}
	data, err := json.Marshal(scores)
	if err != nil {
		c.log.Warn("cache: marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, keyPrefix+key, data, c.ttl).Err(); err != nil {
		c.log.Warn("cache: set failed", zap.String("key", key), zap.Error(err))
	}
}

// Invalidate removes every cached score map. It runs after each ingestion.
func (c *ScoreCache) Invalidate(ctx context.Context) error {
	if !c.Available() {
		return nil
	}

	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "cache: scan keys")
	}
	if len(keys) == 0 {
		return nil
	}
	return eris.Wrap(c.client.Del(ctx, keys...).Err(), "cache: delete keys")
}

// Close releases the Redis connection.
func (c *ScoreCache) Close() error {
	if !c.Available() {
		return nil
	}
	return c.client.Close()
}
