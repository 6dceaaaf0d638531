package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vibecodezero/subscriber-service/internal/domain"
)

const statsKey = "subscriber-service:stats"

// StatsCache keeps a short-lived copy of aggregate statistics in Redis so
// the stats endpoint does not hammer the store. All cache failures degrade
// to a direct read.
type StatsCache struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// NewStatsCache constructs the cache. A zero TTL disables caching.
func NewStatsCache(client *redis.Client, logger *zap.Logger, ttl time.Duration) *StatsCache {
	return &StatsCache{client: client, logger: logger, ttl: ttl}
}

// Get returns the cached stats, or nil on miss or cache failure.
func (c *StatsCache) Get(ctx context.Context) *domain.Stats {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil
	}

	data, err := c.client.Get(ctx, statsKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("stats cache read failed", zap.Error(err))
		}
		return nil
	}

	var stats domain.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		c.logger.Warn("stats cache corrupt", zap.Error(err))
		return nil
	}
	return &stats
}

// Set stores stats with the configured TTL.
func (c *StatsCache) Set(ctx context.Context, stats *domain.Stats) {
	if c == nil || c.client == nil || c.ttl <= 0 || stats == nil {
		return
	}

	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, statsKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("stats cache write failed", zap.Error(err))
	}
}

// Invalidate drops the cached stats, called after lifecycle transitions.
func (c *StatsCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, statsKey).Err(); err != nil {
		c.logger.Warn("stats cache invalidate failed", zap.Error(err))
	}
}
