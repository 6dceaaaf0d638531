package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// CounterClient is the subset of redis commands the limiter needs,
// satisfied by *redis.Client.
type CounterClient interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Limiter is a fixed-window counter over Redis, keyed by client IP. It
// fails open: when Redis is unreachable the request is allowed and the
// failure logged, so an outage never blocks subscriptions.
type Limiter struct {
	client CounterClient
	logger *zap.Logger
	limit  int
	window time.Duration
}

// NewLimiter constructs a limiter allowing limit requests per window.
func NewLimiter(client CounterClient, logger *zap.Logger, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, logger: logger, limit: limit, window: window}
}

// Allow reports whether the caller identified by key may proceed.
func (l *Limiter) Allow(ctx context.Context, key string) bool {
	if l == nil || l.client == nil {
		return true
	}

	redisKey := fmt.Sprintf("ratelimit:subscribe:%s", key)
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warn("rate limiter unavailable", zap.Error(err))
		return true
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			l.logger.Warn("rate limiter expire failed", zap.Error(err))
		}
	}
	return count <= int64(l.limit)
}
