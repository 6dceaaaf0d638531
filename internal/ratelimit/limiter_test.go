package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type fakeCounter struct {
	counts      map[string]int64
	expires     map[string]time.Duration
	expireCalls int
	incrErr     error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{
		counts:  map[string]int64{},
		expires: map[string]time.Duration{},
	}
}

func (f *fakeCounter) Incr(ctx context.Context, key string) *redis.IntCmd {
	if f.incrErr != nil {
		return redis.NewIntResult(0, f.incrErr)
	}
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeCounter) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	f.expireCalls++
	f.expires[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func TestLimiterBlocksAfterLimit(t *testing.T) {
	counter := newFakeCounter()
	limiter := NewLimiter(counter, zap.NewNop(), 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if !limiter.Allow(ctx, "10.0.0.1") {
			t.Fatalf("request %d blocked before limit", i+1)
		}
	}
	if limiter.Allow(ctx, "10.0.0.1") {
		t.Error("request over the limit was allowed")
	}

	if !limiter.Allow(ctx, "10.0.0.2") {
		t.Error("unrelated client was blocked")
	}
}

func TestLimiterSetsWindowOnFirstRequest(t *testing.T) {
	counter := newFakeCounter()
	limiter := NewLimiter(counter, zap.NewNop(), 5, 30*time.Second)
	ctx := context.Background()

	limiter.Allow(ctx, "10.0.0.1")
	limiter.Allow(ctx, "10.0.0.1")

	if counter.expireCalls != 1 {
		t.Errorf("expire calls = %d, want 1", counter.expireCalls)
	}
	if got := counter.expires["ratelimit:subscribe:10.0.0.1"]; got != 30*time.Second {
		t.Errorf("window = %v, want 30s", got)
	}
}

func TestLimiterFailsOpen(t *testing.T) {
	counter := newFakeCounter()
	counter.incrErr = errors.New("dial tcp: connection refused")
	limiter := NewLimiter(counter, zap.NewNop(), 1, time.Minute)

	for i := 0; i < 5; i++ {
		if !limiter.Allow(context.Background(), "10.0.0.1") {
			t.Fatal("request blocked while redis is unreachable")
		}
	}
}

func TestLimiterWithoutClientAllowsAll(t *testing.T) {
	limiter := NewLimiter(nil, zap.NewNop(), 1, time.Minute)

	if !limiter.Allow(context.Background(), "10.0.0.1") {
		t.Error("nil client should allow every request")
	}
}
