package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v10"
	"golang.org/x/time/rate"

	"github.com/fieldops/riskmeter/internal/monitoring"
)

// Config holds rate limiter configuration.
type Config struct {
	TenantLimitPerMin int // per-tenant report requests per minute
	IngestLimitPerMin int // per-tenant ingest writes per minute
}

// DefaultConfig returns default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		TenantLimitPerMin: 30,
		IngestLimitPerMin: 300,
	}
}

// Result represents the outcome of a rate limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter provides distributed per-tenant rate limiting with Redis and
// an in-memory fallback.
type RateLimiter struct {
	redisLimiter *redis_rate.Limiter
	redisClient  *RedisClient
	config       Config
	metrics      *monitoring.Metrics

	fallbackLimiters map[string]*rate.Limiter
	fallbackMutex    sync.Mutex
}

// NewRateLimiter creates a rate limiter over the given Redis client.
func NewRateLimiter(redisClient *RedisClient, config Config, metrics *monitoring.Metrics) *RateLimiter {
	rl := &RateLimiter{
		redisClient:      redisClient,
		config:           config,
		metrics:          metrics,
		fallbackLimiters: make(map[string]*rate.Limiter),
	}

	if redisClient.IsEnabled() {
		rl.redisLimiter = redis_rate.NewLimiter(redisClient.GetClient())
		slog.Info("Redis rate limiter initialized")
	} else {
		slog.Warn("Redis unavailable, using in-memory rate limiting only")
	}

	return rl
}

// AllowReport checks whether a tenant may run another report this minute.
func (rl *RateLimiter) AllowReport(ctx context.Context, tenantID string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:tenant:%s:reports", tenantID)
	return rl.allow(ctx, key, rl.config.TenantLimitPerMin, time.Minute)
}

// AllowIngest checks whether a tenant may write more operational records.
func (rl *RateLimiter) AllowIngest(ctx context.Context, tenantID string) (*Result, error) {
	key := fmt.Sprintf("ratelimit:tenant:%s:ingest", tenantID)
	return rl.allow(ctx, key, rl.config.IngestLimitPerMin, time.Minute)
}

// allow performs the check using Redis or the fallback.
func (rl *RateLimiter) allow(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	if rl.redisClient.IsEnabled() && rl.redisLimiter != nil {
		result, err := rl.allowRedis(ctx, key, limit, period)
		if err != nil {
			slog.Warn("Redis rate limit check failed, using fallback", "key", key, "error", err)
			if rl.metrics != nil {
				rl.metrics.IncrementRateLimitRedisError()
			}
			return rl.allowFallback(key, limit, period), nil
		}
		return result, nil
	}

	if rl.metrics != nil {
		rl.metrics.IncrementRateLimitFallback()
	}
	return rl.allowFallback(key, limit, period), nil
}

// allowRedis performs rate limiting using the Redis sliding window.
func (rl *RateLimiter) allowRedis(ctx context.Context, key string, limit int, period time.Duration) (*Result, error) {
	res, err := rl.redisLimiter.Allow(ctx, key, redis_rate.Limit{
		Rate:   limit,
		Burst:  limit,
		Period: period,
	})
	if err != nil {
		return nil, fmt.Errorf("redis rate limit check failed: %w", err)
	}

	return &Result{
		Allowed:    res.Allowed > 0,
		Limit:      limit,
		Remaining:  res.Remaining,
		RetryAfter: res.RetryAfter,
	}, nil
}

// allowFallback performs in-memory token bucket limiting.
func (rl *RateLimiter) allowFallback(key string, limit int, period time.Duration) *Result {
	rl.fallbackMutex.Lock()
	limiter, exists := rl.fallbackLimiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(float64(limit)/period.Seconds()), limit)
		rl.fallbackLimiters[key] = limiter
	}
	rl.fallbackMutex.Unlock()

	allowed := limiter.Allow()
	result := &Result{
		Allowed: allowed,
		Limit:   limit,
	}
	if !allowed {
		result.RetryAfter = period / time.Duration(limit)
	}

	return result
}
