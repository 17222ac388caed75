package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/riskmeter/internal/monitoring"
)

func newFallbackLimiter(t *testing.T, config Config) *RateLimiter {
	t.Helper()

	// empty address means Redis is disabled and only the in-memory
	// fallback is exercised
	redisClient, err := NewRedisClient("", "", 0)
	require.NoError(t, err)

	return NewRateLimiter(redisClient, config, monitoring.NewMetrics())
}

func TestFallbackAllowsWithinBurst(t *testing.T) {
	limiter := newFallbackLimiter(t, Config{TenantLimitPerMin: 5, IngestLimitPerMin: 5})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		result, err := limiter.AllowReport(ctx, "tenant-1")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d should be allowed", i+1)
	}
}

func TestFallbackBlocksOverLimit(t *testing.T) {
	limiter := newFallbackLimiter(t, Config{TenantLimitPerMin: 2, IngestLimitPerMin: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := limiter.AllowReport(ctx, "tenant-1")
		require.NoError(t, err)
		require.True(t, result.Allowed)
	}

	result, err := limiter.AllowReport(ctx, "tenant-1")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Greater(t, result.RetryAfter.Seconds(), 0.0)
}

func TestFallbackIsolatesTenants(t *testing.T) {
	limiter := newFallbackLimiter(t, Config{TenantLimitPerMin: 1, IngestLimitPerMin: 1})
	ctx := context.Background()

	first, err := limiter.AllowReport(ctx, "tenant-1")
	require.NoError(t, err)
	require.True(t, first.Allowed)

	blocked, err := limiter.AllowReport(ctx, "tenant-1")
	require.NoError(t, err)
	assert.False(t, blocked.Allowed)

	other, err := limiter.AllowReport(ctx, "tenant-2")
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestReportAndIngestBucketsAreIndependent(t *testing.T) {
	limiter := newFallbackLimiter(t, Config{TenantLimitPerMin: 1, IngestLimitPerMin: 1})
	ctx := context.Background()

	report, err := limiter.AllowReport(ctx, "tenant-1")
	require.NoError(t, err)
	require.True(t, report.Allowed)

	// exhausting the report bucket leaves the ingest bucket untouched
	ingest, err := limiter.AllowIngest(ctx, "tenant-1")
	require.NoError(t, err)
	assert.True(t, ingest.Allowed)
}
