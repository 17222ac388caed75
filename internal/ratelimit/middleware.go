package ratelimit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/fieldops/riskmeter/internal/errors"
	"github.com/fieldops/riskmeter/internal/monitoring"
)

// tenantID derives the rate-limit subject for a request. Authenticated
// requests are limited per user, anonymous ones per client IP.
func tenantID(c *gin.Context) string {
	if userID := c.GetString("user_id"); userID != "" {
		return userID
	}
	return "ip:" + c.ClientIP()
}

type checkFunc func(ctx context.Context, tenant string) (*Result, error)

// ReportLimitMiddleware applies the per-tenant report limit.
func ReportLimitMiddleware(limiter *RateLimiter, metrics *monitoring.Metrics) gin.HandlerFunc {
	return limitMiddleware(limiter.AllowReport, metrics)
}

// IngestLimitMiddleware applies the per-tenant ingest limit.
func IngestLimitMiddleware(limiter *RateLimiter, metrics *monitoring.Metrics) gin.HandlerFunc {
	return limitMiddleware(limiter.AllowIngest, metrics)
}

func limitMiddleware(check checkFunc, metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := check(c.Request.Context(), tenantID(c))
		if err != nil {
			// Limiter errors never block traffic
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

		if !result.Allowed {
			if metrics != nil {
				metrics.IncrementRateLimitTenantBlock()
			}

			retryAfter := fmt.Sprintf("%.0fs", result.RetryAfter.Seconds())
			appErr := errors.NewRateLimitError(retryAfter)
			c.Header("Retry-After", retryAfter)
			c.JSON(appErr.HTTPStatus, appErr)
			c.Abort()
			return
		}

		c.Next()
	}
}
