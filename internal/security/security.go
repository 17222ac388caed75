package security

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/fieldops/riskmeter/internal/errors"
	"github.com/fieldops/riskmeter/internal/monitoring"
	"github.com/fieldops/riskmeter/internal/session"
)

// SecurityConfig holds security configuration.
type SecurityConfig struct {
	MaxRequestsPerMin int           `json:"max_requests_per_min"`
	AllowedOrigins    []string      `json:"allowed_origins"`
	TrustedProxies    []string      `json:"trusted_proxies"`
	RequestTimeout    time.Duration `json:"request_timeout"`
}

// DefaultSecurityConfig returns secure defaults.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		MaxRequestsPerMin: 60,
		AllowedOrigins:    []string{"http://localhost:3000", "http://localhost:5173"},
		TrustedProxies:    []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
		RequestTimeout:    30 * time.Second,
	}
}

// SecurityMiddleware provides the request-hardening middleware stack.
type SecurityMiddleware struct {
	config     SecurityConfig
	sessions   *session.Store
	metrics    *monitoring.Metrics
	ipLimiters map[string]*rate.Limiter
	mu         sync.Mutex
}

// NewSecurityMiddleware creates a new security middleware instance.
func NewSecurityMiddleware(config SecurityConfig, sessions *session.Store, metrics *monitoring.Metrics) *SecurityMiddleware {
	return &SecurityMiddleware{
		config:     config,
		sessions:   sessions,
		metrics:    metrics,
		ipLimiters: make(map[string]*rate.Limiter),
	}
}

// SecurityHeaders sets standard security headers on every response.
func (sm *SecurityMiddleware) SecurityHeaders(c *gin.Context) {
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("X-Frame-Options", "DENY")
	c.Header("X-XSS-Protection", "1; mode=block")
	c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	c.Header("Cache-Control", "no-store")
	c.Next()
}

// RequestTimeout enforces a per-request deadline.
func (sm *SecurityMiddleware) RequestTimeout(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), sm.config.RequestTimeout)
	defer cancel()

	c.Request = c.Request.WithContext(ctx)
	c.Next()
}

// ValidateContentType rejects non-JSON bodies on mutating requests.
func (sm *SecurityMiddleware) ValidateContentType(c *gin.Context) {
	if c.Request.Method == http.MethodPost || c.Request.Method == http.MethodPut {
		contentType := c.GetHeader("Content-Type")
		if contentType != "" && !strings.HasPrefix(contentType, "application/json") {
			appErr := errors.NewValidationError("content type must be application/json")
			c.JSON(appErr.HTTPStatus, appErr)
			c.Abort()
			return
		}
	}
	c.Next()
}

// ipLimiter returns (creating if needed) the per-IP token bucket.
func (sm *SecurityMiddleware) ipLimiter(ip string) *rate.Limiter {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	limiter, exists := sm.ipLimiters[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(float64(sm.config.MaxRequestsPerMin)/60.0), sm.config.MaxRequestsPerMin/6)
		sm.ipLimiters[ip] = limiter
	}

	return limiter
}

// RateLimitByIP applies a per-IP in-process rate limit. The distributed
// tenant limit lives in the ratelimit package; this is the first line of
// defense.
func (sm *SecurityMiddleware) RateLimitByIP(c *gin.Context) {
	if !sm.ipLimiter(c.ClientIP()).Allow() {
		if sm.metrics != nil {
			sm.metrics.IncrementRateLimitIPBlock()
		}
		appErr := errors.NewRateLimitError("60s")
		c.Header("Retry-After", "60")
		c.JSON(appErr.HTTPStatus, appErr)
		c.Abort()
		return
	}
	c.Next()
}

// RequireRole validates the bearer token and enforces that the session's
// effective role is one of the allowed roles.
func (sm *SecurityMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			appErr := errors.NewAuthError("missing bearer token")
			c.JSON(appErr.HTTPStatus, appErr)
			c.Abort()
			return
		}

		sess, err := sm.sessions.VerifyToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			appErr := errors.NewAuthError("invalid or expired session")
			c.JSON(appErr.HTTPStatus, appErr)
			c.Abort()
			return
		}

		if len(allowed) > 0 && !allowed[sess.EffectiveRole()] {
			appErr := errors.NewAuthError("insufficient role")
			appErr.HTTPStatus = http.StatusForbidden
			c.JSON(appErr.HTTPStatus, appErr)
			c.Abort()
			return
		}

		c.Set("session", sess)
		c.Set("user_id", sess.UserID)
		c.Next()
	}
}
