package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/riskmeter/internal/cache"
	"github.com/fieldops/riskmeter/internal/monitoring"
	"github.com/fieldops/riskmeter/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestMiddleware(t *testing.T, config SecurityConfig) (*SecurityMiddleware, *session.Store) {
	t.Helper()

	sessions := session.NewStore(cache.New(time.Hour), "test-secret", time.Hour)
	return NewSecurityMiddleware(config, sessions, monitoring.NewMetrics()), sessions
}

func TestDefaultSecurityConfig(t *testing.T) {
	config := DefaultSecurityConfig()

	assert.Equal(t, 60, config.MaxRequestsPerMin)
	assert.Contains(t, config.AllowedOrigins, "http://localhost:3000")
	assert.Contains(t, config.AllowedOrigins, "http://localhost:5173")
	assert.Equal(t, 30*time.Second, config.RequestTimeout)
}

func TestSecurityHeaders(t *testing.T) {
	sm, _ := newTestMiddleware(t, DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.SecurityHeaders)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", w.Header().Get("X-XSS-Protection"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestValidateContentType(t *testing.T) {
	sm, _ := newTestMiddleware(t, DefaultSecurityConfig())

	r := gin.New()
	r.Use(sm.ValidateContentType)
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		name        string
		method      string
		contentType string
		expected    int
	}{
		{"json post accepted", http.MethodPost, "application/json", http.StatusOK},
		{"json with charset accepted", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"text post rejected", http.MethodPost, "text/plain", http.StatusBadRequest},
		{"form post rejected", http.MethodPost, "application/x-www-form-urlencoded", http.StatusBadRequest},
		{"empty content type tolerated", http.MethodPost, "", http.StatusOK},
		{"get is never checked", http.MethodGet, "text/plain", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/", strings.NewReader("{}"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestRateLimitByIP(t *testing.T) {
	// 6 per minute yields a burst of 1, so the second immediate request
	// from the same IP is rejected
	config := DefaultSecurityConfig()
	config.MaxRequestsPerMin = 6
	sm, _ := newTestMiddleware(t, config)

	r := gin.New()
	r.Use(sm.RateLimitByIP)
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}

func TestRequireRole(t *testing.T) {
	sm, sessions := newTestMiddleware(t, DefaultSecurityConfig())

	r := gin.New()
	r.GET("/admin", sm.RequireRole(session.RoleAdmin), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString("user_id")})
	})
	r.GET("/any", sm.RequireRole(), func(c *gin.Context) { c.Status(http.StatusOK) })

	mintToken := func(t *testing.T, role string) string {
		t.Helper()
		sess, err := sessions.Create("user-1", role)
		require.NoError(t, err)
		token, err := sessions.MintToken(sess)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name     string
		path     string
		header   string
		expected int
	}{
		{"missing header", "/admin", "", http.StatusUnauthorized},
		{"malformed header", "/admin", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "/admin", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"insufficient role", "/admin", "Bearer " + mintToken(t, session.RoleAgent), http.StatusForbidden},
		{"matching role", "/admin", "Bearer " + mintToken(t, session.RoleAdmin), http.StatusOK},
		{"no roles means any valid session", "/any", "Bearer " + mintToken(t, session.RoleClient), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestRequireRoleUsesImpersonatedRole(t *testing.T) {
	sm, sessions := newTestMiddleware(t, DefaultSecurityConfig())

	r := gin.New()
	r.GET("/agent", sm.RequireRole(session.RoleAgent), func(c *gin.Context) { c.Status(http.StatusOK) })

	admin, err := sessions.Create("user-1", session.RoleAdmin)
	require.NoError(t, err)
	child, err := sessions.Impersonate(admin, session.RoleAgent, time.Minute)
	require.NoError(t, err)
	token, err := sessions.MintToken(child)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/agent", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRoleRejectsRevokedSession(t *testing.T) {
	sm, sessions := newTestMiddleware(t, DefaultSecurityConfig())

	r := gin.New()
	r.GET("/", sm.RequireRole(session.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	sess, err := sessions.Create("user-1", session.RoleAdmin)
	require.NoError(t, err)
	token, err := sessions.MintToken(sess)
	require.NoError(t, err)
	sessions.Revoke(sess.ID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
