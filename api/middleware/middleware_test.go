package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"

	"github.com/use-agent/mirror/config"
)

func init() { gin.SetMode(gin.TestMode) }

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(APIKeyContextKey)) })
	return r
}

func do(r http.Handler, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"k1", "", "k2"}))

	tests := []struct {
		name    string
		headers map[string]string
		status  int
		body    string
	}{
		{"x-api-key", map[string]string{"X-API-Key": "k1"}, http.StatusOK, "k1"},
		{"bearer", map[string]string{"Authorization": "Bearer k2"}, http.StatusOK, "k2"},
		{"missing", nil, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized, "invalid API key"},
		{"basic scheme", map[string]string{"Authorization": "Basic k1"}, http.StatusUnauthorized, "missing API key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.headers)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.body)
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	w := do(newEngine(Auth(nil)), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimit(t *testing.T) {
	r := newEngine(Auth([]string{"a", "b"}), RateLimit(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2}))

	assert.Equal(t, http.StatusOK, do(r, map[string]string{"X-API-Key": "a"}).Code)
	assert.Equal(t, http.StatusOK, do(r, map[string]string{"X-API-Key": "a"}).Code)
	w := do(r, map[string]string{"X-API-Key": "a"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMITED")

	// Another key has its own bucket.
	assert.Equal(t, http.StatusOK, do(r, map[string]string{"X-API-Key": "b"}).Code)
}

func TestBuckets_EvictIdle(t *testing.T) {
	b := &buckets{byID: make(map[string]*bucket), limit: rate.Limit(1), burst: 1}
	now := time.Now()
	b.allow("old", now.Add(-2*time.Hour))
	b.allow("fresh", now)

	b.evictIdle(now)

	assert.NotContains(t, b.byID, "old")
	assert.Contains(t, b.byID, "fresh")
}
