package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/use-agent/mirror/config"
	"github.com/use-agent/mirror/models"
)

// idleTTL is how long an unused bucket is kept.
const idleTTL = time.Hour

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// buckets holds one token bucket per caller identity.
type buckets struct {
	mu    sync.Mutex
	byID  map[string]*bucket
	limit rate.Limit
	burst int
}

func (b *buckets) allow(id string, now time.Time) bool {
	b.mu.Lock()
	bk, ok := b.byID[id]
	if !ok {
		bk = &bucket{limiter: rate.NewLimiter(b.limit, b.burst)}
		b.byID[id] = bk
	}
	bk.lastSeen = now
	b.mu.Unlock()
	return bk.limiter.AllowN(now, 1)
}

func (b *buckets) evictIdle(now time.Time) {
	cutoff := now.Add(-idleTTL)
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, bk := range b.byID {
		if bk.lastSeen.Before(cutoff) {
			delete(b.byID, id)
		}
	}
}

// RateLimit applies a token bucket per API key, or per client IP when the
// request is unauthenticated.
func RateLimit(cfg config.RateLimitConfig) gin.HandlerFunc {
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	b := &buckets{
		byID:  make(map[string]*bucket),
		limit: rate.Limit(cfg.RequestsPerSecond),
		burst: burst,
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for now := range ticker.C {
			b.evictIdle(now)
		}
	}()

	return func(c *gin.Context) {
		id := c.GetString(APIKeyContextKey)
		if id == "" {
			id = "ip:" + c.ClientIP()
		}
		if !b.allow(id, time.Now()) {
			abort(c, http.StatusTooManyRequests, models.ErrCodeRateLimited, "rate limit exceeded, please slow down")
			return
		}
		c.Next()
	}
}
