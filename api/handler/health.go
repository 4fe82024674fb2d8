package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/mirror/jobs"
	"github.com/use-agent/mirror/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// PoolStatter reports browser page pool usage. *browser.Browser satisfies it.
type PoolStatter interface {
	Stats() models.PoolStats
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when more than 80% of browser pages are busy or every
// job slot is taken.
func Health(pool PoolStatter, q *jobs.Queue, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var stats models.PoolStats
		if pool != nil {
			stats = pool.Stats()
		}
		js := q.Stats()

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}
		if js.MaxConcurrent > 0 && js.Running >= js.MaxConcurrent {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    time.Since(startTime).Round(time.Second).String(),
			PoolStats: stats,
			Jobs:      js,
			Version:   Version,
		})
	}
}
