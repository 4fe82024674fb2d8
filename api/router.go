// Package api wires the HTTP routes.
package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/mirror/api/handler"
	"github.com/use-agent/mirror/api/middleware"
	"github.com/use-agent/mirror/config"
	"github.com/use-agent/mirror/jobs"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(q *jobs.Queue, pool handler.PoolStatter, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Server.Mode != gin.TestMode {
		r.Use(gin.Logger())
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(pool, q, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/harvest", handler.PostHarvest(q))
	protected.GET("/harvest/:id", handler.GetHarvest(q))
	protected.GET("/harvest/:id/report", handler.GetReport(q))

	return r
}
