package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/mirror/jobs"
	"github.com/use-agent/mirror/models"
	"github.com/use-agent/mirror/quality"
	"github.com/use-agent/mirror/store"
)

// PostHarvest returns a handler for POST /api/v1/harvest.
//
// The job runs in the background; the response carries its ID. Poll
// GET /api/v1/harvest/:id for progress.
func PostHarvest(q *jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.HarvestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, err.Error())
			return
		}

		resp, err := q.Submit(c.Request.Context(), req)
		if err != nil {
			slog.Error("harvest submit failed", "url", req.URL, "error", err)
			respondError(c, http.StatusInternalServerError, models.ErrCodeInternal, "could not record job")
			return
		}

		status := http.StatusAccepted
		if resp.CacheStatus == "hit" {
			status = http.StatusOK
		}
		c.JSON(status, resp)
	}
}

// GetHarvest returns a handler for GET /api/v1/harvest/:id.
func GetHarvest(q *jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := loadJob(c, q)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, job.ToStatus())
	}
}

// GetReport returns a handler for GET /api/v1/harvest/:id/report.
//
// ?format=markdown returns the certificate as text/markdown instead of JSON.
func GetReport(q *jobs.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := loadJob(c, q)
		if !ok {
			return
		}
		if job.Report == nil {
			respondError(c, http.StatusNotFound, models.ErrCodeNotFound,
				"no quality report: job is "+job.Status)
			return
		}

		if c.Query("format") == "markdown" {
			c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(quality.Markdown(job.Report)))
			return
		}
		c.JSON(http.StatusOK, job.Report)
	}
}

func loadJob(c *gin.Context, q *jobs.Queue) (*models.HarvestJob, bool) {
	job, err := q.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		respondError(c, http.StatusNotFound, models.ErrCodeNotFound, "harvest job not found")
		return nil, false
	}
	if err != nil {
		slog.Error("job lookup failed", "id", c.Param("id"), "error", err)
		respondError(c, http.StatusInternalServerError, models.ErrCodeInternal, "job lookup failed")
		return nil, false
	}
	return job, true
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{Error: &models.ErrorDetail{Code: code, Message: message}})
}
