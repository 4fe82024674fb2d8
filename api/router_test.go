package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/mirror/cache"
	"github.com/use-agent/mirror/config"
	"github.com/use-agent/mirror/jobs"
	"github.com/use-agent/mirror/models"
	"github.com/use-agent/mirror/runner"
	"github.com/use-agent/mirror/store"
)

type stubRunner struct{ err error }

func (s stubRunner) Run(_ context.Context, req runner.Request, progress runner.Progress) (*runner.Result, error) {
	progress(models.StageNavigating)
	if s.err != nil {
		return nil, s.err
	}
	return &runner.Result{
		JobID:      req.JobID,
		OutputDir:  "/tmp/" + req.JobID,
		EngineUsed: "http",
		Report: &models.QualityReport{
			Overall: 95,
			HTML:    models.CategoryScore{Score: 90, Issues: []string{"Found 1 elements with empty src/href."}},
			CSS:     models.CategoryScore{Score: 100, Issues: []string{}},
			Images:  models.CategoryScore{Score: 100, Issues: []string{}},
		},
	}, nil
}

type stubPool struct{ stats models.PoolStats }

func (s stubPool) Stats() models.PoolStats { return s.stats }

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{"secret"}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
}

func newTestRouter(t *testing.T, r jobs.Runner) (*gin.Engine, *jobs.Queue) {
	t.Helper()
	c := cache.New(10)
	t.Cleanup(c.Close)
	q := jobs.New(r, store.NewMemory(0), jobs.Options{
		Cache:  c,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	t.Cleanup(func() { _ = q.Shutdown(context.Background()) })
	pool := stubPool{models.PoolStats{MaxPages: 4, ActivePages: 1}}
	return NewRouter(q, pool, testConfig(), time.Now()), q
}

func call(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitCompleted(t *testing.T, r http.Handler, id string) models.JobStatusResponse {
	t.Helper()
	var st models.JobStatusResponse
	require.Eventually(t, func() bool {
		w := call(r, http.MethodGet, "/api/v1/harvest/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		_ = json.Unmarshal(w.Body.Bytes(), &st)
		return st.Status == models.JobCompleted || st.Status == models.JobFailed
	}, 2*time.Second, 5*time.Millisecond)
	return st
}

func TestHarvestFlow(t *testing.T) {
	r, _ := newTestRouter(t, stubRunner{})

	w := call(r, http.MethodPost, "/api/v1/harvest", map[string]any{"url": "https://x.example/", "max_age": 60000})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var sub models.HarvestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))
	assert.Equal(t, "miss", sub.CacheStatus)

	st := waitCompleted(t, r, sub.ID)
	assert.Equal(t, models.JobCompleted, st.Status)
	assert.Equal(t, 100, st.Progress)
	assert.Equal(t, "http", st.EngineUsed)
	require.NotNil(t, st.Report)
	assert.Equal(t, 95, st.Report.Overall)

	w = call(r, http.MethodGet, "/api/v1/harvest/"+sub.ID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rep models.QualityReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rep))
	assert.Equal(t, 90, rep.HTML.Score)

	w = call(r, http.MethodGet, "/api/v1/harvest/"+sub.ID+"/report?format=markdown", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/markdown")
	assert.Contains(t, w.Body.String(), "## Overall Quality Score: 95/100")

	// A repeat within max_age reuses the finished job.
	w = call(r, http.MethodPost, "/api/v1/harvest", map[string]any{"url": "https://x.example/", "max_age": 60000})
	require.Equal(t, http.StatusOK, w.Code)
	var again models.HarvestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &again))
	assert.Equal(t, "hit", again.CacheStatus)
	assert.Equal(t, sub.ID, again.ID)
}

func TestHarvest_FailedJobHasNoReport(t *testing.T) {
	r, _ := newTestRouter(t, stubRunner{err: models.NewHarvestError(models.ErrCodeNavigation, "dns", nil)})

	w := call(r, http.MethodPost, "/api/v1/harvest", map[string]any{"url": "https://x.example/"})
	require.Equal(t, http.StatusAccepted, w.Code)
	var sub models.HarvestResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sub))

	st := waitCompleted(t, r, sub.ID)
	assert.Equal(t, models.JobFailed, st.Status)
	require.NotNil(t, st.Error)
	assert.Equal(t, models.ErrCodeNavigation, st.Error.Code)

	w = call(r, http.MethodGet, "/api/v1/harvest/"+sub.ID+"/report", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), models.ErrCodeNotFound)
}

func TestHarvest_BadRequests(t *testing.T) {
	r, _ := newTestRouter(t, stubRunner{})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing url", http.MethodPost, "/api/v1/harvest", map[string]any{}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"not a url", http.MethodPost, "/api/v1/harvest", map[string]any{"url": "nope"}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"timeout too large", http.MethodPost, "/api/v1/harvest", map[string]any{"url": "https://x.example/", "timeout": 1000}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"unknown job", http.MethodGet, "/api/v1/harvest/does-not-exist", nil, http.StatusNotFound, models.ErrCodeNotFound},
		{"unknown report", http.MethodGet, "/api/v1/harvest/does-not-exist/report", nil, http.StatusNotFound, models.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := call(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), tt.code)
		})
	}
}

func TestAuthRequired(t *testing.T) {
	r, _ := newTestRouter(t, stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/harvest/x", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, stubRunner{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var h models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &h))
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, 4, h.PoolStats.MaxPages)
	assert.Equal(t, 2, h.Jobs.MaxConcurrent)
	assert.NotEmpty(t, h.Version)
}
