package models

// HarvestResponse is the immediate response for POST /api/v1/harvest.
type HarvestResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`

	// CacheStatus is "hit" when a recent completed job was reused,
	// "miss" when caching was requested but a new job started.
	CacheStatus string `json:"cache_status,omitempty"`
}

// JobStatusResponse is the response for GET /api/v1/harvest/:id.
type JobStatusResponse struct {
	ID           string          `json:"id"`
	URL          string          `json:"url"`
	Status       string          `json:"status"`
	Stage        string          `json:"stage"`
	Progress     int             `json:"progress"`
	OutputDir    string          `json:"output_dir,omitempty"`
	DocumentPath string          `json:"document_path,omitempty"`
	EngineUsed   string          `json:"engine_used,omitempty"`
	Summary      *HarvestSummary `json:"summary,omitempty"`
	Report       *QualityReport  `json:"report,omitempty"`
	Error        *ErrorDetail    `json:"error,omitempty"`
	CreatedAt    int64           `json:"created_at"`
	FinishedAt   int64           `json:"finished_at,omitempty"`
}

// ErrorResponse wraps an error for endpoints without a richer body.
type ErrorResponse struct {
	Error *ErrorDetail `json:"error"`
}

// Metadata holds page-level information recorded alongside a harvest.
type Metadata struct {
	Title       string `json:"title" bson:"title"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	SiteName    string `json:"site_name,omitempty" bson:"site_name,omitempty"`
	Author      string `json:"author,omitempty" bson:"author,omitempty"`
	Language    string `json:"language,omitempty" bson:"language,omitempty"`
	SourceURL   string `json:"source_url" bson:"source_url"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status    string    `json:"status"` // "healthy" or "degraded"
	Uptime    string    `json:"uptime"`
	PoolStats PoolStats `json:"pool_stats"`
	Jobs      JobStats  `json:"jobs"`
	Version   string    `json:"version"`
}

// PoolStats reports the state of the browser page pool.
type PoolStats struct {
	MaxPages    int `json:"max_pages"`
	ActivePages int `json:"active_pages"`
}

// JobStats reports harvest scheduling pressure.
type JobStats struct {
	MaxConcurrent int `json:"max_concurrent"`
	Running       int `json:"running"`
}
