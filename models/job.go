package models

// Job statuses.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Stage is a coarse progress milestone of a harvest.
type Stage string

// Harvest stages in the order a job passes through them.
const (
	StageQueued      Stage = "queued"
	StageNavigating  Stage = "navigating"
	StageDownloading Stage = "downloading"
	StageQuality     Stage = "quality_check"
	StageFinalizing  Stage = "finalizing"
	StageDone        Stage = "done"
)

// Progress returns the percentage a caller should report for the stage.
func (s Stage) Progress() int {
	switch s {
	case StageNavigating:
		return 15
	case StageDownloading:
		return 40
	case StageQuality:
		return 80
	case StageFinalizing:
		return 90
	case StageDone:
		return 100
	default:
		return 0
	}
}

// HarvestJob is the persisted record of one harvest run.
type HarvestJob struct {
	ID            string          `json:"id" bson:"_id"`
	URL           string          `json:"url" bson:"url"`
	CacheKey      string          `json:"-" bson:"cache_key"`
	Status        string          `json:"status" bson:"status"`
	Stage         Stage           `json:"stage" bson:"stage"`
	Progress      int             `json:"progress" bson:"progress"`
	OutputDir     string          `json:"output_dir,omitempty" bson:"output_dir,omitempty"`
	DocumentPath  string          `json:"document_path,omitempty" bson:"document_path,omitempty"`
	EngineUsed    string          `json:"engine_used,omitempty" bson:"engine_used,omitempty"`
	Summary       *HarvestSummary `json:"summary,omitempty" bson:"summary,omitempty"`
	Report        *QualityReport  `json:"report,omitempty" bson:"report,omitempty"`
	Error         *ErrorDetail    `json:"error,omitempty" bson:"error,omitempty"`
	WebhookURL    string          `json:"-" bson:"webhook_url,omitempty"`
	WebhookSecret string          `json:"-" bson:"webhook_secret,omitempty"`
	CreatedAt     int64           `json:"created_at" bson:"created_at"` // unix timestamp
	FinishedAt    int64           `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
}

// ToStatus converts the record to its API view.
func (j *HarvestJob) ToStatus() JobStatusResponse {
	return JobStatusResponse{
		ID:           j.ID,
		URL:          j.URL,
		Status:       j.Status,
		Stage:        string(j.Stage),
		Progress:     j.Progress,
		OutputDir:    j.OutputDir,
		DocumentPath: j.DocumentPath,
		EngineUsed:   j.EngineUsed,
		Summary:      j.Summary,
		Report:       j.Report,
		Error:        j.Error,
		CreatedAt:    j.CreatedAt,
		FinishedAt:   j.FinishedAt,
	}
}

// HarvestSummary counts what happened to the page's resources.
type HarvestSummary struct {
	Discovered   int               `json:"discovered" bson:"discovered"`
	Resolved     int               `json:"resolved" bson:"resolved"`
	Unresolved   int               `json:"unresolved" bson:"unresolved"`
	ViaFallback  int               `json:"via_fallback" bson:"via_fallback"`
	Placeholders int               `json:"placeholders" bson:"placeholders"`
	Failures     []ResourceFailure `json:"failures,omitempty" bson:"failures,omitempty"`
}

// ResourceFailure records one unresolved resource and why.
type ResourceFailure struct {
	URL    string `json:"url" bson:"url"`
	Kind   string `json:"kind" bson:"kind"`
	Reason string `json:"reason" bson:"reason"`
}
