package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/use-agent/mirror/digest"
	"github.com/use-agent/mirror/engine"
	"github.com/use-agent/mirror/harvest"
	"github.com/use-agent/mirror/models"
	"github.com/use-agent/mirror/quality"
)

// Analysis is the machine-readable record written to analysis.json.
type Analysis struct {
	JobID       string                `json:"job_id"`
	SourceURL   string                `json:"source_url"`
	FinalURL    string                `json:"final_url,omitempty"`
	StatusCode  int                   `json:"status_code,omitempty"`
	Engine      string                `json:"engine,omitempty"`
	GeneratedAt time.Time             `json:"generated_at"`
	Metadata    models.Metadata       `json:"metadata"`
	Quality     *models.QualityReport `json:"quality"`
	Summary     models.HarvestSummary `json:"summary"`
	Inventory   []string              `json:"inventory"`
	Fidelity    digest.Fidelity       `json:"structure_fidelity"`
}

func (r *Runner) writeAnalysis(job *harvest.Job, res *Result, page *engine.Page, hr *harvest.Result) error {
	inventory := hr.Inventory
	if inventory == nil {
		inventory = []string{}
	}
	a := Analysis{
		JobID:       res.JobID,
		SourceURL:   job.SourceURL,
		FinalURL:    page.FinalURL,
		StatusCode:  page.StatusCode,
		Engine:      page.EngineName,
		GeneratedAt: time.Now().UTC(),
		Metadata:    res.Metadata,
		Quality:     res.Report,
		Summary:     res.Summary,
		Inventory:   inventory,
		Fidelity:    res.Fidelity,
	}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	if err := writeFile(filepath.Join(job.Root, AnalysisFile), data); err != nil {
		return err
	}
	return writeFile(filepath.Join(job.Root, CertificateFile), []byte(quality.Markdown(res.Report)))
}

// ReadAnalysis loads the analysis record of a finished job directory.
func ReadAnalysis(dir string) (*Analysis, error) {
	data, err := os.ReadFile(filepath.Join(dir, AnalysisFile))
	if err != nil {
		return nil, err
	}
	var a Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}
