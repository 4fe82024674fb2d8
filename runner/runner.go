// Package runner is the single entry point a job queue calls to mirror one
// page: render it, harvest its resources, write the offline copy, and
// certify the result.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/mirror/digest"
	"github.com/use-agent/mirror/engine"
	"github.com/use-agent/mirror/fetch"
	"github.com/use-agent/mirror/harvest"
	"github.com/use-agent/mirror/models"
	"github.com/use-agent/mirror/quality"
)

// Files written next to index.html.
const (
	AnalysisFile    = "analysis.json"
	CertificateFile = "ANALYSIS.md"
	ContentFile     = "content.md"
)

const defaultRenderTimeout = 60 * time.Second

// Renderer produces fully rendered markup for a URL.
// *engine.Dispatcher and *engine.RodEngine satisfy it.
type Renderer interface {
	Render(ctx context.Context, req *engine.Request) (*engine.Page, error)
}

// Options configures a Runner.
type Options struct {
	OutputRoot    string
	RenderTimeout time.Duration
	UserAgent     string

	// Fetcher is used for the robots.txt gate. Nil disables the gate.
	Fetcher fetch.Fetcher
	Scorer  *quality.Scorer
	Logger  *slog.Logger
}

// Runner executes harvest jobs. It holds no per-job state and is safe for
// concurrent use.
type Runner struct {
	renderer      Renderer
	harvester     *harvest.Harvester
	fetcher       fetch.Fetcher
	scorer        *quality.Scorer
	outputRoot    string
	renderTimeout time.Duration
	userAgent     string
	logger        *slog.Logger
}

// New creates a Runner.
func New(renderer Renderer, harvester *harvest.Harvester, opts Options) *Runner {
	r := &Runner{
		renderer:      renderer,
		harvester:     harvester,
		fetcher:       opts.Fetcher,
		scorer:        opts.Scorer,
		outputRoot:    opts.OutputRoot,
		renderTimeout: opts.RenderTimeout,
		userAgent:     opts.UserAgent,
		logger:        opts.Logger,
	}
	if r.scorer == nil {
		r.scorer = quality.New(nil)
	}
	if r.outputRoot == "" {
		r.outputRoot = "./downloads"
	}
	if r.renderTimeout <= 0 {
		r.renderTimeout = defaultRenderTimeout
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Request describes one harvest.
type Request struct {
	URL   string
	JobID string // generated when empty

	// Timeout bounds rendering only. Zero uses the runner default.
	Timeout       time.Duration
	Stealth       bool
	Placeholders  bool
	RespectRobots bool
}

// Progress is told when the job enters each stage.
type Progress func(stage models.Stage)

// Result locates a finished harvest.
type Result struct {
	JobID        string
	OutputDir    string
	DocumentPath string
	EngineUsed   string
	Report       *models.QualityReport
	Summary      models.HarvestSummary
	Metadata     models.Metadata
	Fidelity     digest.Fidelity
}

// RunHarvest mirrors pageURL into <output root>/<jobID> with default options.
func (r *Runner) RunHarvest(ctx context.Context, pageURL, jobID string) (*Result, error) {
	return r.Run(ctx, Request{URL: pageURL, JobID: jobID}, nil)
}

// Run executes the full pipeline. A non-nil error is always a
// *models.HarvestError: the page could not be rendered, the output
// directory could not be written, or the job was canceled. Missing assets
// never fail a job.
func (r *Runner) Run(ctx context.Context, req Request, progress Progress) (*Result, error) {
	start := time.Now()
	stage := func(s models.Stage) {
		if progress != nil {
			progress(s)
		}
	}

	// ── 1. Validate ──
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, models.NewHarvestError(models.ErrCodeInvalidInput,
			fmt.Sprintf("url must be absolute http(s): %q", req.URL), err)
	}
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.renderTimeout
	}
	log := r.logger.With("job_id", req.JobID, "url", req.URL)

	// ── 2. Robots gate ──
	if req.RespectRobots && r.fetcher != nil {
		allowed, err := fetch.RobotsAllowed(ctx, r.fetcher, req.URL, r.userAgent)
		if err == nil && !allowed {
			return nil, models.NewHarvestError(models.ErrCodeRobotsDisallowed,
				"robots.txt disallows this page", nil)
		}
	}

	// ── 3. Render ──
	stage(models.StageNavigating)
	log.Info("harvest: rendering", "stealth", req.Stealth, "timeout", timeout)
	page, err := r.renderer.Render(ctx, &engine.Request{URL: req.URL, Timeout: timeout, Stealth: req.Stealth})
	if err != nil {
		return nil, renderError(ctx, err)
	}
	base := page.FinalURL
	if base == "" {
		base = req.URL
	}

	// ── 4. Harvest resources ──
	job, err := harvest.NewJob(r.outputRoot, req.JobID, req.URL)
	if err != nil {
		return nil, err
	}
	job.Placeholders = req.Placeholders

	stage(models.StageDownloading)
	res, err := r.harvester.Harvest(ctx, job, page.HTML, base)
	if err != nil {
		return nil, err
	}

	// ── 5. Persist the rewritten document ──
	if err := writeFile(job.DocumentPath(), []byte(res.Document)); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeOutputUnavailable, "cannot write index.html", err)
	}

	// ── 6. Quality check ──
	stage(models.StageQuality)
	report, err := r.scorer.Score(job.Root)
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeOutputUnavailable, "cannot audit job directory", err)
	}

	// ── 7. Analysis record ──
	stage(models.StageFinalizing)
	meta := digest.Metadata(page.HTML, base)
	if meta.Title == "" {
		meta.Title = page.Title
	}
	meta.SourceURL = req.URL

	result := &Result{
		JobID:        req.JobID,
		OutputDir:    job.Root,
		DocumentPath: job.DocumentPath(),
		EngineUsed:   page.EngineName,
		Report:       report,
		Summary:      res.Summary,
		Metadata:     meta,
		Fidelity:     digest.Compare(page.HTML, res.Document),
	}
	if err := r.writeAnalysis(job, result, page, res); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeOutputUnavailable, "cannot write analysis record", err)
	}
	if md, err := digest.Markdown(page.HTML, base); err != nil {
		log.Warn("harvest: content snapshot failed", "error", err)
	} else if err := writeFile(filepath.Join(job.Root, ContentFile), []byte(md)); err != nil {
		log.Warn("harvest: content snapshot not written", "error", err)
	}

	stage(models.StageDone)
	log.Info("harvest: done",
		"engine", page.EngineName,
		"overall", report.Overall,
		"resolved", res.Summary.Resolved,
		"unresolved", res.Summary.Unresolved,
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return result, nil
}

// renderError classifies a render failure. Typed errors from the browser
// pass through; anything else means the page could not be loaded.
func renderError(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return models.NewHarvestError(models.ErrCodeCanceled, "job canceled during render", err)
	}
	var he *models.HarvestError
	if errors.As(err, &he) {
		return he
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.NewHarvestError(models.ErrCodeTimeout, "render timed out", err)
	}
	return models.NewHarvestError(models.ErrCodeNavigation, "page could not be rendered", err)
}

// writeFile replaces path atomically so a reader never sees a partial file.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".part-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
