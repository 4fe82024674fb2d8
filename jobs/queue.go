// Package jobs schedules harvests in the background and tracks their
// records: bounded concurrency, progress milestones, cache reuse and
// completion webhooks.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/mirror/cache"
	"github.com/use-agent/mirror/models"
	"github.com/use-agent/mirror/runner"
	"github.com/use-agent/mirror/store"
	"github.com/use-agent/mirror/webhook"
)

// Runner executes one harvest. *runner.Runner satisfies it.
type Runner interface {
	Run(ctx context.Context, req runner.Request, progress runner.Progress) (*runner.Result, error)
}

// Options configures a Queue.
type Options struct {
	MaxConcurrent int

	// Defaults for requests that leave the flags unset.
	Placeholders  bool
	RespectRobots bool

	Cache    *cache.Cache
	Notifier *webhook.Notifier
	Logger   *slog.Logger
}

// Queue runs submitted harvests, at most MaxConcurrent at a time.
type Queue struct {
	runner   Runner
	store    store.Store
	cache    *cache.Cache
	notifier *webhook.Notifier
	logger   *slog.Logger

	placeholders  bool
	respectRobots bool

	sem     chan struct{}
	running atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Queue.
func New(r Runner, s store.Store, opts Options) *Queue {
	max := opts.MaxConcurrent
	if max <= 0 {
		max = 2
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue{
		runner:        r,
		store:         s,
		cache:         opts.Cache,
		notifier:      opts.Notifier,
		logger:        logger,
		placeholders:  opts.Placeholders,
		respectRobots: opts.RespectRobots,
		sem:           make(chan struct{}, max),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Submit records a new job and starts it in the background. With
// MaxAge > 0 a recent completed job for the same URL and options is
// returned instead.
func (q *Queue) Submit(ctx context.Context, req models.HarvestRequest) (models.HarvestResponse, error) {
	req.Defaults(q.placeholders, q.respectRobots)
	key := cache.Key(req.URL, req.Stealth, *req.Placeholders, *req.RespectRobots)

	cacheStatus := ""
	if q.cache != nil && req.MaxAge > 0 {
		cacheStatus = "miss"
		if id, hit := q.cache.Get(key, req.MaxAge); hit {
			job, err := q.store.Get(ctx, id)
			if err == nil && job.Status == models.JobCompleted {
				return models.HarvestResponse{ID: job.ID, Status: job.Status, CacheStatus: "hit"}, nil
			}
			q.cache.Delete(key)
		}
	}

	job := &models.HarvestJob{
		ID:            uuid.NewString(),
		URL:           req.URL,
		CacheKey:      key,
		Status:        models.JobQueued,
		Stage:         models.StageQueued,
		WebhookURL:    req.WebhookURL,
		WebhookSecret: req.WebhookSecret,
		CreatedAt:     time.Now().Unix(),
	}
	if err := q.store.Save(ctx, job); err != nil {
		return models.HarvestResponse{}, fmt.Errorf("jobs: record job: %w", err)
	}

	q.wg.Add(1)
	go q.process(job, req)

	return models.HarvestResponse{ID: job.ID, Status: job.Status, CacheStatus: cacheStatus}, nil
}

// Get returns a job record.
func (q *Queue) Get(ctx context.Context, id string) (*models.HarvestJob, error) {
	return q.store.Get(ctx, id)
}

// Stats reports scheduling pressure.
func (q *Queue) Stats() models.JobStats {
	return models.JobStats{MaxConcurrent: cap(q.sem), Running: int(q.running.Load())}
}

// Shutdown stops accepting work into running harvests and waits for the
// background goroutines to record their outcome, or for ctx to expire.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.cancel()
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) process(job *models.HarvestJob, req models.HarvestRequest) {
	defer q.wg.Done()
	log := q.logger.With("job_id", job.ID, "url", job.URL)

	// ── 1. Wait for a slot ──
	select {
	case q.sem <- struct{}{}:
	case <-q.ctx.Done():
		q.fail(job, models.NewHarvestError(models.ErrCodeCanceled, "server shutting down", q.ctx.Err()), log)
		return
	}
	defer func() { <-q.sem }()
	q.running.Add(1)
	defer q.running.Add(-1)

	// ── 2. Run ──
	job.Status = models.JobProcessing
	q.save(job, log)

	progress := func(stage models.Stage) {
		job.Stage = stage
		job.Progress = stage.Progress()
		q.save(job, log)
	}
	res, err := q.runner.Run(q.ctx, runner.Request{
		URL:           req.URL,
		JobID:         job.ID,
		Timeout:       time.Duration(req.Timeout) * time.Second,
		Stealth:       req.Stealth,
		Placeholders:  *req.Placeholders,
		RespectRobots: *req.RespectRobots,
	}, progress)
	if err != nil {
		q.fail(job, err, log)
		return
	}

	// ── 3. Record ──
	job.Status = models.JobCompleted
	job.Stage = models.StageDone
	job.Progress = models.StageDone.Progress()
	job.OutputDir = res.OutputDir
	job.DocumentPath = res.DocumentPath
	job.EngineUsed = res.EngineUsed
	summary := res.Summary
	job.Summary = &summary
	job.Report = res.Report
	job.FinishedAt = time.Now().Unix()
	q.save(job, log)

	if q.cache != nil {
		q.cache.Set(job.CacheKey, job.ID)
	}
	q.notify(job, webhook.EventCompleted)
	log.Info("job completed", "overall", res.Report.Overall)
}

func (q *Queue) fail(job *models.HarvestJob, err error, log *slog.Logger) {
	he := models.AsHarvestError(err)
	job.Status = models.JobFailed
	job.Error = he.ToDetail()
	job.FinishedAt = time.Now().Unix()
	q.save(job, log)
	q.notify(job, webhook.EventFailed)

	if errors.Is(err, context.Canceled) || he.Code == models.ErrCodeCanceled {
		log.Warn("job canceled", "error", err)
		return
	}
	log.Error("job failed", "code", he.Code, "error", err)
}

// save persists the record; a store outage must not abort the harvest.
func (q *Queue) save(job *models.HarvestJob, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := q.store.Save(ctx, job); err != nil {
		log.Warn("job record not saved", "error", err)
	}
}

func (q *Queue) notify(job *models.HarvestJob, eventType string) {
	if q.notifier == nil || job.WebhookURL == "" {
		return
	}
	q.notifier.Send(job.WebhookURL, job.WebhookSecret, &webhook.Event{
		Type:  eventType,
		JobID: job.ID,
		Data:  job.ToStatus(),
	})
}
