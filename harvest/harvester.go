// Package harvest turns a rendered document into a self-contained
// directory. It finds what the page references, fetches each resource once
// (with a catalogue fallback), validates it, writes it, shrinks it, and
// rewrites the markup to the local copies.
package harvest

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/mirror/denylist"
	"github.com/use-agent/mirror/fallback"
	"github.com/use-agent/mirror/fetch"
	"github.com/use-agent/mirror/models"
	"github.com/use-agent/mirror/optimize"
)

const (
	DefaultWorkers      = 8
	DefaultFetchTimeout = 30 * time.Second
	maxWorkers          = 16
)

// Options configures a Harvester. Zero values select the defaults.
type Options struct {
	Catalogue    *fallback.Catalogue
	Optimizer    *optimize.Optimizer
	Denylist     *denylist.List
	Workers      int
	FetchTimeout time.Duration
	Logger       *slog.Logger
}

// Harvester holds the collaborators shared by every job. Per-job state
// lives in the run created by each Harvest call, so concurrent jobs never
// share a dedup set.
type Harvester struct {
	fetcher      fetch.Fetcher
	catalogue    *fallback.Catalogue
	optimizer    *optimize.Optimizer
	denylist     *denylist.List
	workers      int
	fetchTimeout time.Duration
	logger       *slog.Logger
}

// New creates a Harvester around a fetch primitive.
func New(f fetch.Fetcher, opts Options) *Harvester {
	h := &Harvester{
		fetcher:      f,
		catalogue:    opts.Catalogue,
		optimizer:    opts.Optimizer,
		denylist:     opts.Denylist,
		workers:      opts.Workers,
		fetchTimeout: opts.FetchTimeout,
		logger:       opts.Logger,
	}
	if h.catalogue == nil {
		h.catalogue = fallback.Default()
	}
	if h.optimizer == nil {
		h.optimizer = optimize.New()
	}
	if h.denylist == nil {
		h.denylist = denylist.Default()
	}
	if h.workers <= 0 {
		h.workers = DefaultWorkers
	}
	if h.workers > maxWorkers {
		h.workers = maxWorkers
	}
	if h.fetchTimeout <= 0 {
		h.fetchTimeout = DefaultFetchTimeout
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Result is what a harvest produced.
type Result struct {
	// Document is the rewritten markup.
	Document string

	// Inventory lists the canonical URLs that were materialized, sorted.
	Inventory []string

	// Outcomes holds every resolution attempted, sorted by URL.
	Outcomes []Outcome

	Summary models.HarvestSummary
}

// run is the per-job state of one Harvest call.
type run struct {
	h     *Harvester
	job   *Job
	table *table
	slots chan struct{}
	log   *slog.Logger

	phMu      sync.Mutex
	phWritten map[models.Kind]string
}

type task struct {
	url  string
	kind models.Kind
}

// Harvest mirrors document, rendered from baseURL, into job's directory
// and returns the rewritten markup. Individual resource failures are
// recorded in the result, never returned. Errors are returned only for an
// invalid base URL or a canceled job.
func (h *Harvester) Harvest(ctx context.Context, job *Job, document, baseURL string) (*Result, error) {
	start := time.Now()

	// ── 1. Parse inputs ──
	base, err := url.Parse(baseURL)
	if err != nil || !base.IsAbs() || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, models.NewHarvestError(models.ErrCodeInvalidInput, "base URL must be an absolute http(s) URL: "+baseURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeInternal, "failed to parse document", err)
	}

	r := &run{
		h:         h,
		job:       job,
		table:     newTable(),
		slots:     make(chan struct{}, h.workers),
		log:       h.logger.With("job_id", job.ID),
		phWritten: make(map[models.Kind]string),
	}

	// ── 2. Pre-pass: trackers, forms, <base> ──
	base = r.prepass(doc, base)

	// ── 3. Enumerate references ──
	refs := r.enumerate(doc, base)
	styles := r.enumerateInline(doc)
	tasks := collectTasks(refs, styles, base)

	// ── 4. Resolve with a bounded worker pool ──
	var g errgroup.Group
	g.SetLimit(h.workers)
	for _, t := range tasks {
		g.Go(func() error {
			r.resolve(ctx, t.url, t.kind)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, models.NewHarvestError(models.ErrCodeCanceled, "harvest canceled", err)
	}

	// ── 5. Rewrite references ──
	placeholders := r.rewrite(refs)
	r.rewriteInline(styles, base)

	// ── 6. Serialize ──
	html, err := doc.Html()
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeInternal, "failed to serialize document", err)
	}

	res := r.result(html, placeholders)
	r.log.Info("harvest complete",
		"url", baseURL,
		"discovered", res.Summary.Discovered,
		"resolved", res.Summary.Resolved,
		"unresolved", res.Summary.Unresolved,
		"via_fallback", res.Summary.ViaFallback,
		"placeholders", res.Summary.Placeholders,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

// collectTasks lists distinct canonical URLs in discovery order. When one
// URL is referenced as several kinds the first kind wins.
func collectTasks(refs []reference, styles []inlineStyle, base *url.URL) []task {
	seen := make(map[string]struct{})
	var tasks []task
	add := func(u string, k models.Kind) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		tasks = append(tasks, task{url: u, kind: k})
	}
	for _, ref := range refs {
		add(ref.url, ref.kind)
	}
	for _, st := range styles {
		for _, c := range scanCSS(st.text, base) {
			add(c.url, c.kind)
		}
	}
	return tasks
}

func (r *run) result(html string, placeholders int) *Result {
	outcomes := r.table.snapshot()
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].URL < outcomes[j].URL })

	res := &Result{Document: html, Outcomes: outcomes}
	res.Summary.Discovered = len(outcomes)
	res.Summary.Placeholders = placeholders
	for _, o := range outcomes {
		if o.OK() {
			res.Inventory = append(res.Inventory, o.URL)
			res.Summary.Resolved++
			if o.Source == SourceFallback {
				res.Summary.ViaFallback++
			}
			continue
		}
		res.Summary.Unresolved++
		res.Summary.Failures = append(res.Summary.Failures, models.ResourceFailure{
			URL:    o.URL,
			Kind:   string(o.Kind),
			Reason: o.Err.Error(),
		})
	}
	return res
}
