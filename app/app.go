// Package app assembles the harvest pipeline from configuration. The
// server and the CLI share it so both run identical pipelines.
package app

import (
	"fmt"
	"log/slog"

	"github.com/use-agent/mirror/browser"
	"github.com/use-agent/mirror/config"
	"github.com/use-agent/mirror/denylist"
	"github.com/use-agent/mirror/engine"
	"github.com/use-agent/mirror/fallback"
	"github.com/use-agent/mirror/fetch"
	"github.com/use-agent/mirror/harvest"
	"github.com/use-agent/mirror/optimize"
	"github.com/use-agent/mirror/quality"
	"github.com/use-agent/mirror/runner"
)

// App owns the long-lived collaborators of a harvest pipeline.
type App struct {
	Browser    *browser.Browser
	Dispatcher *engine.Dispatcher
	Runner     *runner.Runner

	fetcher *fetch.Client
	memory  *engine.Memory
}

// Tables loads the pattern tables, honouring override files.
func Tables(cfg config.HarvestConfig) (*denylist.List, *fallback.Catalogue, error) {
	list := denylist.Default()
	if cfg.TrackersFile != "" {
		l, err := denylist.Load(cfg.TrackersFile)
		if err != nil {
			return nil, nil, err
		}
		list = l
	}
	cat := fallback.Default()
	if cfg.CatalogueFile != "" {
		c, err := fallback.Load(cfg.CatalogueFile)
		if err != nil {
			return nil, nil, err
		}
		cat = c
	}
	return list, cat, nil
}

// New launches the browser and wires every stage of the pipeline.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	// ── 1. Pattern tables ──
	list, cat, err := Tables(cfg.Harvest)
	if err != nil {
		return nil, fmt.Errorf("load pattern tables: %w", err)
	}

	// ── 2. Browser ──
	b, err := browser.New(cfg.Browser, cfg.Render, list, logger)
	if err != nil {
		return nil, err
	}

	// ── 3. Render engines ──
	a := &App{Browser: b}
	engines := []engine.Engine{engine.NewRodEngine(b.Render, false)}
	if cfg.Engine.EnableMultiEngine {
		engines = append(engines,
			engine.NewRodEngine(b.Render, true),
			engine.NewHTTPEngine(fetch.NewHTTPClient(cfg.Browser.DefaultProxy), cfg.Harvest.UserAgent),
		)
		a.memory = engine.NewMemory(cfg.Engine.MemoryTTL)
	}
	a.Dispatcher = engine.NewDispatcher(engines, cfg.Engine.EscalationDelays, a.memory, logger)

	// ── 4. Harvest pipeline ──
	a.fetcher = fetch.New(fetch.Options{
		Proxy:     cfg.Browser.DefaultProxy,
		UserAgent: cfg.Harvest.UserAgent,
		MaxBytes:  cfg.Harvest.MaxAssetBytes,
	})
	h := harvest.New(a.fetcher, harvest.Options{
		Catalogue: cat,
		Optimizer: optimize.New(
			optimize.WithMaxDimension(cfg.Harvest.ImageMaxDimension),
			optimize.WithJPEGQuality(cfg.Harvest.JPEGQuality),
		),
		Denylist:     list,
		Workers:      cfg.Harvest.Workers,
		FetchTimeout: cfg.Harvest.FetchTimeout,
		Logger:       logger,
	})
	a.Runner = runner.New(a.Dispatcher, h, runner.Options{
		OutputRoot:    cfg.Harvest.OutputRoot,
		RenderTimeout: cfg.Render.DefaultTimeout,
		UserAgent:     cfg.Harvest.UserAgent,
		Fetcher:       a.fetcher,
		Scorer:        quality.New(list),
		Logger:        logger,
	})

	logger.Info("pipeline ready",
		"engines", a.Dispatcher.Engines(),
		"workers", cfg.Harvest.Workers,
		"output_root", cfg.Harvest.OutputRoot,
		"catalogue_entries", cat.Len(),
	)
	return a, nil
}

// Close stops background work and kills the browser.
func (a *App) Close() {
	a.memory.Stop()
	if a.fetcher != nil {
		a.fetcher.Close()
	}
	if a.Browser != nil {
		a.Browser.Close()
	}
}
