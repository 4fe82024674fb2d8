package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"
)

// Dispatcher renders with staged escalation: engines[i] joins the race
// escalationDelays[i] after it starts, and the first success wins. A
// domain's last winner is tried alone first on later renders.
type Dispatcher struct {
	engines          []Engine
	escalationDelays []time.Duration
	memory           *Memory
	logger           *slog.Logger
}

// NewDispatcher creates a Dispatcher. Missing delays default to zero;
// memory may be nil.
func NewDispatcher(engines []Engine, escalationDelays []time.Duration, memory *Memory, logger *slog.Logger) *Dispatcher {
	delays := make([]time.Duration, len(engines))
	copy(delays, escalationDelays)
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		engines:          engines,
		escalationDelays: delays,
		memory:           memory,
		logger:           logger,
	}
}

// Engines lists the engine names in escalation order.
func (d *Dispatcher) Engines() []string {
	names := make([]string, len(d.engines))
	for i, e := range d.engines {
		names[i] = e.Name()
	}
	return names
}

// Render returns the first successful render. When every engine fails the
// error joins all of their errors.
func (d *Dispatcher) Render(ctx context.Context, req *Request) (*Page, error) {
	if len(d.engines) == 0 {
		return nil, errors.New("dispatcher: no engines configured")
	}
	domain := hostOf(req.URL)

	if remembered := d.memory.Recall(domain); remembered != "" {
		for _, eng := range d.engines {
			if eng.Name() != remembered {
				continue
			}
			d.logger.Debug("domain memory hit", "domain", domain, "engine", remembered)
			page, err := eng.Render(ctx, req)
			if err == nil {
				return page, nil
			}
			if ctx.Err() != nil {
				return nil, err
			}
			d.logger.Info("remembered engine failed, running full race",
				"domain", domain, "engine", remembered, "error", err)
			d.memory.Forget(domain)
			break
		}
	}

	return d.race(ctx, req, domain)
}

func (d *Dispatcher) race(ctx context.Context, req *Request, domain string) (*Page, error) {
	type outcome struct {
		page *Page
		err  error
	}

	raceCtx, raceCancel := context.WithCancel(ctx)
	defer raceCancel()

	results := make(chan outcome, len(d.engines))
	var wg sync.WaitGroup

	for i, eng := range d.engines {
		delay := d.escalationDelays[i]
		wg.Add(1)
		go func() {
			defer wg.Done()

			if delay > 0 {
				t := time.NewTimer(delay)
				defer t.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-t.C:
				}
			}
			if raceCtx.Err() != nil {
				return
			}

			d.logger.Debug("engine starting", "engine", eng.Name(), "url", req.URL)
			page, err := eng.Render(raceCtx, req)
			if err != nil {
				d.logger.Debug("engine failed", "engine", eng.Name(), "url", req.URL, "error", err)
			}
			results <- outcome{page: page, err: err}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	var errs []error
	for o := range results {
		if o.err != nil {
			errs = append(errs, o.err)
			continue
		}
		raceCancel()
		d.logger.Info("engine won race", "engine", o.page.EngineName, "url", req.URL)
		d.memory.Remember(domain, o.page.EngineName)
		return o.page, nil
	}

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("dispatcher: all engines failed for %s", req.URL)
	}
	return nil, errors.Join(errs...)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
