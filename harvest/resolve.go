package harvest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/use-agent/mirror/fallback"
	"github.com/use-agent/mirror/models"
	"github.com/use-agent/mirror/validate"
)

// Resolution failure reasons carried in Outcome.Err.
var (
	ErrFetch          = errors.New("fetch failed")
	ErrInvalidPayload = errors.New("payload failed validation")
	ErrPersist        = errors.New("persist failed")
	ErrCanceled       = errors.New("job canceled before fetch")
)

// strategy is one way of obtaining a resource's bytes. Strategies are
// tried in order and evaluation stops at the first usable payload.
type strategy struct {
	source Source
	url    func(canonical string, kind models.Kind) (string, bool)
}

func (h *Harvester) strategies() []strategy {
	return []strategy{
		{source: SourcePrimary, url: func(u string, _ models.Kind) (string, bool) { return u, true }},
		{source: SourceFallback, url: func(u string, k models.Kind) (string, bool) {
			e, ok := h.catalogue.Lookup(u, k)
			return e.URL, ok
		}},
	}
}

// resolve runs fetch → fallback → validate → persist → optimize for one
// canonical URL, at most once per job. Concurrent callers for the same
// URL wait for the first one and share its outcome.
func (r *run) resolve(ctx context.Context, canonical string, kind models.Kind) Outcome {
	e, owner := r.table.claim(canonical)
	if !owner {
		<-e.done
		return e.out
	}
	out := r.materialize(ctx, canonical, kind)
	r.table.finish(e, out)

	if out.OK() {
		r.log.Debug("resource resolved", "url", canonical, "kind", kind, "path", out.Path, "source", out.Source)
	} else {
		r.log.Debug("resource unresolved", "url", canonical, "kind", kind, "error", out.Err)
	}
	return out
}

func (r *run) materialize(ctx context.Context, canonical string, kind models.Kind) Outcome {
	out := Outcome{URL: canonical, Kind: kind}

	// ── 1. Fetch, with a single catalogue fallback ──
	var (
		body    []byte
		lastErr error
	)
	for _, s := range r.h.strategies() {
		target, ok := s.url(canonical, kind)
		if !ok {
			continue
		}
		payload, err := r.fetch(ctx, target)
		if err != nil {
			lastErr = err
			if errors.Is(err, ErrCanceled) {
				break
			}
			continue
		}
		// ── 2. Validate ──
		if !validate.Check(kind, payload) {
			lastErr = fmt.Errorf("%w: %s from %s", ErrInvalidPayload, kind, target)
			continue
		}
		body, out.Source = payload, s.source
		break
	}
	if body == nil {
		if lastErr == nil {
			lastErr = ErrFetch
		}
		out.Err = lastErr
		return out
	}

	// ── 3. Persist ──
	name := r.table.name(canonical, kind)
	abs := filepath.Join(r.job.Dir(kind), name)
	if err := writeFile(abs, body); err != nil {
		out.Err = fmt.Errorf("%w: %v", ErrPersist, err)
		return out
	}
	out.Path = path.Join(kind.Dir(), name)

	// ── 4. Stylesheet url() pass, before the sheet is marked resolved ──
	if kind == models.KindCSS {
		r.rewriteStylesheet(ctx, abs, canonical, body)
	}

	// ── 5. Optimize (non-fatal) ──
	if res, err := r.h.optimizer.File(abs, kind); err != nil {
		r.log.Warn("optimize failed, keeping original", "path", out.Path, "error", err)
	} else if res.Rewritten {
		r.log.Debug("optimized", "path", out.Path, "before", res.Before, "after", res.After)
	}
	return out
}

// fetch performs one bounded attempt. The attempt itself is detached from
// job cancellation so an in-flight download is never cut mid-file; a
// canceled job only stops new attempts from starting.
func (r *run) fetch(ctx context.Context, target string) ([]byte, error) {
	select {
	case r.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ErrCanceled
	}
	defer func() { <-r.slots }()
	if ctx.Err() != nil {
		return nil, ErrCanceled
	}

	a := r.h.fetcher.Fetch(context.WithoutCancel(ctx), target, r.h.fetchTimeout)
	if !a.OK() {
		if a.Err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFetch, target, a.Err)
		}
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetch, target, a.Status)
	}
	return a.Body, nil
}

// placeholder writes the shared placeholder payload for kind once per job
// and returns its relative path.
func (r *run) placeholder(kind models.Kind) (string, bool) {
	dirKind := kind
	if kind == models.KindIcon {
		dirKind = models.KindImage
	}
	name, payload, ok := fallback.Placeholder(dirKind)
	if !ok {
		return "", false
	}
	r.phMu.Lock()
	defer r.phMu.Unlock()
	if rel, ok := r.phWritten[dirKind]; ok {
		return rel, true
	}
	name = r.table.reserve(dirKind, name, "placeholder:"+string(dirKind))
	rel := path.Join(dirKind.Dir(), name)
	if err := writeFile(filepath.Join(r.job.Dir(dirKind), name), payload); err != nil {
		r.log.Warn("placeholder write failed", "path", rel, "error", err)
		return "", false
	}
	r.phWritten[dirKind] = rel
	return rel, true
}

// writeFile writes data to a temp file beside path and renames it into place.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".part-*")
	if err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
