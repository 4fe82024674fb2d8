package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/mirror/engine"
	"github.com/use-agent/mirror/models"
)

// autoScrollJS scrolls to the bottom in 200px steps so lazy-loaded images
// and sections materialize, then returns to the top. maxPx bounds
// infinite-scroll pages.
const autoScrollJS = `(maxPx) => new Promise((resolve) => {
	let total = 0;
	const step = 200;
	const timer = setInterval(() => {
		const height = document.body ? document.body.scrollHeight : 0;
		window.scrollBy(0, step);
		total += step;
		if (total >= height - window.innerHeight || total >= maxPx) {
			clearInterval(timer);
			window.scrollTo(0, 0);
			resolve(total);
		}
	}, 50);
})`

const maxScrollPx = 40000

// Render loads req.URL and returns the markup after scripts ran and lazy
// content was scrolled into view. It has the engine.RenderFunc shape.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard     – hard deadline on the whole render
//  2. Acquire page      – borrow a tab from the pool
//  3. DEFER: cleanup    – about:blank + return to pool
//  4. Stealth injection – before navigation
//  5. Hijack mount      – block media and trackers, before navigation
//  6. Navigate          – bounded by the navigation timeout
//  7. Wait              – load event, then DOM stable
//  8. Auto-scroll       – trigger lazy loading, then settle
//  9. Extract           – page.HTML() + title + final URL
func (b *Browser) Render(ctx context.Context, req *engine.Request) (*engine.Page, error) {
	// ── 1. Timeout guard ──
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = b.render.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// ── 2. Acquire page from pool ──
	b.activePages.Add(1)
	defer b.activePages.Add(-1)

	page, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeBrowserCrash, "failed to acquire page from pool", err)
	}

	// ── 3. Cleanup uses the original page so it works after ctx expired ──
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			b.logger.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(page)
	}()

	// ── 4. Stealth injection ──
	if req.Stealth {
		if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
			b.logger.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
		}
	}
	if u, parseErr := url.Parse(req.URL); parseErr == nil {
		_ = proto.NetworkSetExtraHTTPHeaders{
			Headers: toHeadersMap(map[string]string{
				"Referer":         "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
				"Accept-Language": "en-US,en;q=0.9",
			}),
		}.Call(page)
	}

	// ── 5. Hijack ──
	if router := setupHijack(page, b.render.BlockedResourceTypes, b.render.BlockTrackers, b.blocklist); router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := page.Context(ctx)

	// ── 6. Navigate ──
	navTimeout := b.render.NavigationTimeout
	if navTimeout <= 0 || navTimeout > timeout {
		navTimeout = timeout
	}
	if err := p.Timeout(navTimeout).Navigate(req.URL); err != nil {
		return nil, categorizeError(err, "navigation to target URL failed")
	}

	// ── 7. Wait ──
	if err := p.WaitLoad(); err != nil {
		b.logger.Debug("load event not observed, continuing", "url", req.URL, "error", err)
	}
	if err := p.WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		b.logger.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", err)
	}
	statusCode := 0
	if res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`); err == nil {
		statusCode = res.Value.Int()
	}
	if statusCode >= 400 {
		return nil, models.NewHarvestError(models.ErrCodeNavigation,
			"target responded with an error status", fmt.Errorf("%s: status %d", req.URL, statusCode))
	}

	// ── 8. Auto-scroll + settle ──
	if _, err := p.Eval(autoScrollJS, maxScrollPx); err != nil {
		b.logger.Debug("auto-scroll failed", "url", req.URL, "error", err)
	}
	if err := sleepCtx(ctx, b.render.SettleDelay); err != nil {
		return nil, categorizeError(err, "render canceled while settling")
	}

	// ── 9. Extract ──
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(err, "failed to extract page HTML")
	}
	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.URL
	}
	return &engine.Page{
		HTML:       rawHTML,
		Title:      evalStringOrEmpty(p, `() => document.title`),
		StatusCode: statusCode,
		FinalURL:   finalURL,
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// categorizeError wraps raw rod errors into typed HarvestErrors so callers
// can map them to job failures.
func categorizeError(err error, msg string) *models.HarvestError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewHarvestError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewHarvestError(models.ErrCodeCanceled, "render canceled", err)
	default:
		return models.NewHarvestError(models.ErrCodeNavigation, msg, err)
	}
}
