package harvest

import (
	"context"
	"net/url"
	"regexp"

	"golang.org/x/sync/errgroup"

	"github.com/use-agent/mirror/models"
)

var cssURL = regexp.MustCompile(`url\(\s*["']?([^"')\s]+)["']?\s*\)`)

// cssRef is a url() target inside stylesheet text that classifies as a
// font or an image. Other targets (nested stylesheets, cursors, data URIs)
// are left as they are.
type cssRef struct {
	url  string
	kind models.Kind
}

// scanCSS lists the distinct font and image references in text, resolved
// against base, in order of first appearance.
func scanCSS(text string, base *url.URL) []cssRef {
	var refs []cssRef
	seen := make(map[string]struct{})
	for _, m := range cssURL.FindAllStringSubmatch(text, -1) {
		canon, ok := Canonical(base, m[1])
		if !ok {
			continue
		}
		kind, ok := classifyCSSRef(canon)
		if !ok {
			continue
		}
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		refs = append(refs, cssRef{url: canon, kind: kind})
	}
	return refs
}

// resolveCSSRefs resolves nested references concurrently. Fetch
// concurrency stays bounded by the job's fetch slots.
func (r *run) resolveCSSRefs(ctx context.Context, refs []cssRef) {
	var g errgroup.Group
	for _, ref := range refs {
		g.Go(func() error {
			r.resolve(ctx, ref.url, ref.kind)
			return nil
		})
	}
	_ = g.Wait()
}

// substituteCSS rewrites every url() whose target was materialized to
// prefix + local path and reports how many were rewritten.
func (r *run) substituteCSS(text string, base *url.URL, prefix string) (string, int) {
	n := 0
	out := cssURL.ReplaceAllStringFunc(text, func(m string) string {
		sub := cssURL.FindStringSubmatch(m)
		if sub == nil {
			return m
		}
		canon, ok := Canonical(base, sub[1])
		if !ok {
			return m
		}
		if _, ok := classifyCSSRef(canon); !ok {
			return m
		}
		o, ok := r.table.outcome(canon)
		if !ok || !o.OK() {
			return m
		}
		n++
		return "url(" + prefix + o.Path + ")"
	})
	return out, n
}

// rewriteStylesheet resolves the url() references of a persisted
// stylesheet against its own URL and rewrites the file in place when at
// least one substitution succeeded.
func (r *run) rewriteStylesheet(ctx context.Context, abs, sheetURL string, body []byte) {
	base, err := url.Parse(sheetURL)
	if err != nil {
		return
	}
	text := string(body)
	refs := scanCSS(text, base)
	if len(refs) == 0 {
		return
	}
	r.resolveCSSRefs(ctx, refs)

	// Stylesheets live one level below the job root.
	out, n := r.substituteCSS(text, base, "../")
	if n == 0 {
		return
	}
	if err := writeFile(abs, []byte(out)); err != nil {
		r.log.Warn("stylesheet rewrite failed", "url", sheetURL, "error", err)
		return
	}
	r.log.Debug("stylesheet rewritten", "url", sheetURL, "references", n)
}
