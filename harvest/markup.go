package harvest

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/mirror/models"
)

// target is one row of the reference table: elements matching sel carry a
// resource of kind in attr.
type target struct {
	kind models.Kind
	sel  cascadia.Selector
	attr string
}

var targets = []target{
	{models.KindImage, cascadia.MustCompile("img[src]"), "src"},
	{models.KindImage, cascadia.MustCompile("video[poster]"), "poster"},
	{models.KindCSS, cascadia.MustCompile("link[rel~=stylesheet][href]"), "href"},
	{models.KindJS, cascadia.MustCompile("script[src]"), "src"},
	{models.KindFont, cascadia.MustCompile("link[rel~=preload][as=font][href]"), "href"},
	{models.KindIcon, cascadia.MustCompile("link[rel~=icon][href], link[rel~=apple-touch-icon][href], link[rel~=apple-touch-icon-precomposed][href]"), "href"},
}

// loadingHints are attributes that would make the browser bypass a
// rewritten reference, or refuse a local copy.
var loadingHints = []string{
	"srcset", "data-src", "data-srcset", "data-lazy-src", "data-original",
	"integrity", "crossorigin",
}

// reference is a markup location holding a resource URL.
type reference struct {
	sel  *goquery.Selection
	attr string
	raw  string
	url  string
	kind models.Kind
}

// inlineStyle is a <style> element (attr empty) or a style attribute whose
// text contains url() references.
type inlineStyle struct {
	sel  *goquery.Selection
	attr string
	text string
}

// prepass strips trackers, neutralizes forms and consumes <base>. It
// returns the base URL references must be resolved against.
func (r *run) prepass(doc *goquery.Document, base *url.URL) *url.URL {
	removed := 0
	doc.Find("script[src], iframe[src]").Each(func(_ int, s *goquery.Selection) {
		if src, _ := s.Attr("src"); r.h.denylist.IsTracker(src) {
			s.Remove()
			removed++
		}
	})
	doc.Find("script:not([src]), noscript").Each(func(_ int, s *goquery.Selection) {
		if r.h.denylist.IsTracker(s.Text()) {
			s.Remove()
			removed++
		}
	})

	forms := doc.Find("form")
	forms.SetAttr("action", "#")
	forms.SetAttr("method", "get")
	forms.SetAttr("onsubmit", "event.preventDefault(); return false;")

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, err := base.Parse(strings.TrimSpace(href)); err == nil && (b.Scheme == "http" || b.Scheme == "https") {
			base = b
		}
	}
	doc.Find("base").Remove()

	r.log.Debug("pre-pass done", "trackers_removed", removed, "forms", forms.Length(), "base", base.String())
	return base
}

// enumerate collects resource references in table order.
func (r *run) enumerate(doc *goquery.Document, base *url.URL) []reference {
	var refs []reference
	for _, t := range targets {
		doc.FindMatcher(t.sel).Each(func(_ int, s *goquery.Selection) {
			raw, _ := s.Attr(t.attr)
			if t.kind == models.KindJS && r.h.denylist.SkipScript(raw) {
				return
			}
			canon, ok := Canonical(base, raw)
			if !ok {
				return
			}
			refs = append(refs, reference{sel: s, attr: t.attr, raw: raw, url: canon, kind: t.kind})
		})
	}
	return refs
}

// enumerateInline collects <style> blocks and style attributes with url().
func (r *run) enumerateInline(doc *goquery.Document) []inlineStyle {
	var styles []inlineStyle
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		if text := s.Text(); strings.Contains(text, "url(") {
			styles = append(styles, inlineStyle{sel: s, text: text})
		}
	})
	doc.Find("[style]").Each(func(_ int, s *goquery.Selection) {
		if text, _ := s.Attr("style"); strings.Contains(text, "url(") {
			styles = append(styles, inlineStyle{sel: s, attr: "style", text: text})
		}
	})
	return styles
}

// rewrite points every reference at its materialized file, or at a
// placeholder when the job asks for them. Unresolved references are left
// untouched otherwise. It returns the number of placeholder substitutions.
func (r *run) rewrite(refs []reference) int {
	placeholders := 0
	for _, ref := range refs {
		if o, ok := r.table.outcome(ref.url); ok && o.OK() {
			ref.sel.SetAttr(ref.attr, o.Path)
			dropLoadingHints(ref.sel)
			continue
		}
		if !r.job.Placeholders {
			continue
		}
		p, ok := r.placeholder(ref.kind)
		if !ok {
			continue
		}
		ref.sel.SetAttr(ref.attr, p)
		ref.sel.SetAttr("data-mirror-original", ref.raw)
		dropLoadingHints(ref.sel)
		placeholders++
	}
	return placeholders
}

func (r *run) rewriteInline(styles []inlineStyle, base *url.URL) {
	for _, st := range styles {
		out, n := r.substituteCSS(st.text, base, "")
		if n == 0 {
			continue
		}
		if st.attr == "" {
			st.sel.SetText(out)
		} else {
			st.sel.SetAttr(st.attr, out)
		}
	}
}

func dropLoadingHints(s *goquery.Selection) {
	for _, a := range loadingHints {
		s.RemoveAttr(a)
	}
	// A <picture> would still prefer its remote <source> candidates.
	if s.Is("img") && s.Parent().Is("picture") {
		s.SiblingsFiltered("source").Remove()
	}
}
