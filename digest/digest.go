// Package digest summarises a harvested page for its analysis files:
// page metadata, main content as Markdown, and how closely the rewritten
// document preserves the rendered DOM structure.
package digest

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"

	"github.com/use-agent/mirror/models"
)

// minArticleText is the smallest TextContent length accepted as a real
// article. Shorter extractions mean readability missed the main content.
const minArticleText = 50

// article runs readability over rawHTML. ok is false when extraction failed
// or produced too little text to trust.
func article(rawHTML, sourceURL string) (readability.Article, bool) {
	parsed, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Debug("digest: bad source url", "url", sourceURL, "error", err)
		return readability.Article{}, false
	}

	art, err := readability.FromReader(strings.NewReader(rawHTML), parsed)
	if err != nil {
		slog.Debug("digest: readability failed", "url", sourceURL, "error", err)
		return readability.Article{}, false
	}
	if len(strings.TrimSpace(art.TextContent)) < minArticleText {
		return art, false
	}
	return art, true
}

// Metadata extracts title, description, site name, author and language.
// Metadata survives even when the article body is too short to use.
func Metadata(rawHTML, sourceURL string) models.Metadata {
	meta := models.Metadata{SourceURL: sourceURL}

	art, _ := article(rawHTML, sourceURL)
	meta.Title = strings.TrimSpace(art.Title)
	meta.Description = strings.TrimSpace(art.Excerpt)
	meta.SiteName = strings.TrimSpace(art.SiteName)
	meta.Author = strings.TrimSpace(art.Byline)
	meta.Language = strings.TrimSpace(art.Language)
	return meta
}
