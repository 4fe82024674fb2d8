package digest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<!DOCTYPE html>
<html lang="en">
<head>
<title>Gardening Notes</title>
<meta name="description" content="What grew well this summer.">
<meta property="og:site_name" content="Backyard Log">
<script src="https://www.googletagmanager.com/gtag/js"></script>
</head>
<body>
<nav><a href="/">Home</a></nav>
<article>
<h1>Gardening Notes</h1>
<p>The tomatoes did better than expected this year, mostly because the bed
was moved to the south fence where it gets sun well into the evening.</p>
<p>Beans struggled early on but recovered once the watering schedule moved
to the morning. The zucchini, as always, produced more than anyone wanted.</p>
<p>Next season the plan is to try <a href="/notes/peppers">peppers</a> again
and to put down mulch before the first heat wave rather than after it.</p>
</article>
</body>
</html>`

func TestMetadata(t *testing.T) {
	meta := Metadata(articlePage, "https://garden.example/notes/summer")

	assert.Equal(t, "https://garden.example/notes/summer", meta.SourceURL)
	assert.Equal(t, "Gardening Notes", meta.Title)
	assert.Equal(t, "What grew well this summer.", meta.Description)
	assert.Equal(t, "Backyard Log", meta.SiteName)
	assert.Equal(t, "en", meta.Language)
}

func TestMetadata_BadURL(t *testing.T) {
	meta := Metadata(articlePage, "://nope")
	assert.Equal(t, "://nope", meta.SourceURL)
	assert.Empty(t, meta.Title)
}

func TestMarkdown_Article(t *testing.T) {
	md, err := Markdown(articlePage, "https://garden.example/notes/summer")
	require.NoError(t, err)

	assert.Contains(t, md, "tomatoes did better")
	assert.Contains(t, md, "https://garden.example/notes/peppers")
	assert.NotContains(t, md, "googletagmanager")
	assert.NotContains(t, md, "<p>")
}

func TestMarkdown_ShortPageFallsBack(t *testing.T) {
	md, err := Markdown(`<html><body><h2>Hi</h2><p>Short.</p></body></html>`, "https://x.example/")
	require.NoError(t, err)
	assert.Contains(t, md, "## Hi")
	assert.Contains(t, md, "Short.")
}

func TestFingerprint(t *testing.T) {
	assert.Zero(t, Fingerprint(""))
	assert.Equal(t, Fingerprint("one two three"), Fingerprint("one two three"))
	assert.NotZero(t, Fingerprint("hello"))

	near := Distance(
		Fingerprint("the quick brown fox jumps over the lazy dog"),
		Fingerprint("the quick brown fox leaps over the lazy dog"),
	)
	far := Distance(
		Fingerprint("the quick brown fox jumps over the lazy dog"),
		Fingerprint("completely unrelated content about quantum physics and mathematics"),
	)
	assert.Less(t, near, far)
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 0, Distance(0xff, 0xff))
	assert.Equal(t, 64, Distance(0, ^uint64(0)))
	assert.Equal(t, 2, Distance(0b1010, 0b0000))
}

func TestCompare_URLRewriteKeepsStructure(t *testing.T) {
	rendered := `<html><head><link rel="stylesheet" href="https://cdn.example/a.css"></head>
<body><div><img src="https://cdn.example/logo.png"><p>hi</p></div></body></html>`
	rewritten := strings.NewReplacer(
		"https://cdn.example/a.css", "assets/css/a.css",
		"https://cdn.example/logo.png", "assets/images/logo.png",
	).Replace(rendered)

	f := Compare(rendered, rewritten)
	assert.Equal(t, 0, f.Distance)
	assert.Equal(t, 1.0, f.Similarity)
}

func TestCompare_RemovedElementsShowUp(t *testing.T) {
	rendered := `<html><body><div><p>a</p><p>b</p></div><script></script><iframe></iframe><section><ul><li>x</li></ul></section></body></html>`
	stripped := `<html><body><form></form></body></html>`

	f := Compare(rendered, stripped)
	assert.Greater(t, f.Distance, 0)
	assert.Less(t, f.Similarity, 1.0)
	assert.GreaterOrEqual(t, f.Similarity, 0.0)
}

func TestStructure_FewTags(t *testing.T) {
	assert.Zero(t, Structure("plain text"))
	assert.Equal(t, Fingerprint("b i"), Structure("<b>x</b><i>y</i>"))
}
