package harvest

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/mirror/models"
)

func TestCanonical(t *testing.T) {
	base, err := url.Parse("https://x.test/css/site.css")
	require.NoError(t, err)

	tests := []struct {
		name string
		ref  string
		want string
		ok   bool
	}{
		{"relative", "icon.woff", "https://x.test/css/icon.woff", true},
		{"parent", "../img/a.png", "https://x.test/img/a.png", true},
		{"root", "/a.png", "https://x.test/a.png", true},
		{"protocol relative", "//CDN.example/lib.js", "https://cdn.example/lib.js", true},
		{"fragment dropped", "font.svg#icons", "https://x.test/css/font.svg", true},
		{"query kept", "a.png?v=2", "https://x.test/css/a.png?v=2", true},
		{"surrounding space", "  a.png\n", "https://x.test/css/a.png", true},
		{"data uri", "data:image/png;base64,AAAA", "", false},
		{"data uri upper", "DATA:image/png;base64,AAAA", "", false},
		{"blob", "blob:https://x.test/1", "", false},
		{"javascript", "javascript:void(0)", "", false},
		{"fragment only", "#top", "", false},
		{"empty", "", "", false},
		{"ftp", "ftp://x.test/a.png", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Canonical(base, tt.ref)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		url  string
		kind models.Kind
		want string
	}{
		{"https://x.test/img/logo.png", models.KindImage, "logo.png"},
		{"https://x.test/img/my%20logo%281%29.png", models.KindImage, "my_logo_1_.png"},
		{"https://x.test/img/photo?id=3", models.KindImage, "photo.jpg"},
		{"https://x.test/css/site.min.css?v=9", models.KindCSS, "site.min.css"},
		{"https://x.test/fonts/icons.woff2", models.KindFont, "icons.woff2"},
		{"https://x.test/api/font", models.KindFont, "font.woff2"},
		{"https://x.test/js/bundle", models.KindJS, "bundle.js"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Sanitize(tt.url, tt.kind), tt.url)
	}
}

func TestSanitize_HashFallback(t *testing.T) {
	dir := Sanitize("https://x.test/assets/", models.KindCSS)
	assert.Regexp(t, `^resource_[0-9a-f]{8}\.css$`, dir)

	root := Sanitize("https://x.test", models.KindIcon)
	assert.Regexp(t, `^resource_[0-9a-f]{8}\.ico$`, root)

	long := Sanitize("https://x.test/"+strings.Repeat("a", 101)+".png", models.KindImage)
	assert.Regexp(t, `^resource_[0-9a-f]{8}\.jpg$`, long)

	// Deterministic per URL, distinct across URLs.
	assert.Equal(t, dir, Sanitize("https://x.test/assets/", models.KindCSS))
	assert.NotEqual(t, dir, Sanitize("https://x.test/other/", models.KindCSS))
}

func TestTable_NameCollision(t *testing.T) {
	tb := newTable()
	a := tb.name("https://a.test/logo.png", models.KindImage)
	b := tb.name("https://b.test/logo.png", models.KindImage)
	again := tb.name("https://a.test/logo.png", models.KindImage)

	assert.Equal(t, "logo.png", a)
	assert.Regexp(t, `^logo_[0-9a-f]{8}\.png$`, b)
	assert.Equal(t, a, again)

	// The same name in another kind directory is not a collision.
	assert.Equal(t, "logo.png", tb.name("https://c.test/logo.png", models.KindIcon))
}

func TestClassifyCSSRef(t *testing.T) {
	tests := []struct {
		url  string
		kind models.Kind
		ok   bool
	}{
		{"https://x.test/f/icon.WOFF2?v=1", models.KindFont, true},
		{"https://x.test/f/icon.eot?#iefix", models.KindFont, true},
		{"https://x.test/i/bg.svg", models.KindImage, true},
		{"https://x.test/i/bg.webp", models.KindImage, true},
		{"https://x.test/other.css", "", false},
		{"https://x.test/cursor.cur", "", false},
	}
	for _, tt := range tests {
		kind, ok := classifyCSSRef(tt.url)
		assert.Equal(t, tt.ok, ok, tt.url)
		assert.Equal(t, tt.kind, kind, tt.url)
	}
}
