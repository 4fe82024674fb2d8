package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/use-agent/mirror/models"
)

var (
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pngBytes  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	webpBytes = []byte("RIFF\x24\x00\x00\x00WEBPVP8 ")
)

func TestIsValidImage(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want bool
	}{
		{"empty", nil, false},
		{"jpeg", jpegBytes, true},
		{"png", pngBytes, true},
		{"gif87a", []byte("GIF87a\x01\x00"), true},
		{"gif89a", []byte("GIF89a\x01\x00"), true},
		{"webp", webpBytes, true},
		{"riff but not webp", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), false},
		{"ico", []byte{0x00, 0x00, 0x01, 0x00, 0x01, 0x00}, true},
		{"svg", []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`), true},
		{"svg after prologue", []byte(`<?xml version="1.0" encoding="UTF-8"?>` + "\n" + `<svg width="1"/>`), true},
		{"svg too deep", append(make([]byte, 120), []byte("<svg/>")...), false},
		{"html error page", []byte("<!DOCTYPE html><html><body>404</body></html>"), false},
		{"html with leading whitespace", []byte("\n  <html><body>denied</body></html>"), false},
		{"garbage", []byte("hello world"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidImage(tt.in))
		})
	}
}

func TestIsValidCSS(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"short snippet", "a{}", true},
		{"short without signal", "hello", true},
		{"rule", "body { margin: 0; padding: 0; color: #333; }", true},
		{"import only", "@import url('https://fonts.example/css2?family=Inter');", true},
		{"media", "@media (max-width: 600px) { .nav { display: none } }", true},
		{"font-face", "@font-face { font-family: X; src: url(x.woff2) }", true},
		{"property list", "color: red; background: blue; margin: 0 auto;", true},
		{"doctype", "<!DOCTYPE html><html><head></head></html>", false},
		{"embedded html tag", "/* proxy */ <html><body>blocked</body></html>", false},
		{"prose", "This is definitely not a stylesheet at all, just words", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidCSS([]byte(tt.in)))
		})
	}
}

func TestIsValidCSS_Latin1(t *testing.T) {
	// "content: 'é'" in ISO-8859-1 with a @charset hint.
	payload := []byte("@charset \"iso-8859-1\"; .a { content: '\xe9'; }")
	assert.True(t, IsValidCSS(payload))
}

func TestIsValidJS(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"empty", "", false},
		{"code", "console.log('hi')", true},
		{"anything not html", "}}}{{{", true},
		{"doctype", "<!doctype html><title>x</title>", false},
		{"html inside", "var s = 1;\n<html>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidJS([]byte(tt.in)))
		})
	}
}

func TestIsValidFont(t *testing.T) {
	assert.True(t, IsValidFont([]byte("wOF2\x00\x01\x00\x00")))
	assert.False(t, IsValidFont(nil))
	assert.False(t, IsValidFont([]byte("<html>not found</html>")))
}

func TestHTMLNeverPassesAsAsset(t *testing.T) {
	payloads := []string{
		"<!DOCTYPE html><html></html>",
		"<!doctype HTML>",
		"<html lang=\"en\">",
		"<head><title>Error</title></head>",
		"<body>Forbidden</body>",
		"\xEF\xBB\xBF<!DOCTYPE html>",
	}
	for _, p := range payloads {
		b := []byte(p)
		assert.False(t, IsValidImage(b), "image: %q", p)
		assert.False(t, IsValidCSS(b), "css: %q", p)
		assert.False(t, IsValidJS(b), "js: %q", p)
		for _, k := range models.Kinds {
			assert.False(t, Check(k, b), "%s: %q", k, p)
		}
	}
}
