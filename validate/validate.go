// Package validate decides whether a downloaded payload really is the
// asset type it claims to be. Every check rejects HTML so that error pages
// and login redirects never land on disk as images, stylesheets or scripts.
package validate

import (
	"bytes"
	"io"
	"regexp"
	"strings"

	"github.com/use-agent/mirror/models"
	"golang.org/x/net/html/charset"
)

// Check runs the validator appropriate for kind. Icons are images.
func Check(kind models.Kind, b []byte) bool {
	switch kind {
	case models.KindImage, models.KindIcon:
		return IsValidImage(b)
	case models.KindCSS:
		return IsValidCSS(b)
	case models.KindJS:
		return IsValidJS(b)
	case models.KindFont:
		return IsValidFont(b)
	default:
		return false
	}
}

// svgWindow is how far into a payload the <svg tag may appear.
const svgWindow = 100

var rasterSignatures = [][]byte{
	{0xFF, 0xD8, 0xFF},       // JPEG
	{0x89, 'P', 'N', 'G'},    // PNG
	[]byte("GIF87a"),         // GIF
	[]byte("GIF89a"),         // GIF
	{0x00, 0x00, 0x01, 0x00}, // ICO
	{0x00, 0x00, 0x02, 0x00}, // CUR
}

// IsValidImage reports whether b starts with a known raster signature or
// carries an <svg tag near its start.
func IsValidImage(b []byte) bool {
	if len(b) == 0 || looksLikeHTML(b) {
		return false
	}
	for _, sig := range rasterSignatures {
		if bytes.HasPrefix(b, sig) {
			return true
		}
	}
	if len(b) >= 12 && bytes.HasPrefix(b, []byte("RIFF")) && string(b[8:12]) == "WEBP" {
		return true
	}
	head := b
	if len(head) > svgWindow {
		head = head[:svgWindow]
	}
	return bytes.Contains(bytes.ToLower(head), []byte("<svg"))
}

// cssSignals are tokens at least one of which appears in any real stylesheet
// longer than shortCSS.
var cssSignals = regexp.MustCompile(`(?is)\{.*\}|@import|@media|@font-face|@charset|@keyframes|[a-z-]+\s*:\s*[^;{}]+;|(?:^|[\s,}])[.#]?[a-z][\w-]*\s*\{`)

const shortCSS = 20

// IsValidCSS reports whether b decodes to stylesheet text.
// Short snippets are accepted without a syntax signal.
func IsValidCSS(b []byte) bool {
	text, ok := decodeText(b, "text/css")
	if !ok || text == "" || htmlText(text) {
		return false
	}
	trimmed := strings.TrimSpace(text)
	if len([]rune(trimmed)) <= shortCSS {
		return true
	}
	return cssSignals.MatchString(trimmed)
}

// IsValidJS is a negative filter: anything non-empty that is not HTML passes.
func IsValidJS(b []byte) bool {
	text, ok := decodeText(b, "application/javascript")
	if !ok || text == "" {
		return false
	}
	return !htmlText(text)
}

// IsValidFont is a negative filter like IsValidJS; font containers vary too
// much (woff, woff2, ttf, otf, eot) for a useful positive table.
func IsValidFont(b []byte) bool {
	return len(b) > 0 && !looksLikeHTML(b)
}

// decodeText converts b to UTF-8 using its BOM or meta hints, falling back
// to the content type's default. ok is false when decoding fails.
func decodeText(b []byte, contentType string) (string, bool) {
	if len(b) == 0 {
		return "", false
	}
	enc, _, _ := charset.DetermineEncoding(b, contentType)
	out, err := io.ReadAll(enc.NewDecoder().Reader(bytes.NewReader(b)))
	if err != nil {
		return "", false
	}
	return string(out), true
}

var htmlOpeners = []string{"<!doctype html", "<html", "<head", "<body"}

// htmlText reports whether text opens like an HTML document or embeds an <html tag.
func htmlText(text string) bool {
	lower := strings.ToLower(strings.TrimLeft(text, "\ufeff \t\r\n\f"))
	for _, p := range htmlOpeners {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return strings.Contains(lower, "<html")
}

func looksLikeHTML(b []byte) bool {
	head := bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	head = bytes.TrimLeft(head, " \t\r\n")
	if len(head) > 64 {
		head = head[:64]
	}
	lower := strings.ToLower(string(head))
	for _, p := range htmlOpeners {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
