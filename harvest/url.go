package harvest

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/mirror/models"
)

// maxNameLen is the longest basename kept as-is; longer names are hashed.
const maxNameLen = 100

var unsafeNameChars = regexp.MustCompile(`[^\w\-.]`)

// knownExts are the extensions a derived filename may already carry.
var knownExts = []string{
	".jpg", ".jpeg", ".png", ".gif", ".svg", ".webp", ".avif", ".ico",
	".css", ".js", ".woff", ".woff2", ".ttf", ".otf", ".eot",
}

// inertPrefixes are reference schemes that never reach the fetch pipeline.
var inertPrefixes = []string{"data:", "blob:", "javascript:", "about:", "mailto:", "#"}

// Canonical resolves ref against base and normalizes it into the dedup key:
// fragment dropped, host lowercased. It reports false for empty references,
// inline/pseudo schemes and anything that is not http(s).
func Canonical(base *url.URL, ref string) (string, bool) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", false
	}
	lower := strings.ToLower(ref)
	for _, p := range inertPrefixes {
		if strings.HasPrefix(lower, p) {
			return "", false
		}
	}
	u, err := base.Parse(ref)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if u.Host == "" {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.Host = strings.ToLower(u.Host)
	return u.String(), true
}

// Sanitize derives the on-disk filename for a canonical URL: the
// percent-decoded basename of its path restricted to [A-Za-z0-9_.-], with
// the kind's default extension appended when it carries no known one.
// Empty or over-long basenames fall back to resource_<hash>.
func Sanitize(rawURL string, kind models.Kind) string {
	var name string
	if u, err := url.Parse(rawURL); err == nil {
		p := u.Path
		if p != "" && !strings.HasSuffix(p, "/") {
			name = path.Base(p)
		}
	}
	if name == "." || name == ".." || name == "/" {
		name = ""
	}
	if name == "" || utf8.RuneCountInString(name) > maxNameLen {
		return "resource_" + shortHash(rawURL) + kind.DefaultExt()
	}

	name = unsafeNameChars.ReplaceAllString(name, "_")
	if !hasKnownExt(name) {
		name += kind.DefaultExt()
	}
	return name
}

// withSuffix inserts _<hash of rawURL> before the extension of name.
func withSuffix(name, rawURL string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "_" + shortHash(rawURL) + ext
}

func hasKnownExt(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range knownExts {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])[:8]
}

// cssExtKinds classifies url() references inside stylesheets by extension.
var cssExtKinds = map[string]models.Kind{
	".woff": models.KindFont, ".woff2": models.KindFont, ".ttf": models.KindFont,
	".otf": models.KindFont, ".eot": models.KindFont,
	".jpg": models.KindImage, ".jpeg": models.KindImage, ".png": models.KindImage,
	".gif": models.KindImage, ".svg": models.KindImage, ".webp": models.KindImage,
	".avif": models.KindImage, ".bmp": models.KindImage, ".ico": models.KindImage,
}

// classifyCSSRef returns the kind of a stylesheet url() target, or false
// when its extension is not a font or image one.
func classifyCSSRef(canonical string) (models.Kind, bool) {
	u, err := url.Parse(canonical)
	if err != nil {
		return "", false
	}
	k, ok := cssExtKinds[strings.ToLower(path.Ext(u.Path))]
	return k, ok
}
