package optimize

import (
	"regexp"
)

var (
	reCSSComment    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reCSSWhitespace = regexp.MustCompile(`\s+`)
	reCSSPunct      = regexp.MustCompile(`\s*([:;{}])\s*`)
)

// CompressCSS is the regex fallback compressor: it removes block comments,
// collapses whitespace runs and drops whitespace around : ; { }.
func CompressCSS(src []byte) []byte {
	out := reCSSComment.ReplaceAll(src, nil)
	out = reCSSWhitespace.ReplaceAll(out, []byte(" "))
	out = reCSSPunct.ReplaceAll(out, []byte("$1"))
	return trimSpace(out)
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && b[start] == ' ' {
		start++
	}
	for end > start && b[end-1] == ' ' {
		end--
	}
	return b[start:end]
}
