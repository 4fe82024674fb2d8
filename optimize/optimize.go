// Package optimize shrinks persisted assets in place. Every optimizer is
// best-effort: a file is only replaced when the new payload is strictly
// smaller, and any failure leaves the original bytes untouched.
package optimize

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/use-agent/mirror/models"
)

// Defaults for image re-encoding.
const (
	DefaultMaxDimension = 2500
	DefaultJPEGQuality  = 80
)

// Result describes what an optimizer did to one file.
type Result struct {
	Path      string
	Before    int64
	After     int64
	Rewritten bool
	// Skipped names why no attempt was made (unsupported format etc.).
	Skipped string
}

// Saved returns the number of bytes removed.
func (r Result) Saved() int64 { return r.Before - r.After }

// Optimizer holds the reusable minifier and image settings.
// It is safe for concurrent use.
type Optimizer struct {
	minifier     *minify.M
	maxDimension int
	jpegQuality  int
}

// Option customises an Optimizer.
type Option func(*Optimizer)

// WithMaxDimension sets the longest-side ceiling for images.
// Non-positive values keep the default.
func WithMaxDimension(px int) Option {
	return func(o *Optimizer) {
		if px > 0 {
			o.maxDimension = px
		}
	}
}

// WithJPEGQuality sets the lossy re-encode quality (1..100).
func WithJPEGQuality(q int) Option {
	return func(o *Optimizer) {
		if q >= 1 && q <= 100 {
			o.jpegQuality = q
		}
	}
}

// New creates an Optimizer.
func New(opts ...Option) *Optimizer {
	m := minify.New()
	m.AddFunc("text/css", css.Minify)
	o := &Optimizer{
		minifier:     m,
		maxDimension: DefaultMaxDimension,
		jpegQuality:  DefaultJPEGQuality,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// File optimizes path according to kind. Fonts are left alone.
func (o *Optimizer) File(path string, kind models.Kind) (Result, error) {
	switch kind {
	case models.KindImage, models.KindIcon:
		return o.Image(path)
	case models.KindCSS:
		return o.CSS(path)
	case models.KindJS:
		return o.JS(path)
	default:
		info, err := os.Stat(path)
		if err != nil {
			return Result{Path: path}, err
		}
		return Result{Path: path, Before: info.Size(), After: info.Size(), Skipped: "no optimizer for " + string(kind)}, nil
	}
}

// CSS compresses a stylesheet with the syntax-aware minifier, falling back
// to a conservative regex pass when the minifier rejects the input.
func (o *Optimizer) CSS(path string) (Result, error) {
	return o.rewrite(path, func(src []byte) ([]byte, error) {
		out, err := o.minifier.Bytes("text/css", src)
		if err != nil {
			return CompressCSS(src), nil
		}
		return out, nil
	})
}

// JS strips block comments and nothing else.
func (o *Optimizer) JS(path string) (Result, error) {
	return o.rewrite(path, func(src []byte) ([]byte, error) {
		return StripJSComments(src), nil
	})
}

// rewrite applies transform to the file and replaces it only when the
// result is non-empty and strictly smaller.
func (o *Optimizer) rewrite(path string, transform func([]byte) ([]byte, error)) (Result, error) {
	res := Result{Path: path}
	src, err := os.ReadFile(path)
	if err != nil {
		return res, fmt.Errorf("optimize: read %s: %w", path, err)
	}
	res.Before = int64(len(src))
	res.After = res.Before

	out, err := transform(src)
	if err != nil {
		return res, fmt.Errorf("optimize: %s: %w", filepath.Base(path), err)
	}
	if len(out) == 0 || len(out) >= len(src) || bytes.Equal(out, src) {
		return res, nil
	}
	if err := replaceFile(path, out); err != nil {
		return res, err
	}
	res.After = int64(len(out))
	res.Rewritten = true
	return res, nil
}

// replaceFile writes data next to path and renames it over path so readers
// never observe a half-written file.
func replaceFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".opt-*")
	if err != nil {
		return fmt.Errorf("optimize: temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("optimize: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("optimize: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("optimize: replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
