package optimize

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// Image decodes, flattens, downscales and re-encodes a raster image.
// Formats that cannot be re-encoded without loss of features (animated GIF,
// WEBP, SVG, ICO) are skipped. A decode failure is reported but the file is
// left as it was.
func (o *Optimizer) Image(path string) (Result, error) {
	format, err := imaging.FormatFromFilename(path)
	if err != nil || (format != imaging.JPEG && format != imaging.PNG) {
		res, statErr := statResult(path)
		if statErr != nil {
			return res, statErr
		}
		res.Skipped = "unsupported image format " + strings.ToLower(extOf(path))
		return res, nil
	}
	return o.rewrite(path, func(src []byte) ([]byte, error) {
		return o.reencode(src, format)
	})
}

func (o *Optimizer) reencode(src []byte, format imaging.Format) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(src), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	if format == imaging.JPEG && !isOpaque(img) {
		img = flatten(img, color.White)
	}

	b := img.Bounds()
	if b.Dx() > o.maxDimension || b.Dy() > o.maxDimension {
		img = imaging.Fit(img, o.maxDimension, o.maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch format {
	case imaging.JPEG:
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(o.jpegQuality))
	default:
		err = imaging.Encode(&buf, img, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression))
	}
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return buf.Bytes(), nil
}

func isOpaque(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// flatten composites img over a solid background so it can be stored in a
// format without an alpha channel.
func flatten(img image.Image, bg color.Color) image.Image {
	b := img.Bounds()
	canvas := imaging.New(b.Dx(), b.Dy(), bg)
	return imaging.Overlay(canvas, img, image.Pt(0, 0), 1.0)
}

func statResult(path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{Path: path}, fmt.Errorf("optimize: stat %s: %w", path, err)
	}
	return Result{Path: path, Before: info.Size(), After: info.Size()}, nil
}

func extOf(path string) string {
	return filepath.Ext(path)
}
