package optimize

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/mirror/models"
)

func TestStripJSComments(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"inline comment", "var a = 1 /* one */ + 2;", "var a = 1   + 2;"},
		{"multiline comment keeps a break", "a = 1/*\n x \n*/b = 2", "a = 1\nb = 2"},
		{"line comments stay", "a(); // note\nb();", "a(); // note\nb();"},
		{"comment marker in string", `s = "/* not */"; t = '/* no */';`, `s = "/* not */"; t = '/* no */';`},
		{"comment marker in template", "s = `a /* x */ ${b /* y */} c`;", "s = `a /* x */ ${b  } c`;"},
		{"nested template braces", "s = `${ {a:1}.a }/* t */`; /* z */x", "s = `${ {a:1}.a }/* t */`;  x"},
		{"regex literal", `r = /\/*foo/g; /* c */`, `r = /\/*foo/g;  `},
		{"regex after return", "function f(){ return /a*/.test(s) }", "function f(){ return /a*/.test(s) }"},
		{"division", "x = a / b /* c */ / d;", "x = a / b   / d;"},
		{"license kept", "/*! (c) lib */\nvar a;", "/*! (c) lib */\nvar a;"},
		{"preserve kept", "/** @preserve keep */var a;", "/** @preserve keep */var a;"},
		{"unterminated", "a(); /* open", "a(); /* open"},
		{"line comment with block marker", "a(); // /* not a block\nb(); /* c */", "a(); // /* not a block\nb();  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(StripJSComments([]byte(tt.in))))
		})
	}
}

func TestStripJSComments_KeepsLineStructure(t *testing.T) {
	src := "let a = 1\n/* block\n comment */\nlet b = 2\n(function(){})()\n"
	out := string(StripJSComments([]byte(src)))
	assert.Equal(t, strings.Count(src, "\n"), strings.Count(out, "\n"))
	assert.Contains(t, out, "let a = 1\n\n\nlet b = 2")
}

func TestCompressCSS(t *testing.T) {
	in := "/* header */\nbody {\n  margin : 0 ;\n  color: red;\n}\n\n.a  .b { padding: 1px 2px }\n"
	assert.Equal(t, "body{margin:0;color:red;}.a .b{padding:1px 2px}", string(CompressCSS([]byte(in))))
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOptimizer_CSS(t *testing.T) {
	o := New()
	path := writeFile(t, "site.css", "/* theme */\nbody {\n    margin: 0px;\n    color: #ff0000;\n}\n")

	res, err := o.CSS(path)
	require.NoError(t, err)
	assert.True(t, res.Rewritten)
	assert.Less(t, res.After, res.Before)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "theme")
	assert.Contains(t, string(data), "body{")

	again, err := o.CSS(path)
	require.NoError(t, err)
	assert.False(t, again.Rewritten)
	assert.Equal(t, res.After, again.After)
}

func TestOptimizer_JS_OnlyWhenSmaller(t *testing.T) {
	o := New()
	path := writeFile(t, "app.js", "var a = 1;\nvar b = 2;\n")

	res, err := o.JS(path)
	require.NoError(t, err)
	assert.False(t, res.Rewritten)

	path = writeFile(t, "lib.js", "/* big banner comment */\nvar a = 1;\n")
	res, err = o.JS(path)
	require.NoError(t, err)
	assert.True(t, res.Rewritten)
	data, _ := os.ReadFile(path)
	assert.Equal(t, " \nvar a = 1;\n", string(data))
}

func encodeUncompressedPNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	enc := png.Encoder{CompressionLevel: png.NoCompression}
	require.NoError(t, enc.Encode(f, img))
}

func TestOptimizer_Image_Downscale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hero.png")
	encodeUncompressedPNG(t, path, imaging.New(3000, 1200, color.NRGBA{R: 40, G: 90, B: 200, A: 255}))

	o := New()
	res, err := o.Image(path)
	require.NoError(t, err)
	require.True(t, res.Rewritten)
	assert.Less(t, res.After, res.Before)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2500, img.Bounds().Dx())
	assert.Equal(t, 1000, img.Bounds().Dy())

	again, err := o.Image(path)
	require.NoError(t, err)
	assert.LessOrEqual(t, again.After, res.After)
}

func TestOptimizer_Image_CustomCeiling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "banner.png")
	encodeUncompressedPNG(t, path, imaging.New(1600, 400, color.NRGBA{R: 200, G: 30, B: 30, A: 255}))

	res, err := New(WithMaxDimension(800), WithJPEGQuality(60)).Image(path)
	require.NoError(t, err)
	require.True(t, res.Rewritten)

	img, err := imaging.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 200, img.Bounds().Dy())
}

func TestOptions_IgnoreOutOfRange(t *testing.T) {
	o := New(WithMaxDimension(0), WithJPEGQuality(500))
	assert.Equal(t, DefaultMaxDimension, o.maxDimension)
	assert.Equal(t, DefaultJPEGQuality, o.jpegQuality)
}

func TestOptimizer_Image_FlattensAlphaForJPEG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logo.jpg")
	encodeUncompressedPNG(t, path, imaging.New(400, 400, color.NRGBA{R: 255, A: 128}))

	res, err := New().Image(path)
	require.NoError(t, err)
	require.True(t, res.Rewritten)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xD8, 0xFF}, data[:3])
}

func TestOptimizer_Image_DecodeFailureLeavesFile(t *testing.T) {
	path := writeFile(t, "broken.png", "definitely not a png payload")

	_, err := New().Image(path)
	assert.Error(t, err)

	data, _ := os.ReadFile(path)
	assert.Equal(t, "definitely not a png payload", string(data))
}

func TestOptimizer_Image_SkipsUnsupported(t *testing.T) {
	for _, name := range []string{"anim.gif", "photo.webp", "icon.svg", "favicon.ico"} {
		path := writeFile(t, name, "payload")
		res, err := New().Image(path)
		require.NoError(t, err, name)
		assert.False(t, res.Rewritten, name)
		assert.NotEmpty(t, res.Skipped, name)
	}
}

func TestOptimizer_File_Font(t *testing.T) {
	path := writeFile(t, "x.woff2", "wOF2....")
	res, err := New().File(path, models.KindFont)
	require.NoError(t, err)
	assert.False(t, res.Rewritten)
	assert.Equal(t, int64(8), res.Before)
}
