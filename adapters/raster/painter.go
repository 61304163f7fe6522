// Package invoiceraster paints the invoice rendering model into a bitmap
// without a browser. The layout follows the document template at a fixed
// 794 CSS px page width so its output can feed the raster PDF assembler.
package invoiceraster

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"

	"github.com/goliatone/go-invoice/invoice"
)

// Page geometry in CSS px.
const (
	DefaultWidth      = 794
	DefaultPageHeight = 1123
	DefaultScale      = 2.0
)

// Painter draws the rendering model with vector shapes and OpenType text.
// It implements the raster PDF renderer's Rasterizer contract.
type Painter struct {
	Width int
	Scale float64
	// Font data (TTF/OTF). Nil selects the Go fonts.
	Regular []byte
	Bold    []byte
	Italic  []byte
}

var (
	goFontsOnce sync.Once
	goFonts     fontSet
	goFontsErr  error
)

type fontSet struct {
	regular *sfnt.Font
	bold    *sfnt.Font
	italic  *sfnt.Font
}

// Rasterize paints model onto a white canvas at least one A4 page tall.
func (p Painter) Rasterize(ctx context.Context, model invoice.Model, opts invoice.RenderOptions) (image.Image, error) {
	_ = opts
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fonts, err := p.fonts()
	if err != nil {
		return nil, invoice.NewError(invoice.KindRender, "load raster fonts", err)
	}

	width := p.Width
	if width <= 0 {
		width = DefaultWidth
	}
	scale := p.Scale
	if scale <= 0 {
		scale = DefaultScale
	}

	l := newLayout(fonts, float64(width), scale)
	defer l.close()
	height := l.document(model)
	if height < DefaultPageHeight {
		height = DefaultPageHeight
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dst := image.NewRGBA(image.Rect(0, 0, int(float64(width)*scale+0.5), int(height*scale+0.5)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	for _, op := range l.ops {
		op(dst)
	}
	return dst, nil
}

func (p Painter) fonts() (fontSet, error) {
	if p.Regular == nil && p.Bold == nil && p.Italic == nil {
		goFontsOnce.Do(func() {
			goFonts, goFontsErr = parseFonts(goregular.TTF, gobold.TTF, goitalic.TTF)
		})
		return goFonts, goFontsErr
	}
	regular := p.Regular
	if regular == nil {
		regular = goregular.TTF
	}
	bold := p.Bold
	if bold == nil {
		bold = regular
	}
	italic := p.Italic
	if italic == nil {
		italic = regular
	}
	return parseFonts(regular, bold, italic)
}

// FontDir loads painter faces from dir. It reads regular.ttf (or .otf) and,
// when present, bold and italic variants. Missing variants reuse regular.
func FontDir(dir string) (Painter, error) {
	regular, err := readFace(dir, "regular")
	if err != nil {
		return Painter{}, err
	}
	if regular == nil {
		return Painter{}, invoice.NewError(invoice.KindValidation, fmt.Sprintf("no regular font in %s", dir), nil)
	}
	bold, err := readFace(dir, "bold")
	if err != nil {
		return Painter{}, err
	}
	italic, err := readFace(dir, "italic")
	if err != nil {
		return Painter{}, err
	}
	painter := Painter{Regular: regular, Bold: bold, Italic: italic}
	if _, err := painter.fonts(); err != nil {
		return Painter{}, invoice.NewError(invoice.KindValidation, fmt.Sprintf("parse fonts in %s", dir), err)
	}
	return painter, nil
}

func readFace(dir, name string) ([]byte, error) {
	for _, ext := range []string{".ttf", ".otf"} {
		data, err := os.ReadFile(filepath.Join(dir, name+ext))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, invoice.NewError(invoice.KindValidation, "read font "+name, err)
		}
	}
	return nil, nil
}

// Covers reports whether the painter's regular face has a glyph for every
// rune of s, so it prints without substitution.
func (p Painter) Covers(s string) (bool, error) {
	fonts, err := p.fonts()
	if err != nil {
		return false, err
	}
	return sanitize(fonts.regular, s) == s, nil
}

func parseFonts(regular, bold, italic []byte) (fontSet, error) {
	var set fontSet
	var err error
	if set.regular, err = opentype.Parse(regular); err != nil {
		return fontSet{}, err
	}
	if set.bold, err = opentype.Parse(bold); err != nil {
		return fontSet{}, err
	}
	if set.italic, err = opentype.Parse(italic); err != nil {
		return fontSet{}, err
	}
	return set, nil
}

// Glyphs some fonts lack, spelled out so amounts stay legible.
var glyphSubstitutes = map[rune]string{
	'₹':      "Rs.",
	'₪':      "ILS ",
	'₩':      "KRW ",
	'₫':      "VND ",
	'₱':      "PHP ",
	'\u00a0': " ",
}

// sanitize replaces runes the font has no glyph for.
func sanitize(f *sfnt.Font, s string) string {
	var buf sfnt.Buffer
	out := make([]rune, 0, len(s))
	changed := false
	for _, r := range s {
		idx, err := f.GlyphIndex(&buf, r)
		if err == nil && idx != 0 {
			out = append(out, r)
			continue
		}
		changed = true
		if sub, ok := glyphSubstitutes[r]; ok {
			out = append(out, []rune(sub)...)
			continue
		}
		out = append(out, '?')
	}
	if !changed {
		return s
	}
	return string(out)
}

type faceKey struct {
	weight weight
	size   float64
}

type weight int

const (
	regular weight = iota
	bold
	italic
)

type faceCache struct {
	fonts fontSet
	scale float64
	faces map[faceKey]font.Face
}

func (c *faceCache) face(w weight, size float64) font.Face {
	key := faceKey{weight: w, size: size}
	if face, ok := c.faces[key]; ok {
		return face
	}
	face, err := opentype.NewFace(c.font(w), &opentype.FaceOptions{
		Size:    size * c.scale,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		face = nil
	}
	c.faces[key] = face
	return face
}

func (c *faceCache) font(w weight) *sfnt.Font {
	switch w {
	case bold:
		return c.fonts.bold
	case italic:
		return c.fonts.italic
	default:
		return c.fonts.regular
	}
}

func (c *faceCache) close() {
	for _, face := range c.faces {
		if face != nil {
			_ = face.Close()
		}
	}
}
