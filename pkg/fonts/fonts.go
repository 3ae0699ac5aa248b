// Package fonts provides the embedded typefaces and text metrics shared by
// the PDF and PNG renderers.
//
// Both renderers draw with the same TrueType bytes, and every text
// position is computed once from [Handle.Measure], so a string occupies
// the same width on the page and on the preview image.
package fonts

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Handle is a parsed font. It is safe for concurrent use.
type Handle struct {
	name string
	ttf  []byte
	font *opentype.Font
}

// Parse parses TrueType or OpenType data.
func Parse(name string, data []byte) (*Handle, error) {
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font %s: %w", name, err)
	}
	return &Handle{name: name, ttf: data, font: f}, nil
}

// Name returns the name the handle was registered under.
func (h *Handle) Name() string { return h.name }

// TTF returns the raw font file.
func (h *Handle) TTF() []byte { return h.ttf }

// Measure returns the advance width of text at the given size, including
// kerning. Units are those of size.
func (h *Handle) Measure(text string, size float64) float64 {
	var (
		buf   sfnt.Buffer
		ppem  = fixed.Int26_6(size * 64)
		total fixed.Int26_6
		prev  sfnt.GlyphIndex
	)
	for i, r := range text {
		idx, err := h.font.GlyphIndex(&buf, r)
		if err != nil {
			continue
		}
		if i > 0 {
			if k, err := h.font.Kern(&buf, prev, idx, ppem, font.HintingNone); err == nil {
				total += k
			}
		}
		adv, err := h.font.GlyphAdvance(&buf, idx, ppem, font.HintingNone)
		if err == nil {
			total += adv
		}
		prev = idx
	}
	return float64(total) / 64
}

// SegmentOp is an outline drawing operation.
type SegmentOp int

const (
	MoveTo SegmentOp = iota
	LineTo
	QuadTo
	CubeTo
)

var segmentOps = map[sfnt.SegmentOp]SegmentOp{
	sfnt.SegmentOpMoveTo: MoveTo,
	sfnt.SegmentOpLineTo: LineTo,
	sfnt.SegmentOpQuadTo: QuadTo,
	sfnt.SegmentOpCubeTo: CubeTo,
}

// Point is an outline coordinate. Y grows downward from the baseline.
type Point struct {
	X, Y float64
}

// Segment is one outline step. MoveTo and LineTo use Args[0], QuadTo
// Args[0:2], CubeTo Args[0:3]. Every MoveTo starts a new closed contour.
type Segment struct {
	Op   SegmentOp
	Args [3]Point
}

// Outline returns the glyph outlines of text at size, laid out from the
// origin with the same advances and kerning as [Handle.Measure].
func (h *Handle) Outline(text string, size float64) []Segment {
	var (
		buf  sfnt.Buffer
		ppem = fixed.Int26_6(size * 64)
		pen  fixed.Int26_6
		prev sfnt.GlyphIndex
		out  []Segment
	)
	for i, r := range text {
		idx, err := h.font.GlyphIndex(&buf, r)
		if err != nil {
			continue
		}
		if i > 0 {
			if k, err := h.font.Kern(&buf, prev, idx, ppem, font.HintingNone); err == nil {
				pen += k
			}
		}
		segs, err := h.font.LoadGlyph(&buf, idx, ppem, nil)
		if err == nil {
			origin := float64(pen) / 64
			for _, s := range segs {
				seg := Segment{Op: segmentOps[s.Op]}
				for j, a := range s.Args {
					seg.Args[j] = Point{X: origin + float64(a.X)/64, Y: float64(a.Y) / 64}
				}
				out = append(out, seg)
			}
		}
		if adv, err := h.font.GlyphAdvance(&buf, idx, ppem, font.HintingNone); err == nil {
			pen += adv
		}
		prev = idx
	}
	return out
}

// Metrics returns ascent and descent at size. Both are positive.
func (h *Handle) Metrics(size float64) (ascent, descent float64) {
	var buf sfnt.Buffer
	m, err := h.font.Metrics(&buf, fixed.Int26_6(size*64), font.HintingNone)
	if err != nil {
		return size * 0.8, size * 0.2
	}
	return float64(m.Ascent) / 64, float64(m.Descent) / 64
}

// Face returns a new face at size for rasterizing. Faces are not safe for
// concurrent use; callers create one per drawing context.
func (h *Handle) Face(size float64) (font.Face, error) {
	return opentype.NewFace(h.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
}

// Style selects one of the embedded faces.
type Style struct {
	Bold   bool
	Italic bool
}

var (
	embeddedOnce sync.Once
	embedded     map[Style]*Handle
)

func loadEmbedded() {
	src := map[Style]struct {
		name string
		ttf  []byte
	}{
		{}:                         {"Go Regular", goregular.TTF},
		{Bold: true}:               {"Go Bold", gobold.TTF},
		{Italic: true}:             {"Go Italic", goitalic.TTF},
		{Bold: true, Italic: true}: {"Go Bold Italic", gobolditalic.TTF},
	}
	embedded = make(map[Style]*Handle, len(src))
	for style, s := range src {
		if h, err := Parse(s.name, s.ttf); err == nil {
			embedded[style] = h
		}
	}
}

// Embedded returns the embedded face for style, or nil if it failed to
// parse.
func Embedded(style Style) *Handle {
	embeddedOnce.Do(loadEmbedded)
	return embedded[style]
}

// standardFamilies are served by the embedded faces.
var standardFamilies = map[string]bool{
	"":                true,
	"sans":            true,
	"sans-serif":      true,
	"serif":           true,
	"go":              true,
	"helvetica":       true,
	"arial":           true,
	"times":           true,
	"times new roman": true,
}

// IsStandard reports whether family is served by an embedded face rather
// than fetched remotely.
func IsStandard(family string) bool {
	return standardFamilies[strings.ToLower(strings.TrimSpace(family))]
}
