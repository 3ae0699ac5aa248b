package sink

import (
	"bytes"
	"image"
	"math"

	"github.com/boombuler/barcode"
	"github.com/disintegration/imaging"
	"seehuhn.de/go/geom/matrix"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/document"
	"seehuhn.de/go/pdf/graphics"
	"seehuhn.de/go/pdf/graphics/color"
	pdfimage "seehuhn.de/go/pdf/graphics/image"

	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/fonts"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/render/scene"
)

// pdfImageDPI caps the resolution images are embedded at. Smaller sources
// are embedded as they are.
const pdfImageDPI = 300

// RenderPDF draws s onto a single page of the scene's size, one point per
// canvas unit.
func RenderPDF(s *scene.Scene) ([]byte, error) {
	var buf bytes.Buffer
	paper := &pdf.Rectangle{URx: s.Width, URy: s.Height}
	page, err := document.WriteSinglePage(&buf, paper, pdf.V1_7, nil)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "create pdf page")
	}

	dev := &pdfDevice{page: page}
	if err := play(s, vectorSpace{height: s.Height}, dev); err != nil {
		_ = page.Close()
		return nil, err
	}
	if err := page.Close(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "write pdf")
	}
	return buf.Bytes(), nil
}

type pdfDevice struct {
	page *document.Page
}

func pdfColor(c layout.Color) color.Color {
	r, g, b := c.Floats()
	return color.DeviceRGB{r, g, b}
}

func (d *pdfDevice) fillRect(x, y, w, h float64, c layout.Color) {
	d.page.SetFillColor(pdfColor(c))
	d.page.Rectangle(x, y, w, h)
	d.page.Fill()
}

func (d *pdfDevice) strokeRect(x, y, w, h, width float64, c layout.Color) {
	d.page.SetStrokeColor(pdfColor(c))
	d.page.SetLineWidth(width)
	d.page.SetLineJoin(graphics.LineJoinMiter)
	d.page.Rectangle(x, y, w, h)
	d.page.Stroke()
}

func (d *pdfDevice) line(x1, y1, x2, y2, width float64, c layout.Color) {
	d.page.SetStrokeColor(pdfColor(c))
	d.page.SetLineWidth(width)
	d.page.SetLineCap(graphics.LineCapButt)
	d.page.MoveTo(x1, y1)
	d.page.LineTo(x2, y2)
	d.page.Stroke()
}

// text fills the glyph outlines. Outline y grows downward from the
// baseline, page y grows upward.
func (d *pdfDevice) text(t scene.Text, x, baseline, size float64) {
	segs := t.Font.Outline(t.Text, size)
	if len(segs) == 0 {
		return
	}
	pt := func(p fonts.Point) fonts.Point {
		return fonts.Point{X: x + p.X, Y: baseline - p.Y}
	}

	d.page.SetFillColor(pdfColor(t.Color))
	var cur fonts.Point
	open := false
	for _, s := range segs {
		switch s.Op {
		case fonts.MoveTo:
			if open {
				d.page.ClosePath()
			}
			cur = pt(s.Args[0])
			d.page.MoveTo(cur.X, cur.Y)
			open = true
		case fonts.LineTo:
			cur = pt(s.Args[0])
			d.page.LineTo(cur.X, cur.Y)
		case fonts.QuadTo:
			c1, c2, end := quadToCubic(cur, pt(s.Args[0]), pt(s.Args[1]))
			d.page.CurveTo(c1.X, c1.Y, c2.X, c2.Y, end.X, end.Y)
			cur = end
		case fonts.CubeTo:
			c1, c2, end := pt(s.Args[0]), pt(s.Args[1]), pt(s.Args[2])
			d.page.CurveTo(c1.X, c1.Y, c2.X, c2.Y, end.X, end.Y)
			cur = end
		}
	}
	if open {
		d.page.ClosePath()
	}
	d.page.Fill()
}

// quadToCubic returns the cubic control points of the quadratic curve from
// p0 through control q to p1.
func quadToCubic(p0, q, p1 fonts.Point) (c1, c2, end fonts.Point) {
	c1 = fonts.Point{X: p0.X + 2.0/3*(q.X-p0.X), Y: p0.Y + 2.0/3*(q.Y-p0.Y)}
	c2 = fonts.Point{X: p1.X + 2.0/3*(q.X-p1.X), Y: p1.Y + 2.0/3*(q.Y-p1.Y)}
	return c1, c2, p1
}

// image embeds img as an image XObject scaled into the w×h box whose
// lower-left corner is (x, y). Alpha becomes a soft mask.
func (d *pdfDevice) image(img image.Image, x, y, w, h float64) {
	if img == nil {
		return
	}
	cols, rows := imagePixels(img.Bounds(), w, h)
	if cols == 0 || rows == 0 {
		return
	}
	if b := img.Bounds(); cols != b.Dx() || rows != b.Dy() {
		img = imaging.Resize(img, cols, rows, imaging.Lanczos)
	}
	xobj, err := pdfimage.PNG(img, color.SpaceDeviceRGB)
	if err != nil {
		return
	}

	d.page.PushGraphicsState()
	d.page.Transform(matrix.Matrix{w, 0, 0, h, x, y})
	d.page.DrawXObject(xobj)
	d.page.PopGraphicsState()
}

// imagePixels returns the pixel size to embed a source of bounds b drawn
// w×h points large. It never upsamples.
func imagePixels(b image.Rectangle, w, h float64) (cols, rows int) {
	if b.Dx() == 0 || b.Dy() == 0 || w <= 0 || h <= 0 {
		return 0, 0
	}
	limit := func(points float64) int {
		return max(1, int(math.Ceil(points*pdfImageDPI/72)))
	}
	return min(b.Dx(), limit(w)), min(b.Dy(), limit(h))
}

// qr paints a light square and then the dark modules on top.
func (d *pdfDevice) qr(code barcode.Barcode, x, y, size float64) {
	b := code.Bounds()
	n := b.Dx()
	if n == 0 {
		return
	}
	mod := size / float64(n)

	d.page.SetFillColor(color.DeviceGray(1))
	d.page.Rectangle(x, y, size, size)
	d.page.Fill()

	d.page.SetFillColor(color.DeviceGray(0))
	darkRuns(code, func(row, col, run int) {
		d.page.Rectangle(x+float64(col)*mod, y+float64(n-1-row)*mod, float64(run)*mod, mod)
	})
	d.page.Fill()
}
