package sink

import (
	"bytes"
	"image"
	"math"

	"github.com/boombuler/barcode"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/render/scene"
)

// MaxRasterPixels bounds the canvas a PNG render may allocate.
const MaxRasterPixels = 64 << 20

// PNGOption configures PNG rendering.
type PNGOption func(*pngRenderer)

type pngRenderer struct {
	width int
	scale float64
}

// WithWidth renders at the given pixel width. The scale becomes
// width/canvasWidth and applies to every coordinate and size.
func WithWidth(px int) PNGOption {
	return func(r *pngRenderer) { r.width = px }
}

// WithScale sets the scale factor directly (default 1, one pixel per
// canvas unit). WithWidth takes precedence.
func WithScale(s float64) PNGOption {
	return func(r *pngRenderer) { r.scale = s }
}

func (r pngRenderer) factor(canvasWidth float64) float64 {
	if r.width > 0 && canvasWidth > 0 {
		return float64(r.width) / canvasWidth
	}
	if r.scale > 0 {
		return r.scale
	}
	return 1
}

// Rasterize draws s into an image.
func Rasterize(s *scene.Scene, opts ...PNGOption) (image.Image, error) {
	var r pngRenderer
	for _, opt := range opts {
		opt(&r)
	}
	scale := r.factor(s.Width)
	w := int(math.Round(s.Width * scale))
	h := int(math.Round(s.Height * scale))
	if w <= 0 || h <= 0 || w*h > MaxRasterPixels {
		return nil, errors.New(errors.ErrCodeRenderFailure, "raster size %dx%d out of range", w, h)
	}

	dev := &pngDevice{dc: gg.NewContext(w, h)}
	if err := play(s, rasterSpace{scale: scale}, dev); err != nil {
		return nil, err
	}
	if dev.err != nil {
		return nil, dev.err
	}
	return dev.dc.Image(), nil
}

// RenderPNG draws s and encodes it as PNG.
func RenderPNG(s *scene.Scene, opts ...PNGOption) ([]byte, error) {
	img, err := Rasterize(s, opts...)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "encode png")
	}
	return buf.Bytes(), nil
}

type pngDevice struct {
	dc  *gg.Context
	err error
}

func (d *pngDevice) fillRect(x, y, w, h float64, c layout.Color) {
	d.dc.SetColor(c)
	d.dc.DrawRectangle(x, y, w, h)
	d.dc.Fill()
}

func (d *pngDevice) strokeRect(x, y, w, h, width float64, c layout.Color) {
	d.dc.SetColor(c)
	d.dc.SetLineWidth(width)
	d.dc.SetLineJoinRound()
	d.dc.DrawRectangle(x, y, w, h)
	d.dc.Stroke()
}

func (d *pngDevice) line(x1, y1, x2, y2, width float64, c layout.Color) {
	d.dc.SetColor(c)
	d.dc.SetLineWidth(width)
	d.dc.SetLineCapButt()
	d.dc.DrawLine(x1, y1, x2, y2)
	d.dc.Stroke()
}

func (d *pngDevice) text(t scene.Text, x, baseline, size float64) {
	face, err := t.Font.Face(size)
	if err != nil {
		if d.err == nil {
			d.err = errors.Wrap(errors.ErrCodeRenderFailure, err, "load face %s", t.Font.Name())
		}
		return
	}
	defer face.Close()
	d.dc.SetFontFace(face)
	d.dc.SetColor(t.Color)
	d.dc.DrawString(t.Text, x, baseline)
}

func (d *pngDevice) image(img image.Image, x, y, w, h float64) {
	pw, ph := int(math.Round(w)), int(math.Round(h))
	if pw <= 0 || ph <= 0 {
		return
	}
	d.dc.DrawImage(imaging.Resize(img, pw, ph, imaging.Lanczos), int(math.Round(x)), int(math.Round(y)))
}

// qr scales by whole modules where possible so the code stays crisp.
func (d *pngDevice) qr(code barcode.Barcode, x, y, size float64) {
	px := int(math.Round(size))
	if px <= 0 {
		return
	}
	var img image.Image
	if scaled, err := barcode.Scale(code, px, px); err == nil {
		img = scaled
	} else {
		img = imaging.Resize(code, px, px, imaging.NearestNeighbor)
	}
	d.dc.DrawImage(img, int(math.Round(x)), int(math.Round(y)))
}
