package sink

import (
	"image"

	"github.com/boombuler/barcode"

	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/render/scene"
)

// space maps scene coordinates (canvas units, origin top-left) into a
// device's coordinate system.
type space interface {
	// point maps a single position.
	point(x, y float64) (float64, float64)
	// box maps a w×h box whose top-left corner is at (x, y) and returns
	// the device anchor the device draws boxes from, plus the device size.
	box(x, y, w, h float64) (dx, dy, dw, dh float64)
	// length maps a font size, stroke width or other distance.
	length(v float64) float64
}

// vectorSpace is a PDF page of the scene's size. Its origin is the
// bottom-left corner and boxes are anchored at their lower-left corner.
type vectorSpace struct {
	height float64
}

func (v vectorSpace) point(x, y float64) (float64, float64) {
	return x, v.height - y
}

func (v vectorSpace) box(x, y, w, h float64) (float64, float64, float64, float64) {
	return x, v.height - y - h, w, h
}

func (vectorSpace) length(d float64) float64 { return d }

// rasterSpace is a pixel canvas scaled uniformly from the scene. Its
// origin is the top-left corner.
type rasterSpace struct {
	scale float64
}

func (r rasterSpace) point(x, y float64) (float64, float64) {
	return x * r.scale, y * r.scale
}

func (r rasterSpace) box(x, y, w, h float64) (float64, float64, float64, float64) {
	return x * r.scale, y * r.scale, w * r.scale, h * r.scale
}

func (r rasterSpace) length(d float64) float64 { return d * r.scale }

// device receives commands already mapped into its space.
type device interface {
	fillRect(x, y, w, h float64, c layout.Color)
	strokeRect(x, y, w, h, width float64, c layout.Color)
	line(x1, y1, x2, y2, width float64, c layout.Color)
	// text draws t with its left edge at x on the baseline, at size.
	text(t scene.Text, x, baseline, size float64)
	image(img image.Image, x, y, w, h float64)
	qr(code barcode.Barcode, x, y, size float64)
}

// play replays s onto dev through sp.
func play(s *scene.Scene, sp space, dev device) error {
	for _, cmd := range s.Commands {
		switch c := cmd.(type) {
		case scene.Rect:
			x, y, w, h := sp.box(c.X, c.Y, c.W, c.H)
			if c.Fill != nil {
				dev.fillRect(x, y, w, h, *c.Fill)
			}
			if c.Stroke != nil && c.StrokeWidth > 0 {
				dev.strokeRect(x, y, w, h, sp.length(c.StrokeWidth), *c.Stroke)
			}
		case scene.Line:
			x1, y1 := sp.point(c.X1, c.Y1)
			x2, y2 := sp.point(c.X2, c.Y2)
			dev.line(x1, y1, x2, y2, sp.length(c.Width), c.Color)
		case scene.Text:
			x, baseline := sp.point(c.X, c.Baseline)
			dev.text(c, x, baseline, sp.length(c.Size))
		case scene.Image:
			x, y, w, h := sp.box(c.X, c.Y, c.W, c.H)
			dev.image(c.Image, x, y, w, h)
		case scene.QR:
			code, err := encodeQR(c.Payload)
			if err != nil {
				return err
			}
			x, y, size, _ := sp.box(c.X, c.Y, c.Size, c.Size)
			dev.qr(code, x, y, size)
		default:
			return errors.New(errors.ErrCodeRenderFailure, "unknown scene command %T", cmd)
		}
	}
	return nil
}
