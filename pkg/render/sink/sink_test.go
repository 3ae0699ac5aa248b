package sink

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"regexp"
	"strings"
	"testing"

	"github.com/boombuler/barcode"
	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"seehuhn.de/go/pdf"
	"seehuhn.de/go/pdf/document"

	"github.com/matzehuels/certforge/pkg/assets"
	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/fonts"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/render/scene"
)

// imageAssets serves a small opaque image for every URL except missing.
type imageAssets struct {
	missing map[string]bool
}

func (a imageAssets) Image(url string) image.Image {
	if a.missing[url] {
		return nil
	}
	img := image.NewNRGBA(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 0xc0
	}
	return img
}

func (imageAssets) Font(f layout.Font) *fonts.Handle { return assets.Embedded().Font(f) }

func richModel() layout.Model {
	return layout.Resolve(map[string]any{
		"canvas": map[string]any{"backgroundImage": "bg.png", "borderWidth": 6},
		"header": map[string]any{
			"organization": map[string]any{"text": "Gopher Society"},
			"location":     map[string]any{"text": "Berlin, Germany"},
		},
		"logos": map[string]any{
			"items": []any{map[string]any{"url": "logo.png"}},
			"sponsors": map[string]any{
				"items": []any{
					map[string]any{"url": "s1.png"},
					map[string]any{"url": "s2.png"},
				},
			},
		},
		"participation": map[string]any{"text": "For attending {EVENT_NAME}\nheld on {EVENT_DATE}\nat {VENUE}."},
		"signatures": []any{
			map[string]any{"name": "Grace Hopper", "title": "Chair", "image": map[string]any{"url": "sig.png"}},
			map[string]any{"name": "Ken Thompson", "title": "Speaker"},
		},
	})
}

func testData() scene.Data {
	return scene.Data{
		ParticipantName: "Ada Lovelace",
		Number:          "CERT-000042",
		Vars:            layout.Vars{EventName: "GopherCon", EventDate: "June 3, 2025", Venue: "Berlin"},
	}
}

// op is a recorded device call with every coordinate normalized back to
// a fraction of the page, measured from the top-left corner.
type op struct {
	kind string
	vals []float64
}

// recorder is a device that normalizes what it receives. flipped marks a
// bottom-up device space.
type recorder struct {
	w, h    float64
	flipped bool
	ops     []op
}

func (r *recorder) x(v float64) float64 { return v / r.w }

func (r *recorder) y(v float64) float64 {
	if r.flipped {
		return (r.h - v) / r.h
	}
	return v / r.h
}

// top converts a device box anchor into the fraction of its top edge.
func (r *recorder) top(y, h float64) float64 {
	if r.flipped {
		return (r.h - y - h) / r.h
	}
	return y / r.h
}

func (r *recorder) add(kind string, vals ...float64) {
	r.ops = append(r.ops, op{kind: kind, vals: vals})
}

func (r *recorder) fillRect(x, y, w, h float64, _ layout.Color) {
	r.add("fill", r.x(x), r.top(y, h), r.x(w), h/r.h)
}

func (r *recorder) strokeRect(x, y, w, h, width float64, _ layout.Color) {
	r.add("stroke", r.x(x), r.top(y, h), r.x(w), h/r.h, r.x(width))
}

func (r *recorder) line(x1, y1, x2, y2, width float64, _ layout.Color) {
	r.add("line", r.x(x1), r.y(y1), r.x(x2), r.y(y2), r.x(width))
}

func (r *recorder) text(t scene.Text, x, baseline, size float64) {
	center := x + t.Font.Measure(t.Text, size)/2
	r.add("text:"+t.Text, r.x(center), r.y(baseline), r.x(size))
}

func (r *recorder) image(_ image.Image, x, y, w, h float64) {
	r.add("image", r.x(x), r.top(y, h), r.x(w), h/r.h)
}

func (r *recorder) qr(_ barcode.Barcode, x, y, size float64) {
	r.add("qr", r.x(x), r.top(y, size), r.x(size))
}

func record(t *testing.T, s *scene.Scene, sp space, w, h float64, flipped bool) []op {
	t.Helper()
	rec := &recorder{w: w, h: h, flipped: flipped}
	if err := play(s, sp, rec); err != nil {
		t.Fatalf("play: %v", err)
	}
	return rec.ops
}

func TestFormatsAgreeOnRelativePlacement(t *testing.T) {
	canvases := []struct{ w, h float64 }{
		{842, 595},
		{595, 842},
		{2000, 1200},
		{1000, 1000},
	}
	scales := []float64{0.5, 1, 2.5}

	for _, cv := range canvases {
		m := richModel()
		m.Canvas.Width, m.Canvas.Height = cv.w, cv.h
		s := scene.Compose(m, imageAssets{}, testData())

		vector := record(t, s, vectorSpace{height: s.Height}, s.Width, s.Height, true)
		for _, scale := range scales {
			t.Run(fmt.Sprintf("%vx%v@%v", cv.w, cv.h, scale), func(t *testing.T) {
				raster := record(t, s, rasterSpace{scale: scale}, s.Width*scale, s.Height*scale, false)
				if len(raster) != len(vector) {
					t.Fatalf("raster drew %d ops, vector %d", len(raster), len(vector))
				}
				for i := range vector {
					v, r := vector[i], raster[i]
					if v.kind != r.kind {
						t.Fatalf("op %d: %s vs %s", i, v.kind, r.kind)
					}
					for j := range v.vals {
						// Text centers come from font metrics at two sizes;
						// everything else is exact arithmetic.
						tol := 1e-9
						if j == 0 && len(v.kind) > 5 && v.kind[:5] == "text:" {
							tol = 1e-3
						}
						if math.Abs(v.vals[j]-r.vals[j]) > tol {
							t.Errorf("%s value %d: vector %v, raster %v", v.kind, j, v.vals[j], r.vals[j])
						}
					}
				}
			})
		}
	}
}

func TestNameCenteredInBothFormats(t *testing.T) {
	m := layout.Resolve(map[string]any{
		"canvas": map[string]any{"width": 2000, "height": 1200},
		"name": map[string]any{
			"fontSize": 48,
			"position": map[string]any{"x": 50, "y": 50},
		},
	})
	s := scene.Compose(m, assets.Embedded(), testData())

	find := func(sp space) (center, baseline float64) {
		var dev textProbe
		dev.want = "Ada Lovelace"
		if err := play(s, sp, &dev); err != nil {
			t.Fatal(err)
		}
		if !dev.found {
			t.Fatal("name not drawn")
		}
		return dev.x + dev.width/2, dev.baseline
	}

	cx, y := find(vectorSpace{height: s.Height})
	if math.Abs(cx-1000) > 1e-9 || y != 600 {
		t.Errorf("vector name at (%v, %v), want (1000, 600)", cx, y)
	}
	cx, y = find(rasterSpace{scale: 1})
	if math.Abs(cx-1000) > 1e-9 || y != 600 {
		t.Errorf("raster name at (%v, %v), want (1000, 600)", cx, y)
	}
	cx, _ = find(rasterSpace{scale: 0.5})
	if math.Abs(cx-500) > 1e-6 {
		t.Errorf("half-scale raster name center = %v, want 500", cx)
	}
}

// textProbe captures one text draw.
type textProbe struct {
	recorder
	want               string
	found              bool
	x, baseline, width float64
}

func (p *textProbe) text(t scene.Text, x, baseline, size float64) {
	if t.Text == p.want && !p.found {
		p.found = true
		p.x, p.baseline = x, baseline
		p.width = t.Font.Measure(t.Text, size)
	}
}

func TestRenderPDF(t *testing.T) {
	s := scene.Compose(richModel(), imageAssets{}, testData())
	out, err := RenderPDF(s)
	if err != nil {
		t.Fatalf("RenderPDF: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Errorf("output does not start with a PDF header: %q", out[:min(len(out), 16)])
	}
	if !bytes.Contains(out[max(0, len(out)-64):], []byte("%%EOF")) {
		t.Error("output has no end-of-file marker")
	}
}

func TestRenderPNG(t *testing.T) {
	m := layout.Default()
	s := scene.Compose(m, assets.Embedded(), testData())

	out, err := RenderPNG(s, WithWidth(1684))
	if err != nil {
		t.Fatalf("RenderPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 1684 || b.Dy() != 1190 {
		t.Fatalf("size = %v, want 1684x1190", b.Size())
	}

	// Border at the edge, background inside it.
	if got := rgb(img.At(3, 600)); got != m.Canvas.BorderColor {
		t.Errorf("border pixel = %v, want %v", got.Hex(), m.Canvas.BorderColor.Hex())
	}
	if got := rgb(img.At(60, 600)); got != m.Canvas.Background.Color {
		t.Errorf("background pixel = %v, want %v", got.Hex(), m.Canvas.Background.Color.Hex())
	}
}

func rgb(c interface{ RGBA() (r, g, b, a uint32) }) layout.Color {
	r, g, b, _ := c.RGBA()
	return layout.Color{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8)}
}

func TestQRDecodesToNumber(t *testing.T) {
	s := scene.Compose(layout.Default(), assets.Embedded(), testData())
	q, ok := s.QRCode()
	if !ok {
		t.Fatal("scene has no qr code")
	}

	const scale = 4
	img, err := Rasterize(s, WithScale(scale))
	if err != nil {
		t.Fatal(err)
	}

	margin := 6.0
	crop := image.Rect(
		int((q.X-margin)*scale), int((q.Y-margin)*scale),
		int((q.X+q.Size+margin)*scale), int((q.Y+q.Size+margin)*scale),
	)
	bmp, err := gozxing.NewBinaryBitmapFromImage(imaging.Crop(img, crop))
	if err != nil {
		t.Fatal(err)
	}
	res, err := qrcode.NewQRCodeReader().Decode(bmp, nil)
	if err != nil {
		t.Fatalf("decode qr: %v", err)
	}
	if got := res.GetText(); got != testData().Number {
		t.Errorf("qr payload = %q, want %q", got, testData().Number)
	}
}

func TestRenderWithMissingImages(t *testing.T) {
	a := imageAssets{missing: map[string]bool{"bg.png": true, "logo.png": true, "sig.png": true}}
	s := scene.Compose(richModel(), a, testData())
	if _, err := RenderPDF(s); err != nil {
		t.Errorf("RenderPDF: %v", err)
	}
	if _, err := RenderPNG(s); err != nil {
		t.Errorf("RenderPNG: %v", err)
	}
}

func TestRasterSizeOutOfRange(t *testing.T) {
	s := scene.Compose(layout.Default(), assets.Embedded(), testData())
	_, err := RenderPNG(s, WithScale(100))
	if !errors.Is(err, errors.ErrCodeRenderFailure) {
		t.Errorf("err = %v, want RENDER_FAILURE", err)
	}
}

func TestScaleOptions(t *testing.T) {
	tests := []struct {
		opts  pngRenderer
		width float64
		want  float64
	}{
		{pngRenderer{}, 842, 1},
		{pngRenderer{scale: 2}, 842, 2},
		{pngRenderer{width: 421}, 842, 0.5},
		{pngRenderer{width: 1000, scale: 3}, 2000, 0.5},
	}
	for _, tt := range tests {
		if got := tt.opts.factor(tt.width); got != tt.want {
			t.Errorf("%+v.factor(%v) = %v, want %v", tt.opts, tt.width, got, tt.want)
		}
	}
}

func TestImagePixels(t *testing.T) {
	tests := []struct {
		name       string
		src        image.Rectangle
		w, h       float64
		cols, rows int
	}{
		{"small source kept", image.Rect(0, 0, 50, 20), 120, 40, 50, 20},
		{"large source capped", image.Rect(0, 0, 4000, 4000), 72, 36, 300, 150},
		{"partial cap", image.Rect(0, 0, 1000, 100), 72, 72, 300, 100},
		{"empty", image.Rect(0, 0, 0, 0), 70, 70, 0, 0},
		{"zero box", image.Rect(0, 0, 10, 10), 0, 70, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, rows := imagePixels(tt.src, tt.w, tt.h)
			if cols != tt.cols || rows != tt.rows {
				t.Errorf("imagePixels = %dx%d, want %dx%d", cols, rows, tt.cols, tt.rows)
			}
		})
	}
}

func TestPDFImageEmbedded(t *testing.T) {
	tests := []struct {
		name      string
		src       image.Rectangle
		alpha     uint8
		wantWidth int
		wantSMask bool
	}{
		{"opaque logo", image.Rect(0, 0, 240, 120), 0xff, 240, false},
		{"translucent signature", image.Rect(0, 0, 160, 60), 0x80, 160, true},
		{"oversized background", image.Rect(0, 0, 2400, 1800), 0xff, 417, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			img := image.NewNRGBA(tt.src)
			for i := 0; i < len(img.Pix); i += 4 {
				img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = 0x20, 0x60, 0xa0, tt.alpha
			}

			var buf bytes.Buffer
			page, err := document.WriteSinglePage(&buf, &pdf.Rectangle{URx: 200, URy: 150}, pdf.V1_7, nil)
			if err != nil {
				t.Fatal(err)
			}
			dev := &pdfDevice{page: page}
			dev.image(img, 0, 0, 100, 75)
			if err := page.Close(); err != nil {
				t.Fatalf("close: %v", err)
			}

			out := buf.String()
			if !regexp.MustCompile(`/Subtype\s*/Image`).MatchString(out) {
				t.Fatal("no image XObject in output")
			}
			width := regexp.MustCompile(fmt.Sprintf(`/Width\s*%d[^0-9]`, tt.wantWidth))
			if !width.MatchString(out) {
				t.Errorf("image not embedded %d pixels wide", tt.wantWidth)
			}
			if got := strings.Contains(out, "/SMask"); got != tt.wantSMask {
				t.Errorf("soft mask present = %v, want %v", got, tt.wantSMask)
			}
		})
	}
}

func TestQuadToCubic(t *testing.T) {
	p0, q, p1 := fonts.Point{X: 0, Y: 0}, fonts.Point{X: 3, Y: 6}, fonts.Point{X: 6, Y: 0}
	c1, c2, end := quadToCubic(p0, q, p1)
	tests := []struct {
		name      string
		got, want fonts.Point
	}{
		{"first control", c1, fonts.Point{X: 2, Y: 4}},
		{"second control", c2, fonts.Point{X: 4, Y: 4}},
		{"end", end, p1},
	}
	for _, tt := range tests {
		if math.Abs(tt.got.X-tt.want.X) > 1e-9 || math.Abs(tt.got.Y-tt.want.Y) > 1e-9 {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestDarkRuns(t *testing.T) {
	code, err := encodeQR("CERT-000001")
	if err != nil {
		t.Fatal(err)
	}
	b := code.Bounds()
	want := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if isDark(code.At(x, y)) {
				want++
			}
		}
	}
	got := 0
	darkRuns(code, func(row, col, n int) {
		for i := 0; i < n; i++ {
			if !isDark(code.At(b.Min.X+col+i, b.Min.Y+row)) {
				t.Fatalf("run at row %d col %d covers a light module", row, col+i)
			}
		}
		got += n
	})
	if got != want || want == 0 {
		t.Errorf("runs cover %d modules, want %d", got, want)
	}
}
