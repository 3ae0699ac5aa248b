package scene

import (
	"image"
	"strings"

	"github.com/matzehuels/certforge/pkg/fonts"
	"github.com/matzehuels/certforge/pkg/layout"
)

// Assets supplies resolved images and fonts. [assets.Assets] implements
// it; Image returns nil for anything that could not be loaded.
//
// [assets.Assets]: github.com/matzehuels/certforge/pkg/assets.Assets
type Assets interface {
	Image(url string) image.Image
	Font(f layout.Font) *fonts.Handle
}

// Data is the per-certificate content drawn into the layout.
type Data struct {
	ParticipantName string
	Number          string
	Vars            layout.Vars
}

// Signature block geometry, in multiples of the block's font sizes.
const (
	signatureNameOffset  = 1.4
	signatureTitleOffset = 1.3
	signatureStroke      = 1.0
)

// qrCenterRatio places the QR code's vertical center this fraction of
// the font size above the certificate number's baseline, which is roughly
// the middle of its lowercase letters and digits.
const qrCenterRatio = 0.35

// Compose lays out m with d. Elements whose image is missing from a are
// skipped; text always renders with some face.
func Compose(m layout.Model, a Assets, d Data) *Scene {
	c := composer{
		m: m,
		a: a,
		s: &Scene{Width: m.Canvas.Width, Height: m.Canvas.Height},
	}
	c.background()
	c.logos()
	for _, h := range m.Header.Lines() {
		c.text(h, h.Text)
	}
	c.text(m.Title.TextBlock, m.Title.Text)
	c.text(m.Title.Subtitle, m.Title.Subtitle.Text)
	c.text(m.PresentedTo, d.Vars.Expand(m.PresentedTo.Text))
	c.text(m.Name, d.ParticipantName)
	c.paragraph(m.Participation, d.Vars.Lines(m.Participation.Text))
	for _, sig := range m.Signatures {
		c.signature(sig)
	}
	c.certificateID(d.Number)
	return c.s
}

type composer struct {
	m layout.Model
	a Assets
	s *Scene
}

func (c *composer) add(cmd Command) {
	c.s.Commands = append(c.s.Commands, cmd)
}

// x and y convert percentages into canvas units.
func (c *composer) x(pct float64) float64 { return pct / 100 * c.m.Canvas.Width }
func (c *composer) y(pct float64) float64 { return pct / 100 * c.m.Canvas.Height }

func (c *composer) background() {
	cv := c.m.Canvas
	fill := cv.Background.Color
	c.add(Rect{W: cv.Width, H: cv.Height, Fill: &fill})

	if cv.Background.Kind == layout.BackgroundImage {
		if img := c.a.Image(cv.Background.ImageURL); img != nil {
			c.add(Image{Image: img, W: cv.Width, H: cv.Height})
		}
	}

	if cv.BorderWidth > 0 {
		border := cv.BorderColor
		bw := cv.BorderWidth
		c.add(Rect{
			X: bw / 2, Y: bw / 2,
			W: cv.Width - bw, H: cv.Height - bw,
			Stroke:      &border,
			StrokeWidth: bw,
		})
	}
}

func (c *composer) image(url string, x, y float64, size layout.Size) {
	if url == "" {
		return
	}
	img := c.a.Image(url)
	if img == nil {
		return
	}
	c.add(Image{Image: img, X: x, Y: y, W: size.W, H: size.H})
}

func (c *composer) logos() {
	for _, l := range c.m.Logos.Items {
		c.image(l.URL, c.x(l.Position.X), c.y(l.Position.Y), l.Size)
	}

	// Sponsors stack downward; a missing image still takes its slot so the
	// remaining logos keep their places.
	sp := c.m.Logos.Sponsors
	x, y := c.x(sp.Position.X), c.y(sp.Position.Y)
	gap := c.y(sp.Spacing)
	for _, l := range sp.Items {
		c.image(l.URL, x, y, l.Size)
		y += l.Size.H + gap
	}
}

// centered adds text centered horizontally on cx with its baseline at
// baseline. Empty text is skipped.
func (c *composer) centered(s string, h *fonts.Handle, size float64, col layout.Color, cx, baseline float64) (Text, bool) {
	if strings.TrimSpace(s) == "" || size <= 0 {
		return Text{}, false
	}
	w := h.Measure(s, size)
	t := Text{
		Text:     s,
		Font:     h,
		Size:     size,
		Color:    col,
		X:        cx - w/2,
		Baseline: baseline,
		Width:    w,
	}
	c.add(t)
	return t, true
}

func (c *composer) text(b layout.TextBlock, s string) {
	c.centered(s, c.a.Font(b.Font), b.FontSize, b.Color, c.x(b.Position.X), c.y(b.Position.Y))
}

// paragraph centers the block of lines vertically on the anchor.
func (c *composer) paragraph(p layout.Paragraph, lines []string) {
	h := c.a.Font(p.Font)
	lh := p.LineHeight * p.FontSize
	cx := c.x(p.Position.X)
	top := c.y(p.Position.Y) - float64(len(lines)-1)*lh/2
	for i, line := range lines {
		c.centered(line, h, p.FontSize, p.Color, cx, top+float64(i)*lh)
	}
}

// signature draws an optional image resting on the signature line, the
// line itself, and the name and title beneath it.
func (c *composer) signature(sig layout.Signature) {
	cx, ly := c.x(sig.Position.X), c.y(sig.Position.Y)

	if sig.Image.URL != "" {
		sz := sig.Image.Size
		c.image(sig.Image.URL, cx-sz.W/2, ly-sz.H, sz)
	}

	if sig.LineWidth > 0 {
		c.add(Line{
			X1: cx - sig.LineWidth/2, Y1: ly,
			X2: cx + sig.LineWidth/2, Y2: ly,
			Width: signatureStroke,
			Color: sig.LineColor,
		})
	}

	nameBase := ly + sig.FontSize*signatureNameOffset
	c.centered(sig.Name, c.a.Font(layout.SignatureFont), sig.FontSize, sig.Color, cx, nameBase)
	titleBase := nameBase + sig.TitleFontSize*signatureTitleOffset
	c.centered(sig.Title, c.a.Font(layout.SignatureTitleFont), sig.TitleFontSize, sig.Color, cx, titleBase)
}

// certificateID draws the label and number, then the QR code to the right
// of the measured text.
func (c *composer) certificateID(number string) {
	id := c.m.CertificateID
	t, ok := c.centered(id.Label+number, c.a.Font(id.Font), id.FontSize, id.Color,
		c.x(id.Position.X), c.y(id.Position.Y))

	qr := c.m.QR
	if !qr.Enabled || number == "" || qr.Size <= 0 {
		return
	}
	if !ok {
		// No visible text; hang the code off the anchor itself.
		t = Text{X: c.x(id.Position.X), Baseline: c.y(id.Position.Y)}
	}
	c.add(QR{
		Payload: number,
		X:       t.X + t.Width + qr.Gap,
		Y:       t.Baseline - id.FontSize*qrCenterRatio - qr.Size/2,
		Size:    qr.Size,
	})
}
