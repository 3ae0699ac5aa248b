package layout

import (
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// Serialize returns the fully populated raw form of m. The result uses the
// same shapes encoding/json produces (float64, string, bool, []any and
// map[string]any), so it can be stored as JSON and resolved again.
func (m Model) Serialize() map[string]any {
	return map[string]any{
		"canvas":        serializeCanvas(m.Canvas),
		"header":        serializeHeader(m.Header),
		"title":         serializeTitle(m.Title),
		"presentedTo":   serializeText(m.PresentedTo),
		"name":          serializeName(m.Name),
		"participation": serializeParticipation(m.Participation),
		"logos":         serializeLogos(m.Logos),
		"signatures":    serializeSignatures(m.Signatures),
		"certificateId": serializeCertificateID(m.CertificateID),
		"qr": map[string]any{
			"enabled": m.QR.Enabled,
			"size":    m.QR.Size,
			"gap":     m.QR.Gap,
		},
	}
}

// MarshalJSON encodes the serialized form.
func (m Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Serialize())
}

// MarshalYAML implements yaml.Marshaler.
func (m Model) MarshalYAML() (any, error) {
	return m.Serialize(), nil
}

var _ yaml.Marshaler = Model{}

func serializeCanvas(c Canvas) map[string]any {
	bg := ""
	if c.Background.Kind == BackgroundImage {
		bg = c.Background.ImageURL
	}
	return map[string]any{
		"width":           c.Width,
		"height":          c.Height,
		"backgroundColor": c.Background.Color.Hex(),
		"backgroundImage": bg,
		"borderColor":     c.BorderColor.Hex(),
		"borderWidth":     c.BorderWidth,
	}
}

func serializeHeader(h Header) map[string]any {
	return map[string]any{
		"organization": serializeText(h.Organization),
		"subUnit":      serializeText(h.SubUnit),
		"location":     serializeText(h.Location),
	}
}

func serializeTitle(t Title) map[string]any {
	out := serializeText(t.TextBlock)
	out["subtitle"] = t.Subtitle.Text
	out["subtitleFont"] = serializeFont(t.Subtitle.Font)
	out["subtitleFontSize"] = t.Subtitle.FontSize
	out["subtitleColor"] = t.Subtitle.Color.Hex()
	out["subtitlePosition"] = serializePoint(t.Subtitle.Position)
	return out
}

func serializeText(b TextBlock) map[string]any {
	return map[string]any{
		"text":     b.Text,
		"font":     serializeFont(b.Font),
		"fontSize": b.FontSize,
		"color":    b.Color.Hex(),
		"position": serializePoint(b.Position),
	}
}

func serializeName(b TextBlock) map[string]any {
	out := serializeText(b)
	delete(out, "text")
	return out
}

func serializeParticipation(p Paragraph) map[string]any {
	out := serializeText(p.TextBlock)
	out["lineHeight"] = p.LineHeight
	return out
}

func serializeLogos(l Logos) map[string]any {
	return map[string]any{
		"items": serializeLogoList(l.Items),
		"sponsors": map[string]any{
			"items":    serializeLogoList(l.Sponsors.Items),
			"position": serializePoint(l.Sponsors.Position),
			"spacing":  l.Sponsors.Spacing,
		},
	}
}

func serializeLogoList(logos []Logo) []any {
	out := make([]any, 0, len(logos))
	for _, l := range logos {
		out = append(out, map[string]any{
			"url":      l.URL,
			"size":     map[string]any{"w": l.Size.W, "h": l.Size.H},
			"position": serializePoint(l.Position),
		})
	}
	return out
}

func serializeSignatures(sigs []Signature) []any {
	out := make([]any, 0, len(sigs))
	for _, s := range sigs {
		out = append(out, map[string]any{
			"name":  s.Name,
			"title": s.Title,
			"image": map[string]any{
				"url":    s.Image.URL,
				"width":  s.Image.Size.W,
				"height": s.Image.Size.H,
			},
			"position":      serializePoint(s.Position),
			"fontSize":      s.FontSize,
			"titleFontSize": s.TitleFontSize,
			"color":         s.Color.Hex(),
			"lineWidth":     s.LineWidth,
			"lineColor":     s.LineColor.Hex(),
		})
	}
	return out
}

func serializeCertificateID(c CertificateID) map[string]any {
	return map[string]any{
		"prefix":   c.Prefix,
		"label":    c.Label,
		"font":     serializeFont(c.Font),
		"fontSize": c.FontSize,
		"color":    c.Color.Hex(),
		"position": serializePoint(c.Position),
	}
}

func serializeFont(f Font) map[string]any {
	return map[string]any{"family": f.Family, "bold": f.Bold, "italic": f.Italic}
}

func serializePoint(p Point) map[string]any {
	return map[string]any{"x": p.X, "y": p.Y}
}
