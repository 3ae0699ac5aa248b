package layout

import (
	"encoding/json"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Resolve builds a complete [Model] from a raw configuration. It never
// fails: malformed or missing values fall back to their defaults.
func Resolve(raw map[string]any) Model {
	r := obj(raw)

	m := Model{
		Canvas:        resolveCanvas(r.object("canvas")),
		Header:        resolveHeader(r.object("header")),
		Title:         resolveTitle(r.object("title")),
		PresentedTo:   resolveText(r.object("presentedTo"), defaultPresentedToBlock),
		Name:          resolveText(r.object("name"), defaultName),
		Participation: resolveParticipation(r.object("participation")),
		Logos:         resolveLogos(r.object("logos")),
		Signatures:    resolveSignatures(r.list("signatures")),
		CertificateID: resolveCertificateID(r.object("certificateId")),
		QR:            resolveQR(r.object("qr")),
	}
	// The name text always comes from the participant, never the layout.
	m.Name.Text = ""
	return m
}

// ResolveJSON decodes data as a JSON object and resolves it. Input that is
// not a JSON object yields the default model.
func ResolveJSON(data []byte) Model {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Default()
	}
	return Resolve(raw)
}

// ResolveYAML decodes data as a YAML mapping and resolves it. Input that is
// not a YAML mapping yields the default model.
func ResolveYAML(data []byte) Model {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Default()
	}
	return Resolve(raw)
}

func resolveCanvas(o obj) Canvas {
	c := Canvas{
		Width:       o.positive("width", DefaultCanvasWidth),
		Height:      o.positive("height", DefaultCanvasHeight),
		BorderColor: o.color("borderColor", defaultBorder),
		BorderWidth: o.nonNegative("borderWidth", defaultBorderWidth),
	}
	c.Background = Background{
		Kind:  BackgroundColor,
		Color: o.color("backgroundColor", defaultBackground),
	}
	if u := o.text("backgroundImage", ""); u != "" {
		c.Background.Kind = BackgroundImage
		c.Background.ImageURL = u
	}
	return c
}

func resolveHeader(o obj) Header {
	return Header{
		Organization: resolveText(o.object("organization"), defaultOrganization),
		SubUnit:      resolveText(o.object("subUnit"), defaultSubUnit),
		Location:     resolveText(o.object("location"), defaultLocation),
	}
}

func resolveTitle(o obj) Title {
	t := Title{TextBlock: resolveText(o, defaultTitle)}
	t.Subtitle = TextBlock{
		Text:     o.text("subtitle", defaultSubtitle.Text),
		Font:     o.font("subtitleFont", defaultSubtitle.Font),
		FontSize: o.positive("subtitleFontSize", defaultSubtitle.FontSize),
		Color:    o.color("subtitleColor", t.Color),
		Position: o.point("subtitlePosition", defaultSubtitle.Position),
	}
	return t
}

func resolveText(o obj, def TextBlock) TextBlock {
	return TextBlock{
		Text:     o.text("text", def.Text),
		Font:     o.font("font", def.Font),
		FontSize: o.positive("fontSize", def.FontSize),
		Color:    o.color("color", def.Color),
		Position: o.point("position", def.Position),
	}
}

func resolveParticipation(o obj) Paragraph {
	return Paragraph{
		TextBlock:  resolveText(o, defaultParticipation),
		LineHeight: o.positive("lineHeight", defaultLineHeight),
	}
}

func resolveLogos(o obj) Logos {
	s := o.object("sponsors")
	sponsors := Sponsors{
		Position: s.point("position", defaultSponsorPosition),
		Spacing:  s.nonNegative("spacing", defaultSponsorSpacing),
	}
	sponsors.Items = resolveLogoList(s.list("items"), Size{defaultSponsorWidth, defaultSponsorHeight},
		func(int) Point { return sponsors.Position })

	items := resolveLogoList(o.list("items"), Size{defaultLogoSize, defaultLogoSize},
		func(i int) Point { return Point{defaultLogoX(i), defaultLogoPosition.Y} })

	return Logos{Items: items, Sponsors: sponsors}
}

// resolveLogoList keeps only entries with a URL; there is nothing to draw
// for the others.
func resolveLogoList(raw []any, defSize Size, defPos func(int) Point) []Logo {
	logos := make([]Logo, 0, len(raw))
	for _, v := range raw {
		o := asObj(v)
		u := o.text("url", "")
		if u == "" {
			continue
		}
		logos = append(logos, Logo{
			URL:      u,
			Size:     o.size("size", defSize),
			Position: o.point("position", defPos(len(logos))),
		})
	}
	return logos
}

func resolveSignatures(raw []any) []Signature {
	n := 0
	for _, v := range raw {
		if _, ok := v.(map[string]any); ok {
			n++
		}
	}
	sigs := make([]Signature, 0, n)
	for _, v := range raw {
		o, ok := v.(map[string]any)
		if !ok {
			continue
		}
		so := obj(o)
		img := so.object("image")
		sigs = append(sigs, Signature{
			Name:  so.text("name", ""),
			Title: so.text("title", ""),
			Image: SignatureImage{
				URL: img.text("url", ""),
				Size: Size{
					W: img.positive("width", defaultSigImageWidth),
					H: img.positive("height", defaultSigImageHeight),
				},
			},
			Position:      so.point("position", Point{defaultSignatureX(len(sigs), n), defaultSigY}),
			FontSize:      so.positive("fontSize", defaultSigFontSize),
			TitleFontSize: so.positive("titleFontSize", defaultSigTitleFontSize),
			Color:         so.color("color", defaultSigColor),
			LineWidth:     so.nonNegative("lineWidth", defaultSigLineWidth),
			LineColor:     so.color("lineColor", defaultSigLine),
		})
	}
	return sigs
}

func resolveCertificateID(o obj) CertificateID {
	d := defaultCertificateID
	return CertificateID{
		Prefix:   o.text("prefix", d.Prefix),
		Label:    o.text("label", d.Label),
		Font:     o.font("font", d.Font),
		FontSize: o.positive("fontSize", d.FontSize),
		Color:    o.color("color", d.Color),
		Position: o.point("position", d.Position),
	}
}

func resolveQR(o obj) QR {
	return QR{
		Enabled: o.flag("enabled", true),
		Size:    o.positive("size", defaultQRSize),
		Gap:     o.nonNegative("gap", defaultQRGap),
	}
}

// obj is a lenient accessor over a decoded JSON or YAML object.
type obj map[string]any

func asObj(v any) obj {
	if m, ok := v.(map[string]any); ok {
		return obj(m)
	}
	return nil
}

func (o obj) object(key string) obj {
	return asObj(o[key])
}

func (o obj) list(key string) []any {
	l, _ := o[key].([]any)
	return l
}

func (o obj) text(key, def string) string {
	if s, ok := o[key].(string); ok {
		return s
	}
	return def
}

func (o obj) flag(key string, def bool) bool {
	if b, ok := o[key].(bool); ok {
		return b
	}
	return def
}

func (o obj) number(key string, def float64) float64 {
	if f, ok := toFloat(o[key]); ok {
		return f
	}
	return def
}

func (o obj) positive(key string, def float64) float64 {
	if f := o.number(key, def); f > 0 {
		return f
	}
	return def
}

func (o obj) nonNegative(key string, def float64) float64 {
	if f := o.number(key, def); f >= 0 {
		return f
	}
	return def
}

func (o obj) color(key string, def Color) Color {
	if s, ok := o[key].(string); ok {
		if c, ok := ParseColor(s); ok {
			return c
		}
	}
	return def
}

func (o obj) point(key string, def Point) Point {
	p := o.object(key)
	return Point{X: p.number("x", def.X), Y: p.number("y", def.Y)}
}

func (o obj) size(key string, def Size) Size {
	s := o.object(key)
	return Size{W: s.positive("w", def.W), H: s.positive("h", def.H)}
}

// font accepts either a bare family name or {family, bold, italic}.
func (o obj) font(key string, def Font) Font {
	switch v := o[key].(type) {
	case string:
		return Font{Family: v, Bold: def.Bold, Italic: def.Italic}
	case map[string]any:
		f := obj(v)
		return Font{
			Family: f.text("family", def.Family),
			Bold:   f.flag("bold", def.Bold),
			Italic: f.flag("italic", def.Italic),
		}
	}
	return def
}

// toFloat accepts the numeric shapes produced by encoding/json, yaml.v3
// and hand-built maps. Non-finite values are rejected.
func toFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case int32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := strconv.ParseFloat(string(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
