package layout

// Model is a fully resolved certificate layout. Values are produced by
// [Resolve] and must be treated as read-only; slices are never shared with
// the raw configuration they were resolved from.
type Model struct {
	Canvas        Canvas
	Header        Header
	Title         Title
	PresentedTo   TextBlock
	Name          TextBlock
	Participation Paragraph
	Logos         Logos
	Signatures    []Signature
	CertificateID CertificateID
	QR            QR
}

// Point is a position in percentage space (0–100 on both axes).
type Point struct {
	X, Y float64
}

// Size is a width/height pair in canvas units.
type Size struct {
	W, H float64
}

// Font selects a typeface. An empty family, or one of the standard family
// names, selects an embedded face; any other family names a remote font.
type Font struct {
	Family string
	Bold   bool
	Italic bool
}

// BackgroundKind tags the active variant of a [Background].
type BackgroundKind int

const (
	BackgroundColor BackgroundKind = iota
	BackgroundImage
)

// String returns the variant name.
func (k BackgroundKind) String() string {
	if k == BackgroundImage {
		return "image"
	}
	return "color"
}

// Background is either a solid fill or an image. Color is always set and
// doubles as the fill behind an image that fails to load.
type Background struct {
	Kind     BackgroundKind
	Color    Color
	ImageURL string
}

// Canvas describes the page.
type Canvas struct {
	Width, Height float64
	Background    Background
	BorderColor   Color
	BorderWidth   float64
}

// TextBlock is a single line of text centered on Position.
type TextBlock struct {
	Text     string
	Font     Font
	FontSize float64
	Color    Color
	Position Point
}

// Title is the primary heading with its subtitle.
type Title struct {
	TextBlock
	Subtitle TextBlock
}

// Header holds three independently positioned lines.
type Header struct {
	Organization TextBlock
	SubUnit      TextBlock
	Location     TextBlock
}

// Lines returns the header lines in drawing order.
func (h Header) Lines() []TextBlock {
	return []TextBlock{h.Organization, h.SubUnit, h.Location}
}

// Paragraph is a multi-line text block. Text may contain placeholders and
// explicit line breaks; LineHeight is a multiplier of FontSize.
type Paragraph struct {
	TextBlock
	LineHeight float64
}

// Logo is an image anchored by its top-left corner at Position.
type Logo struct {
	URL      string
	Size     Size
	Position Point
}

// Sponsors is a vertical stack of logos starting at Position. Spacing is
// the vertical gap between logos in percent of the canvas height.
type Sponsors struct {
	Items    []Logo
	Position Point
	Spacing  float64
}

// Logos groups the primary logos and the sponsor stack.
type Logos struct {
	Items    []Logo
	Sponsors Sponsors
}

// SignatureImage is an optional scanned signature. URL is empty when the
// signature has no image.
type SignatureImage struct {
	URL  string
	Size Size
}

// Signature is a signature line with name and title beneath it. Position
// is the center of the signature line.
type Signature struct {
	Name          string
	Title         string
	Image         SignatureImage
	Position      Point
	FontSize      float64
	TitleFontSize float64
	Color         Color
	LineWidth     float64
	LineColor     Color
}

// CertificateID describes the certificate number text. Prefix is the
// numbering prefix; Label is printed before the number.
type CertificateID struct {
	Prefix   string
	Label    string
	Font     Font
	FontSize float64
	Color    Color
	Position Point
}

// QR describes the verification code placed to the right of the
// certificate number text. Its position is derived, never configured.
type QR struct {
	Enabled bool
	Size    float64
	Gap     float64
}

// ImageURLs returns every distinct image URL referenced by the model, in
// drawing order.
func (m Model) ImageURLs() []string {
	var urls []string
	seen := make(map[string]bool)
	add := func(u string) {
		if u != "" && !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	if m.Canvas.Background.Kind == BackgroundImage {
		add(m.Canvas.Background.ImageURL)
	}
	for _, l := range m.Logos.Items {
		add(l.URL)
	}
	for _, l := range m.Logos.Sponsors.Items {
		add(l.URL)
	}
	for _, s := range m.Signatures {
		add(s.Image.URL)
	}
	return urls
}

// Fonts returns every distinct font referenced by a text block.
func (m Model) Fonts() []Font {
	var fonts []Font
	seen := make(map[Font]bool)
	add := func(f Font) {
		if !seen[f] {
			seen[f] = true
			fonts = append(fonts, f)
		}
	}
	for _, h := range m.Header.Lines() {
		add(h.Font)
	}
	add(m.Title.Font)
	add(m.Title.Subtitle.Font)
	add(m.PresentedTo.Font)
	add(m.Name.Font)
	add(m.Participation.Font)
	add(m.CertificateID.Font)
	add(SignatureFont)
	add(SignatureTitleFont)
	return fonts
}

// Fonts used by signature blocks, which are not configurable per block.
var (
	SignatureFont      = Font{Bold: true}
	SignatureTitleFont = Font{}
)
