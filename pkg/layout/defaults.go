package layout

// Page geometry defaults: A4 landscape in points.
const (
	DefaultCanvasWidth  = 842
	DefaultCanvasHeight = 595
)

// DefaultParticipationText is used when the layout does not supply its own
// participation paragraph.
const DefaultParticipationText = "For actively participating in {EVENT_NAME}\nheld on {EVENT_DATE} at {VENUE}."

// DefaultNameFamily is the decorative script used for participant names.
const DefaultNameFamily = "Great Vibes"

// Default returns the layout used when no configuration is supplied.
func Default() Model {
	return Resolve(nil)
}

var (
	defaultBackground  = MustColor("#ffffff")
	defaultBorder      = MustColor("#1f3a5f")
	defaultTitleColor  = MustColor("#1f3a5f")
	defaultTextColor   = MustColor("#333333")
	defaultMutedColor  = MustColor("#555555")
	defaultNameColor   = MustColor("#1a1a1a")
	defaultIDColor     = MustColor("#666666")
	defaultSigColor    = MustColor("#222222")
	defaultSigLine     = MustColor("#444444")
	defaultPresentedTo = MustColor("#444444")
)

var (
	defaultTitle = TextBlock{
		Text:     "CERTIFICATE",
		Font:     Font{Bold: true},
		FontSize: 36,
		Color:    defaultTitleColor,
		Position: Point{50, 24},
	}
	defaultSubtitle = TextBlock{
		Text:     "OF PARTICIPATION",
		FontSize: 16,
		Color:    defaultTitleColor,
		Position: Point{50, 30},
	}
	defaultOrganization = TextBlock{
		Font:     Font{Bold: true},
		FontSize: 14,
		Color:    defaultTextColor,
		Position: Point{50, 8},
	}
	defaultSubUnit = TextBlock{
		FontSize: 12,
		Color:    defaultMutedColor,
		Position: Point{50, 11.5},
	}
	defaultLocation = TextBlock{
		FontSize: 11,
		Color:    defaultMutedColor,
		Position: Point{50, 14.5},
	}
	defaultPresentedToBlock = TextBlock{
		Text:     "This certificate is proudly presented to",
		Font:     Font{Italic: true},
		FontSize: 14,
		Color:    defaultPresentedTo,
		Position: Point{50, 38},
	}
	defaultName = TextBlock{
		Font:     Font{Family: DefaultNameFamily},
		FontSize: 42,
		Color:    defaultNameColor,
		Position: Point{50, 50},
	}
	defaultParticipation = TextBlock{
		Text:     DefaultParticipationText,
		FontSize: 13,
		Color:    defaultTextColor,
		Position: Point{50, 62},
	}
	defaultCertificateID = CertificateID{
		Label:    "Certificate ID: ",
		FontSize: 9,
		Color:    defaultIDColor,
		Position: Point{50, 93},
	}
)

const (
	defaultLineHeight     = 1.5
	defaultBorderWidth    = 8
	defaultLogoSize       = 70
	defaultSponsorWidth   = 60
	defaultSponsorHeight  = 40
	defaultSponsorSpacing = 2
	defaultQRSize         = 56
	defaultQRGap          = 8

	defaultSigFontSize      = 12
	defaultSigTitleFontSize = 10
	defaultSigLineWidth     = 160
	defaultSigImageWidth    = 120
	defaultSigImageHeight   = 40
	defaultSigY             = 82
)

var (
	defaultLogoPosition    = Point{6, 6}
	defaultSponsorPosition = Point{88, 30}
)

// defaultSignatureX spreads n signatures evenly across the page.
func defaultSignatureX(i, n int) float64 {
	return float64(i+1) * 100 / float64(n+1)
}

// defaultLogoX places unpositioned logos side by side from the left edge.
func defaultLogoX(i int) float64 {
	return defaultLogoPosition.X + float64(i)*12
}
