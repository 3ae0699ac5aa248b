// Package scene turns a resolved layout into a flat list of drawing
// commands.
//
// A [Scene] is composed once per certificate and handed to every output
// format. Coordinates are in canvas units with the origin at the top-left
// corner and y growing downward; text is positioned by its left edge and
// baseline after centering has been applied. Interpreters only map these
// coordinates into their own device space, so two formats drawn from the
// same scene place every element at the same relative position.
package scene

import (
	"image"

	"github.com/matzehuels/certforge/pkg/fonts"
	"github.com/matzehuels/certforge/pkg/layout"
)

// Command is one drawing operation. The concrete types are [Rect],
// [Line], [Text], [Image] and [QR].
type Command interface {
	command()
}

// Rect is an axis-aligned rectangle. Fill and Stroke are optional; the
// stroke is centered on the rectangle's edge.
type Rect struct {
	X, Y, W, H  float64
	Fill        *layout.Color
	Stroke      *layout.Color
	StrokeWidth float64
}

// Line is a straight stroke.
type Line struct {
	X1, Y1, X2, Y2 float64
	Width          float64
	Color          layout.Color
}

// Text is a single line of text. X is the left edge and Baseline the
// baseline; Width is the advance measured with Font at Size.
type Text struct {
	Text     string
	Font     *fonts.Handle
	Size     float64
	Color    layout.Color
	X        float64
	Baseline float64
	Width    float64
}

// Center returns the horizontal center of the text.
func (t Text) Center() float64 { return t.X + t.Width/2 }

// Image is a bitmap anchored at its top-left corner and stretched to W×H.
type Image struct {
	Image image.Image
	X, Y  float64
	W, H  float64
}

// QR is a square verification code encoding Payload, anchored at its
// top-left corner.
type QR struct {
	Payload string
	X, Y    float64
	Size    float64
}

func (Rect) command()  {}
func (Line) command()  {}
func (Text) command()  {}
func (Image) command() {}
func (QR) command()    {}

// Scene is a composed certificate.
type Scene struct {
	Width, Height float64
	Commands      []Command
}

// Texts returns the text commands in drawing order.
func (s *Scene) Texts() []Text {
	var out []Text
	for _, c := range s.Commands {
		if t, ok := c.(Text); ok {
			out = append(out, t)
		}
	}
	return out
}

// FindText returns the first text command whose content is text.
func (s *Scene) FindText(text string) (Text, bool) {
	for _, t := range s.Texts() {
		if t.Text == text {
			return t, true
		}
	}
	return Text{}, false
}

// QRCode returns the QR command, if the scene has one.
func (s *Scene) QRCode() (QR, bool) {
	for _, c := range s.Commands {
		if q, ok := c.(QR); ok {
			return q, true
		}
	}
	return QR{}, false
}
