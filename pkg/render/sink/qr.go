package sink

import (
	"image/color"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/qr"

	"github.com/matzehuels/certforge/pkg/errors"
)

// encodeQR encodes payload verbatim at medium error correction.
func encodeQR(payload string) (barcode.Barcode, error) {
	code, err := qr.Encode(payload, qr.M, qr.Auto)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRenderFailure, err, "encode qr code")
	}
	return code, nil
}

// darkRuns calls fn for every horizontal run of dark modules in code,
// with row and columns counted from the top-left module.
func darkRuns(code barcode.Barcode, fn func(row, col, n int)) {
	b := code.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		start := -1
		for x := b.Min.X; x <= b.Max.X; x++ {
			dark := x < b.Max.X && isDark(code.At(x, y))
			switch {
			case dark && start < 0:
				start = x
			case !dark && start >= 0:
				fn(y-b.Min.Y, start-b.Min.X, x-start)
				start = -1
			}
		}
	}
}

func isDark(c color.Color) bool {
	r, g, b, _ := c.RGBA()
	return r+g+b < 3*0x8000
}
