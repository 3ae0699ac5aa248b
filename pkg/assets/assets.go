package assets

import (
	"context"
	"image"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/fonts"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/observability"
)

// Assets is the settled result of one resolution pass.
type Assets struct {
	images   map[string]image.Image
	fonts    map[layout.Font]*fonts.Handle
	fallback *fonts.Handle
	degraded []error
}

func newAssets() *Assets {
	return &Assets{
		images: make(map[string]image.Image),
		fonts:  make(map[layout.Font]*fonts.Handle),
	}
}

// Embedded returns an Assets with no images whose fonts all come from the
// embedded faces. Remote families use DefaultFontFallback.
func Embedded() *Assets {
	return newAssets()
}

// Image returns the decoded image for url, or nil when it could not be
// fetched or decoded. Callers skip elements whose image is nil.
func (a *Assets) Image(url string) image.Image {
	if a == nil {
		return nil
	}
	return a.images[url]
}

// Font returns a usable handle for f. Standard families map to the
// embedded face of the same style; remote families return the fetched face
// or its fallback.
func (a *Assets) Font(f layout.Font) *fonts.Handle {
	if a != nil {
		if h, ok := a.fonts[f]; ok && h != nil {
			return h
		}
	}
	if fonts.IsStandard(f.Family) {
		if h := fonts.Embedded(fonts.Style{Bold: f.Bold, Italic: f.Italic}); h != nil {
			return h
		}
	}
	if a != nil && a.fallback != nil {
		return a.fallback
	}
	return fallbackFont(DefaultFontFallback)
}

// Degraded returns the asset errors recovered during resolution. Each is
// an [errors.ErrCodeAssetUnavailable] error.
func (a *Assets) Degraded() []error {
	if a == nil {
		return nil
	}
	return a.degraded
}

func (a *Assets) degrade(ctx context.Context, logger *log.Logger, kind, ref string, cause error) {
	a.degraded = append(a.degraded, errors.Wrap(errors.ErrCodeAssetUnavailable, cause, "%s %s", kind, ref))
	observability.Assets().OnDegraded(ctx, kind)
	if kind == "font" {
		logger.Warn("font unavailable, using fallback face", "family", ref, "err", cause)
		return
	}
	logger.Warn("image unavailable, skipping element", "url", ref, "err", cause)
}
