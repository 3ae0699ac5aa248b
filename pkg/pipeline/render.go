package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/certforge/pkg/observability"
	"github.com/matzehuels/certforge/pkg/render/scene"
	"github.com/matzehuels/certforge/pkg/render/sink"
)

// Render interprets s in every requested format. Each format is rendered
// independently from the same scene.
func Render(ctx context.Context, s *scene.Scene, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))
	for _, format := range opts.Formats {
		start := time.Now()
		data, err := RenderFormat(s, format, opts)
		observability.Generation().OnRender(ctx, format, time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}

// RenderFormat interprets s in a single format.
func RenderFormat(s *scene.Scene, format string, opts Options) ([]byte, error) {
	switch format {
	case FormatPDF:
		return sink.RenderPDF(s)
	case FormatPNG:
		return sink.RenderPNG(s, opts.pngOptions()...)
	default:
		return nil, ValidateFormat(format)
	}
}
