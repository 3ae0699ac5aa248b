// Package pipeline runs the resolve → compose → render pipeline that turns
// a certificate layout into output documents.
//
// The CLI, the HTTP API and the orchestrator all render through a
// [Runner] so that previews and issued certificates are produced the same
// way.
//
// # Stages
//
//  1. Resolve: fetch every image and remote font of the layout once
//  2. Compose: turn layout, assets and data into one backend-neutral scene
//  3. Render: interpret the scene as PDF, PNG or both
//
// # Usage
//
//	runner := pipeline.NewRunner(resolver, nil, logger)
//	res, err := runner.Execute(ctx, model, scene.Data{
//	    ParticipantName: "Ada Lovelace",
//	    Number:          "CERT-000001",
//	}, pipeline.Options{Formats: []string{"pdf", "png"}})
//	if err != nil {
//	    return err
//	}
//	pdf := res.Artifacts["pdf"]
package pipeline

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/certforge/pkg/render/scene"
	"github.com/matzehuels/certforge/pkg/render/sink"
)

// Format constants for output formats.
const (
	FormatPDF = "pdf"
	FormatPNG = "png"
)

// DefaultFormats are rendered when Options.Formats is empty.
var DefaultFormats = []string{FormatPDF, FormatPNG}

// ValidFormats is the set of supported output formats.
var ValidFormats = map[string]bool{
	FormatPDF: true,
	FormatPNG: true,
}

// TTLArtifact is how long a cached preview artifact lives.
const TTLArtifact = 24 * time.Hour

// Options configures one pipeline run. It supports JSON for API requests.
type Options struct {
	Formats []string `json:"formats,omitempty"`

	// Width is the PNG width in pixels. Zero renders one pixel per canvas
	// unit, or at Scale when set.
	Width int     `json:"width,omitempty"`
	Scale float64 `json:"scale,omitempty"`

	// Cached enables the runner's artifact cache. Issued certificates are
	// always rendered fresh; previews may be cached.
	Cached bool `json:"cached,omitempty"`

	Logger *log.Logger `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Scene is the composed scene every artifact was rendered from.
	Scene *scene.Scene

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Degraded lists the asset problems recovered from during resolution.
	Degraded []error

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	ResolveTime time.Duration
	ComposeTime time.Duration
	RenderTime  time.Duration
}

// CacheInfo tracks cache hits.
type CacheInfo struct {
	RenderHit bool // Whether all artifacts came from cache
}

// ValidateFormat checks that a format is valid.
func ValidateFormat(format string) error {
	if !ValidFormats[format] {
		return fmt.Errorf("invalid format: %q (must be one of: %s)", format, strings.Join(formatNames(), ", "))
	}
	return nil
}

// ValidateFormats checks that all formats are valid.
func ValidateFormats(formats []string) error {
	for _, f := range formats {
		if err := ValidateFormat(f); err != nil {
			return err
		}
	}
	return nil
}

func formatNames() []string {
	names := make([]string, 0, len(ValidFormats))
	for f := range ValidFormats {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

// ValidateAndSetDefaults checks the formats and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if len(o.Formats) == 0 {
		o.Formats = append([]string(nil), DefaultFormats...)
	}
	if err := ValidateFormats(o.Formats); err != nil {
		return err
	}
	if o.Width < 0 {
		return fmt.Errorf("width must not be negative: %d", o.Width)
	}
	if o.Scale < 0 {
		return fmt.Errorf("scale must not be negative: %g", o.Scale)
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
	return nil
}

func (o Options) pngOptions() []sink.PNGOption {
	var opts []sink.PNGOption
	if o.Width > 0 {
		opts = append(opts, sink.WithWidth(o.Width))
	}
	if o.Scale > 0 {
		opts = append(opts, sink.WithScale(o.Scale))
	}
	return opts
}
