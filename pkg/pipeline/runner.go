package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/certforge/pkg/assets"
	"github.com/matzehuels/certforge/pkg/cache"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/render/scene"
)

// Runner executes the pipeline. It is stateless apart from its
// collaborators; multiple goroutines may share one Runner.
type Runner struct {
	Resolver *assets.Resolver
	Cache    cache.Cache
	Logger   *log.Logger
}

// NewRunner creates a runner. A nil resolver uses default options; a nil
// cache disables artifact caching.
func NewRunner(resolver *assets.Resolver, c cache.Cache, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if resolver == nil {
		resolver = assets.NewResolver(assets.Options{Logger: logger})
	}
	if c == nil {
		c = cache.Nop()
	}
	return &Runner{
		Resolver: resolver,
		Cache:    c,
		Logger:   logger,
	}
}

// Execute runs the complete resolve → compose → render pipeline.
func (r *Runner) Execute(ctx context.Context, m layout.Model, d scene.Data, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}
	logger := r.logger(opts)
	result := &Result{}

	// Stage 1: Resolve
	resolveStart := time.Now()
	a, err := r.Resolver.Resolve(ctx, m)
	if err != nil {
		return nil, fmt.Errorf("resolve assets: %w", err)
	}
	result.Stats.ResolveTime = time.Since(resolveStart)
	result.Degraded = a.Degraded()
	logger.Debug("resolved assets",
		"images", len(m.ImageURLs()),
		"degraded", len(result.Degraded),
		"duration", result.Stats.ResolveTime)

	// Stage 2: Compose
	composeStart := time.Now()
	result.Scene = scene.Compose(m, a, d)
	result.Stats.ComposeTime = time.Since(composeStart)

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, hit, err := r.RenderWithCacheInfo(ctx, m, d, result.Scene, opts, result.Degraded)
	if err != nil {
		return nil, err
	}
	result.Artifacts = artifacts
	result.CacheInfo.RenderHit = hit
	result.Stats.RenderTime = time.Since(renderStart)

	logger.Info("rendered certificate",
		"number", d.Number,
		"formats", opts.Formats,
		"cached", hit,
		"duration", result.Stats.RenderTime)
	return result, nil
}

// RenderWithCacheInfo renders s and reports whether every artifact came
// from the cache. The cache is only consulted when opts.Cached is set; the
// key covers the layout, the data and the raster size. Artifacts rendered
// while assets were degraded are never stored.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, m layout.Model, d scene.Data, s *scene.Scene, opts Options, degraded []error) (map[string][]byte, bool, error) {
	if !opts.Cached {
		artifacts, err := Render(ctx, s, opts)
		return artifacts, false, err
	}

	keys := make(map[string]string, len(opts.Formats))
	artifacts := make(map[string][]byte, len(opts.Formats))
	allCached := true
	for _, format := range opts.Formats {
		key, err := artifactKey(m, d, format, opts)
		if err != nil {
			return nil, false, err
		}
		keys[format] = key
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			artifacts[format] = data
		} else {
			allCached = false
		}
	}
	if allCached {
		return artifacts, true, nil
	}

	rendered, err := Render(ctx, s, opts)
	if err != nil {
		return nil, false, err
	}
	if len(degraded) > 0 {
		r.logger(opts).Debug("not caching degraded render", "degraded", len(degraded))
		return rendered, false, nil
	}
	for format, data := range rendered {
		if err := r.Cache.Set(ctx, keys[format], data, TTLArtifact); err != nil {
			r.logger(opts).Warn("cache artifact", "format", format, "err", err)
		}
	}
	return rendered, false, nil
}

// artifactKey hashes everything an artifact depends on.
func artifactKey(m layout.Model, d scene.Data, format string, opts Options) (string, error) {
	data, err := json.Marshal(map[string]any{
		"layout": m.Serialize(),
		"data":   d,
		"format": format,
		"width":  opts.Width,
		"scale":  opts.Scale,
	})
	if err != nil {
		return "", fmt.Errorf("serialize cache key: %w", err)
	}
	return "artifact:" + cache.Hash(data), nil
}

// Close releases the runner's cache.
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) logger(opts Options) *log.Logger {
	if opts.Logger != nil {
		return opts.Logger
	}
	return r.Logger
}
