// Package assets resolves the fonts and images a certificate layout
// references before anything is drawn.
//
// [Resolver.Resolve] starts every fetch of a generation pass at once and
// returns only after all of them have settled. The resulting [Assets] is
// the per-pass cache both renderers read from; it is owned by a single
// generation and never shared. Unreachable assets never fail a pass:
// missing images are skipped and missing fonts fall back to embedded faces.
package assets

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/matzehuels/certforge/pkg/cache"
	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/fonts"
	"github.com/matzehuels/certforge/pkg/httputil"
	"github.com/matzehuels/certforge/pkg/layout"
)

// Defaults for [Options].
const (
	DefaultTimeout     = 10 * time.Second
	DefaultConcurrency = 8
)

// Options configures a [Resolver]. The zero value is usable.
type Options struct {
	// Fetcher downloads http and https assets.
	Fetcher *httputil.Fetcher
	// Cache holds remote bodies between passes. Nil disables it.
	Cache    cache.Cache
	CacheTTL time.Duration
	// FontSources maps a font family (case-insensitive) to the URL of its
	// TrueType file. A family that is itself a URL needs no entry.
	FontSources map[string]string
	// Concurrency bounds simultaneous fetches within one pass.
	Concurrency int
	// FontFallback lists the embedded faces tried, in order, when a remote
	// family is unavailable. Nil means DefaultFontFallback.
	FontFallback []fonts.Style
	// AllowFile permits file:// assets. Only local tools should set it.
	AllowFile bool
	Logger    *log.Logger
}

// DefaultFontFallback stands in the embedded bold face for an unavailable
// decorative family.
var DefaultFontFallback = []fonts.Style{{Bold: true}}

// Resolver fetches layout assets. It is safe for concurrent use.
type Resolver struct {
	fetcher     *httputil.Fetcher
	cache       cache.Cache
	cacheTTL    time.Duration
	fontSources map[string]string
	concurrency int
	fallback    *fonts.Handle
	allowFile   bool
	logger      *log.Logger
	inflight    singleflight.Group
}

// NewResolver creates a Resolver.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		fetcher:     opts.Fetcher,
		cache:       opts.Cache,
		cacheTTL:    opts.CacheTTL,
		fontSources: make(map[string]string, len(opts.FontSources)),
		concurrency: opts.Concurrency,
		allowFile:   opts.AllowFile,
		logger:      opts.Logger,
	}
	chain := opts.FontFallback
	if len(chain) == 0 {
		chain = DefaultFontFallback
	}
	r.fallback = fallbackFont(chain)
	if r.fetcher == nil {
		r.fetcher = httputil.NewFetcher(DefaultTimeout)
	}
	if r.cache == nil {
		r.cache = cache.Nop()
	}
	if r.concurrency <= 0 {
		r.concurrency = DefaultConcurrency
	}
	if r.logger == nil {
		r.logger = log.New(io.Discard)
	}
	for family, u := range opts.FontSources {
		r.fontSources[normalizeFamily(family)] = u
	}
	return r
}

// Resolve fetches every image and remote font referenced by m. It blocks
// until all fetches have settled. The only error it returns is the
// context's, when ctx ends before the pass completes.
func (r *Resolver) Resolve(ctx context.Context, m layout.Model) (*Assets, error) {
	urls := m.ImageURLs()
	var remote []layout.Font
	for _, f := range m.Fonts() {
		if !fonts.IsStandard(f.Family) {
			remote = append(remote, f)
		}
	}

	images := make([]image.Image, len(urls))
	imageErrs := make([]error, len(urls))
	faces := make([]*fonts.Handle, len(remote))
	faceErrs := make([]error, len(remote))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, u := range urls {
		g.Go(func() error {
			images[i], imageErrs[i] = r.loadImage(gctx, u)
			return gctx.Err()
		})
	}
	for i, f := range remote {
		g.Go(func() error {
			faces[i], faceErrs[i] = r.loadFont(gctx, f.Family)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a := newAssets()
	a.fallback = r.fallback
	for i, u := range urls {
		if imageErrs[i] != nil {
			a.degrade(ctx, r.logger, "image", u, imageErrs[i])
			continue
		}
		a.images[u] = images[i]
	}
	for i, f := range remote {
		if faceErrs[i] != nil {
			a.degrade(ctx, r.logger, "font", f.Family, faceErrs[i])
			a.fonts[f] = r.fallback
			continue
		}
		a.fonts[f] = faces[i]
	}
	return a, nil
}

func (r *Resolver) loadImage(ctx context.Context, rawURL string) (image.Image, error) {
	if err := errors.ValidateAssetURL(rawURL); err != nil {
		return nil, err
	}
	data, err := r.load(ctx, "image", rawURL)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (r *Resolver) loadFont(ctx context.Context, family string) (*fonts.Handle, error) {
	src := r.fontSources[normalizeFamily(family)]
	if src == "" && errors.ValidateAssetURL(family) == nil {
		src = family
	}
	if src == "" {
		return nil, errors.New(errors.ErrCodeAssetUnavailable, "no source configured for font family %q", family)
	}
	data, err := r.load(ctx, "font", src)
	if err != nil {
		return nil, err
	}
	return fonts.Parse(family, data)
}

func normalizeFamily(family string) string {
	return strings.ToLower(strings.TrimSpace(family))
}

// fallbackFont returns the first embedded face of chain, or the regular
// face when none matches.
func fallbackFont(chain []fonts.Style) *fonts.Handle {
	for _, s := range chain {
		if h := fonts.Embedded(s); h != nil {
			return h
		}
	}
	return fonts.Embedded(fonts.Style{})
}
