// Package observability provides hooks for metrics about certificate
// generation.
//
// Libraries emit events through the registered hooks; main decides which
// backend receives them. The defaults are no-ops, so packages can be used
// without any metrics setup.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    prom := observability.NewPrometheus(prometheus.DefaultRegisterer)
//	    prom.Install()
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	start := time.Now()
//	rec, err := generate(ctx, req)
//	observability.Generation().OnGenerateComplete(ctx, eventID, outcome, time.Since(start))
package observability

import (
	"context"
	"sync"
	"time"
)

// Outcome labels the result of one generation request.
type Outcome string

const (
	OutcomeGenerated   Outcome = "generated"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeNotEligible Outcome = "not_eligible"
	OutcomeConflict    Outcome = "conflict"
	OutcomeFailed      Outcome = "failed"
)

// GenerationHooks receives events from the certificate orchestrator.
type GenerationHooks interface {
	OnGenerateStart(ctx context.Context, eventID string)
	OnGenerateComplete(ctx context.Context, eventID string, outcome Outcome, duration time.Duration)

	// OnAllocate records a number reservation attempt.
	OnAllocate(ctx context.Context, eventID string, err error)

	// OnRender records one renderer pass; format is "pdf" or "png".
	OnRender(ctx context.Context, format string, duration time.Duration, err error)

	// OnUpload records one artifact upload.
	OnUpload(ctx context.Context, format string, size int, err error)
}

// AssetHooks receives events from the asset resolver.
type AssetHooks interface {
	// OnFetch records one fetched asset; kind is "image" or "font".
	OnFetch(ctx context.Context, kind, scheme string, duration time.Duration, err error)

	// OnDegraded records an asset replaced by a fallback or skipped.
	OnDegraded(ctx context.Context, kind string)
}

// CacheHooks receives events from the shared asset cache.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, kind string)
	OnCacheMiss(ctx context.Context, kind string)
	OnCacheSet(ctx context.Context, kind string, size int)
}

// NoopGenerationHooks is a no-op implementation of GenerationHooks.
type NoopGenerationHooks struct{}

func (NoopGenerationHooks) OnGenerateStart(context.Context, string)                            {}
func (NoopGenerationHooks) OnGenerateComplete(context.Context, string, Outcome, time.Duration) {}
func (NoopGenerationHooks) OnAllocate(context.Context, string, error)                          {}
func (NoopGenerationHooks) OnRender(context.Context, string, time.Duration, error)             {}
func (NoopGenerationHooks) OnUpload(context.Context, string, int, error)                       {}

// NoopAssetHooks is a no-op implementation of AssetHooks.
type NoopAssetHooks struct{}

func (NoopAssetHooks) OnFetch(context.Context, string, string, time.Duration, error) {}
func (NoopAssetHooks) OnDegraded(context.Context, string)                            {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

var (
	generationHooks GenerationHooks = NoopGenerationHooks{}
	assetHooks      AssetHooks      = NoopAssetHooks{}
	cacheHooks      CacheHooks      = NoopCacheHooks{}
	hooksMu         sync.RWMutex
)

// SetGenerationHooks registers generation hooks. Nil is ignored.
func SetGenerationHooks(h GenerationHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		generationHooks = h
	}
}

// SetAssetHooks registers asset hooks. Nil is ignored.
func SetAssetHooks(h AssetHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		assetHooks = h
	}
}

// SetCacheHooks registers cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// Generation returns the registered generation hooks.
func Generation() GenerationHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return generationHooks
}

// Assets returns the registered asset hooks.
func Assets() AssetHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return assetHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// Reset restores all hooks to their no-op defaults.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	generationHooks = NoopGenerationHooks{}
	assetHooks = NoopAssetHooks{}
	cacheHooks = NoopCacheHooks{}
}
