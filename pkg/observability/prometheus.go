package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus implements every hook interface with prometheus collectors.
type Prometheus struct {
	generations *prometheus.CounterVec
	genDuration *prometheus.HistogramVec
	allocations *prometheus.CounterVec
	renders     *prometheus.HistogramVec
	uploads     *prometheus.CounterVec
	uploadBytes *prometheus.CounterVec
	fetches     *prometheus.HistogramVec
	degraded    *prometheus.CounterVec
	cacheOps    *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		generations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certforge_generations_total",
			Help: "Certificate generation requests by outcome",
		}, []string{"outcome"}),
		genDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certforge_generation_duration_seconds",
			Help:    "Time to serve a generation request",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certforge_allocations_total",
			Help: "Certificate number reservations by result",
		}, []string{"result"}),
		renders: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certforge_render_duration_seconds",
			Help:    "Time spent rendering one artifact",
			Buckets: prometheus.DefBuckets,
		}, []string{"format", "result"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certforge_uploads_total",
			Help: "Artifact uploads by format and result",
		}, []string{"format", "result"}),
		uploadBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certforge_upload_bytes_total",
			Help: "Bytes of artifacts uploaded",
		}, []string{"format"}),
		fetches: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "certforge_asset_fetch_duration_seconds",
			Help:    "Time to fetch one asset",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "scheme", "result"}),
		degraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certforge_assets_degraded_total",
			Help: "Assets replaced by a fallback or skipped",
		}, []string{"kind"}),
		cacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certforge_asset_cache_operations_total",
			Help: "Shared asset cache operations",
		}, []string{"kind", "op"}),
	}
	reg.MustRegister(
		p.generations, p.genDuration, p.allocations, p.renders,
		p.uploads, p.uploadBytes, p.fetches, p.degraded, p.cacheOps,
	)
	return p
}

// Install registers p as the global generation, asset and cache hooks.
func (p *Prometheus) Install() {
	SetGenerationHooks(p)
	SetAssetHooks(p)
	SetCacheHooks(p)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (p *Prometheus) OnGenerateStart(context.Context, string) {}

func (p *Prometheus) OnGenerateComplete(_ context.Context, _ string, outcome Outcome, d time.Duration) {
	p.generations.WithLabelValues(string(outcome)).Inc()
	p.genDuration.WithLabelValues(string(outcome)).Observe(d.Seconds())
}

func (p *Prometheus) OnAllocate(_ context.Context, _ string, err error) {
	p.allocations.WithLabelValues(result(err)).Inc()
}

func (p *Prometheus) OnRender(_ context.Context, format string, d time.Duration, err error) {
	p.renders.WithLabelValues(format, result(err)).Observe(d.Seconds())
}

func (p *Prometheus) OnUpload(_ context.Context, format string, size int, err error) {
	p.uploads.WithLabelValues(format, result(err)).Inc()
	if err == nil {
		p.uploadBytes.WithLabelValues(format).Add(float64(size))
	}
}

func (p *Prometheus) OnFetch(_ context.Context, kind, scheme string, d time.Duration, err error) {
	p.fetches.WithLabelValues(kind, scheme, result(err)).Observe(d.Seconds())
}

func (p *Prometheus) OnDegraded(_ context.Context, kind string) {
	p.degraded.WithLabelValues(kind).Inc()
}

func (p *Prometheus) OnCacheHit(_ context.Context, kind string) {
	p.cacheOps.WithLabelValues(kind, "hit").Inc()
}

func (p *Prometheus) OnCacheMiss(_ context.Context, kind string) {
	p.cacheOps.WithLabelValues(kind, "miss").Inc()
}

func (p *Prometheus) OnCacheSet(_ context.Context, kind string, _ int) {
	p.cacheOps.WithLabelValues(kind, "set").Inc()
}

var (
	_ GenerationHooks = (*Prometheus)(nil)
	_ AssetHooks      = (*Prometheus)(nil)
	_ CacheHooks      = (*Prometheus)(nil)
)
