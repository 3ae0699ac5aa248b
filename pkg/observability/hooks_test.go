package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNoopHooksDoNotPanic(t *testing.T) {
	ctx := context.Background()

	g := NoopGenerationHooks{}
	g.OnGenerateStart(ctx, "ev-1")
	g.OnGenerateComplete(ctx, "ev-1", OutcomeGenerated, time.Second)
	g.OnAllocate(ctx, "ev-1", nil)
	g.OnRender(ctx, "pdf", time.Second, nil)
	g.OnUpload(ctx, "png", 1024, nil)

	a := NoopAssetHooks{}
	a.OnFetch(ctx, "image", "https", time.Second, nil)
	a.OnDegraded(ctx, "font")

	c := NoopCacheHooks{}
	c.OnCacheHit(ctx, "asset")
	c.OnCacheMiss(ctx, "asset")
	c.OnCacheSet(ctx, "asset", 1024)
}

func TestGlobalHooksRegistry(t *testing.T) {
	Reset()
	defer Reset()

	if _, ok := Generation().(NoopGenerationHooks); !ok {
		t.Error("Generation() should return NoopGenerationHooks by default")
	}
	if _, ok := Assets().(NoopAssetHooks); !ok {
		t.Error("Assets() should return NoopAssetHooks by default")
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Error("Cache() should return NoopCacheHooks by default")
	}

	custom := &testGenerationHooks{}
	SetGenerationHooks(custom)
	if Generation() != custom {
		t.Error("SetGenerationHooks should set custom hooks")
	}

	SetGenerationHooks(nil)
	if Generation() != custom {
		t.Error("SetGenerationHooks(nil) should be ignored")
	}

	Reset()
	if _, ok := Generation().(NoopGenerationHooks); !ok {
		t.Error("Reset() should restore NoopGenerationHooks")
	}
}

func TestPrometheus(t *testing.T) {
	Reset()
	defer Reset()

	reg := prometheus.NewRegistry()
	p := NewPrometheus(reg)
	p.Install()

	ctx := context.Background()
	Generation().OnGenerateComplete(ctx, "ev-1", OutcomeGenerated, 50*time.Millisecond)
	Generation().OnGenerateComplete(ctx, "ev-1", OutcomeDuplicate, time.Millisecond)
	Generation().OnGenerateComplete(ctx, "ev-1", OutcomeDuplicate, time.Millisecond)
	Generation().OnAllocate(ctx, "ev-1", errors.New("conflict"))
	Generation().OnUpload(ctx, "pdf", 2048, nil)
	Assets().OnDegraded(ctx, "image")
	Cache().OnCacheHit(ctx, "asset")

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"generated", p.generations.WithLabelValues("generated"), 1},
		{"duplicate", p.generations.WithLabelValues("duplicate"), 2},
		{"allocation errors", p.allocations.WithLabelValues("error"), 1},
		{"upload bytes", p.uploadBytes.WithLabelValues("pdf"), 2048},
		{"degraded images", p.degraded.WithLabelValues("image"), 1},
		{"cache hits", p.cacheOps.WithLabelValues("asset", "hit"), 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(tt.c); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, got, tt.want)
		}
	}

	if n := testutil.CollectAndCount(p.genDuration); n != 2 {
		t.Errorf("duration series = %d, want 2", n)
	}
}

type testGenerationHooks struct{ NoopGenerationHooks }
