package cache

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNop(t *testing.T) {
	ctx := context.Background()
	c := Nop()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}

	data, hit, err := c.Get(ctx, "key")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if hit || data != nil {
		t.Error("Nop cache should never hit")
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}

	tests := []struct {
		name string
		key  string
		data []byte
	}{
		{"text", "https://example.com/logo.svg", []byte("<svg/>")},
		{"binary", "https://example.com/logo.png", []byte{0x89, 'P', 'N', 'G', 0, 1, 2}},
		{"empty", "data:,", []byte{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := AssetKey(tt.key)
			if err := c.Set(ctx, key, tt.data, 0); err != nil {
				t.Fatalf("Set: %v", err)
			}
			got, hit, err := c.Get(ctx, key)
			if err != nil || !hit {
				t.Fatalf("Get = %v, %v", hit, err)
			}
			if string(got) != string(tt.data) {
				t.Errorf("Get = %q, want %q", got, tt.data)
			}
		})
	}

	if _, hit, _ := c.Get(ctx, "missing"); hit {
		t.Error("missing key reported as hit")
	}

	if err := c.Delete(ctx, AssetKey("https://example.com/logo.png")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, AssetKey("https://example.com/logo.png")); hit {
		t.Error("deleted key still present")
	}
	if err := c.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	if err := c.Set(ctx, "k", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if _, hit, _ := c.Get(ctx, "k"); !hit {
		t.Fatal("fresh entry missing")
	}
	time.Sleep(30 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry not removed from disk")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	path := c.path("k")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || hit || data != nil {
		t.Errorf("Get corrupt = %q, %v, %v; want miss", data, hit, err)
	}
}

func TestFileCacheConcurrent(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Set(ctx, "shared", []byte("same-bytes"), 0)
			if data, hit, err := c.Get(ctx, "shared"); err != nil || (hit && string(data) != "same-bytes") {
				t.Errorf("Get = %q, %v, %v", data, hit, err)
			}
		}()
	}
	wg.Wait()
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("entry survived Clear")
	}
	if _, err := os.Stat(c.Dir()); err != nil {
		t.Errorf("cache dir missing after Clear: %v", err)
	}
}

func TestWithPrefix(t *testing.T) {
	ctx := context.Background()
	base, _ := NewFileCache(t.TempDir())
	a := WithPrefix(base, "a:")
	b := WithPrefix(base, "b:")

	_ = a.Set(ctx, "k", []byte("from a"), 0)
	if _, hit, _ := b.Get(ctx, "k"); hit {
		t.Error("prefixed views share keys")
	}
	if data, hit, _ := base.Get(ctx, "a:k"); !hit || string(data) != "from a" {
		t.Errorf("base.Get(a:k) = %q, %v", data, hit)
	}
	if WithPrefix(base, "") != Cache(base) {
		t.Error("empty prefix should return the cache unchanged")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
	if k := AssetKey("https://example.com/a.png"); !strings.HasPrefix(k, "asset:") || len(k) != 70 {
		t.Errorf("AssetKey = %q", k)
	}
}
