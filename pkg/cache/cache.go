// Package cache provides byte caches shared between generation passes.
//
// The asset resolver stores fetched fonts and images here keyed by URL,
// so that a design referenced by many certificates is downloaded once.
// Three backends are available:
//
//   - [FileCache]: one file per entry under a directory (CLI default)
//   - [RedisCache]: a redis server shared by several API instances
//   - [Nop]: never stores anything
//
// Entries are plain bytes; callers own their encoding.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache stores byte values with an optional TTL. A ttl of zero means the
// entry does not expire. Implementations are safe for concurrent use.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources held by the cache.
	Close() error
}

// Hash computes a SHA-256 hash of the input data as 64 hex characters.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// AssetKey returns the cache key for the body of an asset URL.
func AssetKey(url string) string {
	return "asset:" + Hash([]byte(url))
}

// prefixed namespaces every key of an underlying cache.
type prefixed struct {
	Cache
	prefix string
}

// WithPrefix returns a view of c that prepends prefix to every key. The
// view shares c's storage; closing it closes c.
func WithPrefix(c Cache, prefix string) Cache {
	if prefix == "" {
		return c
	}
	return &prefixed{Cache: c, prefix: prefix}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return p.Cache.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return p.Cache.Set(ctx, p.prefix+key, data, ttl)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.Cache.Delete(ctx, p.prefix+key)
}
