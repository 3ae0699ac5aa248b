package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/matzehuels/certforge/pkg/cache"
	"github.com/matzehuels/certforge/pkg/observability"
)

// load returns the raw bytes behind rawURL. Remote bodies go through the
// shared cache and are deduplicated across concurrent passes.
func (r *Resolver) load(ctx context.Context, kind, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	scheme := strings.ToLower(u.Scheme)

	start := time.Now()
	var data []byte
	switch scheme {
	case "data":
		data, err = decodeDataURL(rawURL)
	case "file":
		if !r.allowFile {
			err = fmt.Errorf("file assets are disabled")
			break
		}
		data, err = os.ReadFile(u.Path)
	case "http", "https":
		data, err = r.loadRemote(ctx, kind, rawURL)
	default:
		err = fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	observability.Assets().OnFetch(ctx, kind, scheme, time.Since(start), err)
	return data, err
}

func (r *Resolver) loadRemote(ctx context.Context, kind, rawURL string) ([]byte, error) {
	key := cache.AssetKey(rawURL)
	if data, ok, err := r.cache.Get(ctx, key); err == nil && ok {
		observability.Cache().OnCacheHit(ctx, kind)
		return data, nil
	} else if err != nil {
		r.logger.Debug("asset cache read failed", "url", rawURL, "err", err)
	}
	observability.Cache().OnCacheMiss(ctx, kind)

	// The shared fetch outlives any single caller's cancellation; the
	// fetcher's own timeout bounds it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.inflight.Do(rawURL, func() (any, error) {
		data, _, err := r.fetcher.Get(shared, rawURL)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(shared, key, data, r.cacheTTL); err != nil {
			r.logger.Debug("asset cache write failed", "url", rawURL, "err", err)
		} else {
			observability.Cache().OnCacheSet(shared, kind, len(data))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// decodeDataURL decodes an RFC 2397 data URL.
func decodeDataURL(raw string) ([]byte, error) {
	rest, ok := strings.CutPrefix(raw, "data:")
	if !ok {
		return nil, fmt.Errorf("not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("data URL has no payload")
	}
	if strings.HasSuffix(meta, ";base64") {
		payload = strings.Map(func(r rune) rune {
			if r == ' ' || r == '\n' || r == '\r' || r == '\t' {
				return -1
			}
			return r
		}, payload)
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		return data, err
	}
	s, err := url.PathUnescape(payload)
	if err != nil {
		return nil, err
	}
	return bytes.Clone([]byte(s)), nil
}
