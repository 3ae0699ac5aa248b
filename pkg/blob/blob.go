// Package blob stores rendered certificate artifacts.
//
// Backends register a URL scheme from their package's init function and
// are selected with [Open]:
//
//	memory://               in-memory badger (tests, previews)
//	badger:///var/lib/cf    badger on disk
//	gcs://bucket/prefix     Google Cloud Storage
//	s3://bucket/prefix      Amazon S3 or a compatible endpoint
//
// Programs import the backends they support for their side effect:
//
//	import _ "github.com/matzehuels/certforge/pkg/blob/badger"
package blob

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/certforge/pkg/errors"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New(errors.ErrCodeNotFound, "artifact not found")

// Store is an artifact store. Keys are slash-separated paths.
type Store interface {
	// Put stores data under key, replacing any previous value.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns the data under key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Artifact extensions and their content types.
const (
	ExtPDF = "pdf"
	ExtPNG = "png"

	ContentTypePDF = "application/pdf"
	ContentTypePNG = "image/png"
)

// Key returns the storage key of a certificate artifact:
// {eventID}/{number}.{ext}.
func Key(eventID, number, ext string) string {
	return path.Join(eventID, number+"."+ext)
}

// ContentType returns the content type for an artifact key.
func ContentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case "." + ExtPDF:
		return ContentTypePDF
	case "." + ExtPNG:
		return ContentTypePNG
	default:
		return "application/octet-stream"
	}
}

// OpenFunc opens a store for a parsed URL.
type OpenFunc func(ctx context.Context, u *url.URL, logger *log.Logger) (Store, error)

var (
	mu      sync.RWMutex
	openers = make(map[string]OpenFunc)
)

// Register makes a backend available under scheme. It panics if the
// scheme is registered twice.
func Register(scheme string, fn OpenFunc) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := openers[scheme]; dup {
		panic("blob: scheme registered twice: " + scheme)
	}
	openers[scheme] = fn
}

// Schemes returns the registered schemes, sorted.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(openers))
	for s := range openers {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Open opens the store described by rawURL.
func Open(ctx context.Context, rawURL string, logger *log.Logger) (Store, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "parse blob url")
	}
	mu.RLock()
	fn, ok := openers[u.Scheme]
	mu.RUnlock()
	if !ok {
		return nil, errors.New(errors.ErrCodeUnsupported, "unsupported blob store %q (have %s)", u.Scheme, strings.Join(Schemes(), ", "))
	}
	s, err := fn(ctx, u, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s blob store: %w", u.Scheme, err)
	}
	return s, nil
}

// BucketPrefix splits a bucket URL of the form scheme://bucket/prefix.
// The prefix, when present, ends in a slash.
func BucketPrefix(u *url.URL) (bucket, prefix string, err error) {
	bucket = u.Host
	if bucket == "" {
		return "", "", errors.New(errors.ErrCodeInvalidInput, "%s url has no bucket", u.Scheme)
	}
	prefix = strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return bucket, prefix, nil
}
