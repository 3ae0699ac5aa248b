// Package gcs stores artifacts in a Google Cloud Storage bucket.
//
// URLs have the form gcs://bucket[/prefix][?credentials=/path/key.json].
// Without credentials the application default credentials apply. An
// endpoint parameter points the client at an emulator and disables auth.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"

	"cloud.google.com/go/storage"
	"github.com/charmbracelet/log"
	"google.golang.org/api/option"

	"github.com/matzehuels/certforge/pkg/blob"
)

func init() {
	blob.Register("gcs", func(ctx context.Context, u *url.URL, logger *log.Logger) (blob.Store, error) {
		opts, err := parseURL(u)
		if err != nil {
			return nil, err
		}
		return New(ctx, opts, logger)
	})
}

// Options locate a bucket.
type Options struct {
	Bucket          string
	Prefix          string
	CredentialsFile string
	Endpoint        string
}

func parseURL(u *url.URL) (Options, error) {
	bucket, prefix, err := blob.BucketPrefix(u)
	if err != nil {
		return Options{}, err
	}
	q := u.Query()
	return Options{
		Bucket:          bucket,
		Prefix:          prefix,
		CredentialsFile: q.Get("credentials"),
		Endpoint:        q.Get("endpoint"),
	}, nil
}

func (o Options) clientOptions() ([]option.ClientOption, error) {
	opts := []option.ClientOption{storage.WithDisabledClientMetrics()}
	if o.CredentialsFile != "" {
		if _, err := os.Stat(o.CredentialsFile); err != nil {
			return nil, fmt.Errorf("gcs credentials: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(o.CredentialsFile))
	}
	if o.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(o.Endpoint), option.WithoutAuthentication())
	}
	return opts, nil
}

// Store is a GCS-backed blob.Store.
type Store struct {
	client *storage.Client
	bucket *storage.BucketHandle
	prefix string
	logger *log.Logger
}

// New connects to the bucket described by opts.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("gcs blob: bucket not set")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	clientOpts, err := opts.clientOptions()
	if err != nil {
		return nil, err
	}
	client, err := storage.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Store{
		client: client,
		bucket: client.Bucket(opts.Bucket),
		prefix: opts.Prefix,
		logger: logger.WithPrefix("gcs"),
	}, nil
}

func (s *Store) object(key string) *storage.ObjectHandle {
	return s.bucket.Object(s.prefix + key)
}

// Put implements blob.Store.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	w := s.object(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs write %q: %w", key, err)
	}
	// The object only exists once Close succeeds.
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs put %q: %w", key, err)
	}
	s.logger.Debug("put", "key", key, "bytes", len(data))
	return nil
}

// Get implements blob.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	r, err := s.object(key).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, blob.ErrNotFound
		}
		return nil, fmt.Errorf("gcs get %q: %w", key, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs read %q: %w", key, err)
	}
	return data, nil
}

// Delete implements blob.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gcs delete %q: %w", key, err)
	}
	return nil
}

// Close implements blob.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
