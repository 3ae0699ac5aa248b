// Package s3 stores artifacts in an S3 bucket.
//
// URLs have the form s3://bucket[/prefix][?region=eu-west-1&endpoint=URL].
// Credentials come from the default AWS chain. Setting endpoint targets
// an S3-compatible service and switches to path-style addressing.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/charmbracelet/log"

	"github.com/matzehuels/certforge/pkg/blob"
)

// DefaultTimeout bounds each request when the caller's context has no
// deadline.
const DefaultTimeout = 60 * time.Second

func init() {
	blob.Register("s3", func(ctx context.Context, u *url.URL, logger *log.Logger) (blob.Store, error) {
		opts, err := parseURL(u)
		if err != nil {
			return nil, err
		}
		return New(ctx, opts, logger)
	})
}

// Options locate a bucket.
type Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string
	Timeout  time.Duration
}

func parseURL(u *url.URL) (Options, error) {
	bucket, prefix, err := blob.BucketPrefix(u)
	if err != nil {
		return Options{}, err
	}
	q := u.Query()
	opts := Options{
		Bucket:   bucket,
		Prefix:   prefix,
		Region:   q.Get("region"),
		Endpoint: q.Get("endpoint"),
	}
	if v := q.Get("timeout"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Options{}, fmt.Errorf("s3 timeout: %w", err)
		}
		opts.Timeout = d
	}
	return opts, nil
}

// Store is an S3-backed blob.Store.
type Store struct {
	client  *s3.Client
	logger  *log.Logger
	bucket  string
	prefix  string
	timeout time.Duration
}

// New connects to the bucket described by opts.
func New(ctx context.Context, opts Options, logger *log.Logger) (*Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 blob: bucket not set")
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load default AWS config: %w", err)
	}
	if opts.Region != "" {
		awsCfg.Region = opts.Region
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{
		client:  client,
		logger:  logger.WithPrefix("s3"),
		bucket:  opts.Bucket,
		prefix:  opts.Prefix,
		timeout: timeout,
	}, nil
}

func (s *Store) fullKey(key string) string {
	return s.prefix + key
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// Put implements blob.Store.
func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.fullKey(key)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3 put %q: %w", key, err)
	}
	s.logger.Debug("put", "key", key, "bytes", len(data))
	return nil
}

// Get implements blob.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, blob.ErrNotFound
		}
		return nil, fmt.Errorf("s3 get %q: %w", key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read %q: %w", key, err)
	}
	return data, nil
}

// Delete implements blob.Store. S3 deletes of missing keys succeed.
func (s *Store) Delete(ctx context.Context, key string) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.fullKey(key)),
	})
	if err != nil && !isNotFound(err) {
		return fmt.Errorf("s3 delete %q: %w", key, err)
	}
	return nil
}

// Close implements blob.Store. The client holds no resources.
func (s *Store) Close() error { return nil }

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchKey" {
		return true
	}
	var noSuchKey *s3types.NoSuchKey
	return errors.As(err, &noSuchKey)
}
