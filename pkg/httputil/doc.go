// Package httputil provides the HTTP plumbing used to download certificate
// assets.
//
// # Retry
//
// [Retry] runs an operation with exponential backoff. Only errors wrapped
// with [Retryable] are attempted again, so callers decide which failures
// are transient:
//
//	err := httputil.Retry(ctx, 3, 250*time.Millisecond, func() error {
//	    return upload(ctx, key, data)
//	})
//
// # Fetching
//
// [Fetcher] wraps an [net/http.Client] with a timeout, a body size limit
// and retry of network errors, 5xx and 429 responses:
//
//	f := httputil.NewFetcher(10 * time.Second)
//	body, contentType, err := f.Get(ctx, "https://example.com/logo.png")
//
// A non-2xx response that is not retried surfaces as a [*StatusError].
package httputil
