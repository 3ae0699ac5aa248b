//go:build integration

package gcs

import (
	"context"
	"os"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/certforge/pkg/blob"
	"github.com/matzehuels/certforge/pkg/blob/blobtest"
)

// Requires CERTFORGE_TEST_GCS, e.g. gcs://certs/test?endpoint=http://localhost:4443/storage/v1/.
func TestConformance(t *testing.T) {
	raw := os.Getenv("CERTFORGE_TEST_GCS")
	if raw == "" {
		t.Skip("CERTFORGE_TEST_GCS not set")
	}
	blobtest.Run(t, func(t *testing.T) blob.Store {
		s, err := blob.Open(context.Background(), raw, log.Default())
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		return s
	})
}
