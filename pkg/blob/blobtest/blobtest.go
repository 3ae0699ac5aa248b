// Package blobtest is a conformance suite for [blob.Store] backends.
package blobtest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/matzehuels/certforge/pkg/blob"
)

// Factory returns an empty store. The suite closes it.
type Factory func(t *testing.T) blob.Store

// Run exercises s against the blob.Store contract.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s blob.Store)
	}{
		{"PutGet", testPutGet},
		{"Overwrite", testOverwrite},
		{"Missing", testMissing},
		{"Delete", testDelete},
		{"Concurrent", testConcurrent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { s.Close() })
			tt.fn(t, s)
		})
	}
}

func testPutGet(t *testing.T, s blob.Store) {
	ctx := context.Background()
	pdf := []byte("%PDF-1.7 test")
	png := []byte{0x89, 'P', 'N', 'G'}

	if err := s.Put(ctx, blob.Key("ev-1", "CERT-000001", blob.ExtPDF), pdf, blob.ContentTypePDF); err != nil {
		t.Fatalf("Put pdf: %v", err)
	}
	if err := s.Put(ctx, blob.Key("ev-1", "CERT-000001", blob.ExtPNG), png, blob.ContentTypePNG); err != nil {
		t.Fatalf("Put png: %v", err)
	}

	got, err := s.Get(ctx, "ev-1/CERT-000001.pdf")
	if err != nil || !bytes.Equal(got, pdf) {
		t.Errorf("Get pdf = %q, %v", got, err)
	}
	got, err = s.Get(ctx, "ev-1/CERT-000001.png")
	if err != nil || !bytes.Equal(got, png) {
		t.Errorf("Get png = %v, %v", got, err)
	}
}

func testOverwrite(t *testing.T, s blob.Store) {
	ctx := context.Background()
	key := blob.Key("ev-1", "X-1", blob.ExtPNG)
	for _, v := range []string{"first", "second"} {
		if err := s.Put(ctx, key, []byte(v), blob.ContentTypePNG); err != nil {
			t.Fatal(err)
		}
	}
	if got, err := s.Get(ctx, key); err != nil || string(got) != "second" {
		t.Errorf("Get after overwrite = %q, %v", got, err)
	}
}

func testMissing(t *testing.T, s blob.Store) {
	_, err := s.Get(context.Background(), "ev-404/none.pdf")
	if !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("Get missing = %v, want ErrNotFound", err)
	}
}

func testDelete(t *testing.T, s blob.Store) {
	ctx := context.Background()
	key := blob.Key("ev-1", "X-2", blob.ExtPDF)
	if err := s.Put(ctx, key, []byte("x"), blob.ContentTypePDF); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, key); !errors.Is(err, blob.ErrNotFound) {
		t.Errorf("Get after delete = %v", err)
	}
	if err := s.Delete(ctx, key); err != nil {
		t.Errorf("Delete missing = %v, want nil", err)
	}
}

func testConcurrent(t *testing.T, s blob.Store) {
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := blob.Key("ev-c", fmt.Sprintf("N-%02d", i), blob.ExtPNG)
			if err := s.Put(ctx, key, []byte(key), blob.ContentTypePNG); err != nil {
				t.Errorf("Put %s: %v", key, err)
			}
		}()
	}
	wg.Wait()
	for i := 0; i < 16; i++ {
		key := blob.Key("ev-c", fmt.Sprintf("N-%02d", i), blob.ExtPNG)
		if got, err := s.Get(ctx, key); err != nil || string(got) != key {
			t.Errorf("Get %s = %q, %v", key, got, err)
		}
	}
}
