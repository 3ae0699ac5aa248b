package gcs

import (
	"net/url"
	"path/filepath"
	"testing"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    Options
		wantErr bool
	}{
		{raw: "gcs://certs", want: Options{Bucket: "certs"}},
		{raw: "gcs://certs/2026/spring", want: Options{Bucket: "certs", Prefix: "2026/spring/"}},
		{
			raw:  "gcs://certs?credentials=/etc/key.json&endpoint=http://localhost:4443/storage/v1/",
			want: Options{Bucket: "certs", CredentialsFile: "/etc/key.json", Endpoint: "http://localhost:4443/storage/v1/"},
		},
		{raw: "gcs:///prefix-only", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			got, err := parseURL(u)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseURL err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseURL = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestClientOptions(t *testing.T) {
	opts, err := Options{Bucket: "b"}.clientOptions()
	if err != nil || len(opts) != 1 {
		t.Errorf("default options = %d, %v; want 1, nil", len(opts), err)
	}

	opts, err = Options{Bucket: "b", Endpoint: "http://localhost:4443"}.clientOptions()
	if err != nil || len(opts) != 3 {
		t.Errorf("emulator options = %d, %v; want 3, nil", len(opts), err)
	}

	missing := filepath.Join(t.TempDir(), "absent.json")
	if _, err := (Options{Bucket: "b", CredentialsFile: missing}).clientOptions(); err == nil {
		t.Error("missing credentials file accepted")
	}
}
