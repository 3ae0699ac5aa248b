package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/pipeline"
)

func TestParseFormats(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty defaults to both", "", pipeline.DefaultFormats},
		{"single format", "pdf", []string{"pdf"}},
		{"multiple formats", "pdf,png", []string{"pdf", "png"}},
		{"spaces and case", " PNG , pdf ", []string{"png", "pdf"}},
		{"trailing comma", "png,", []string{"png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseFormats(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("parseFormats(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i, v := range got {
				if v != tt.want[i] {
					t.Errorf("parseFormats(%q)[%d] = %q, want %q", tt.input, i, v, tt.want[i])
				}
			}
		})
	}
}

func TestBasePath(t *testing.T) {
	tests := []struct {
		output, input, want string
	}{
		{"", "", "certificate"},
		{"", "layouts/gophercon.yaml", "gophercon"},
		{"out/cert.pdf", "x.json", "out/cert"},
		{"out/cert.png", "", "out/cert"},
		{"out/cert", "", "out/cert"},
		{"out/cert.svg", "", "out/cert.svg"},
	}
	for _, tt := range tests {
		if got := basePath(tt.output, tt.input); got != tt.want {
			t.Errorf("basePath(%q, %q) = %q, want %q", tt.output, tt.input, got, tt.want)
		}
	}
}

func TestEventFlags(t *testing.T) {
	ev, err := eventFlags{id: "gc25", title: "GopherCon", date: "2025-06-03", venue: "Hall A"}.event()
	if err != nil {
		t.Fatal(err)
	}
	if ev.FormattedDate() != "June 3, 2025" || ev.ID != "gc25" {
		t.Errorf("event = %+v", ev)
	}
	if _, err := (eventFlags{date: "03/06/2025"}).event(); err == nil {
		t.Error("expected an error for a malformed date")
	}
}

func TestLoadLayout(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "l.json")
	yamlPath := filepath.Join(dir, "l.yaml")
	os.WriteFile(jsonPath, []byte(`{"canvas":{"width":800,"height":500},"certificateId":{"prefix":"GC-"}}`), 0o644)
	os.WriteFile(yamlPath, []byte("canvas:\n  width: 700\n  height: 450\n"), 0o644)

	tests := []struct {
		path  string
		width float64
	}{
		{"", layout.Default().Canvas.Width},
		{jsonPath, 800},
		{yamlPath, 700},
	}
	for _, tt := range tests {
		m, err := loadLayout(tt.path)
		if err != nil {
			t.Fatalf("loadLayout(%q): %v", tt.path, err)
		}
		if m.Canvas.Width != tt.width {
			t.Errorf("loadLayout(%q) width = %v, want %v", tt.path, m.Canvas.Width, tt.width)
		}
	}
	if m, _ := loadLayout(jsonPath); m.CertificateID.Prefix != "GC-" {
		t.Errorf("prefix = %q", m.CertificateID.Prefix)
	}
	if _, err := loadLayout(filepath.Join(dir, "missing.json")); err == nil {
		t.Error("expected an error for a missing layout")
	}
}

func TestSaveLayout(t *testing.T) {
	dir := t.TempDir()
	m := layout.Default()
	m.Canvas.Width = 640

	for _, name := range []string{"out.json", "out.yaml"} {
		path := filepath.Join(dir, name)
		if err := saveLayout(path, m); err != nil {
			t.Fatalf("saveLayout(%s): %v", name, err)
		}
		data, _ := os.ReadFile(path)
		var raw map[string]any
		if filepath.Ext(name) == ".json" {
			err := json.Unmarshal(data, &raw)
			if err != nil {
				t.Fatal(err)
			}
		} else if err := yaml.Unmarshal(data, &raw); err != nil {
			t.Fatal(err)
		}
		if got := layout.Resolve(raw).Canvas.Width; got != 640 {
			t.Errorf("%s round trip width = %v", name, got)
		}
	}
}
