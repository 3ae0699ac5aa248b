package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/certforge/pkg/assets"
	"github.com/matzehuels/certforge/pkg/blob/badger"
	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/eligibility"
	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/orchestrator"
	"github.com/matzehuels/certforge/pkg/pipeline"
	"github.com/matzehuels/certforge/pkg/store/sqlite"
)

func newTestServer(t *testing.T, metrics http.Handler) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard)

	st, err := sqlite.Open("", logger)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })
	blobs, err := badger.New(badger.WithLogger(logger))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { blobs.Close() })

	m := layout.Default()
	m.Canvas.Width, m.Canvas.Height = 600, 400
	m.CertificateID.Prefix = "CERT-"

	runner := pipeline.NewRunner(assets.NewResolver(assets.Options{Logger: logger}), nil, logger)
	orch := orchestrator.New(st, blobs, runner, orchestrator.Options{Logger: logger})
	srv := New(Options{
		Orchestrator: orch,
		Runner:       runner,
		Layout:       m,
		Metrics:      metrics,
		Logger:       logger,
	})
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func generateBody(user string, attended bool) string {
	body, _ := json.Marshal(generateRequest{
		Participant: certificate.Participant{UserID: user, FirstName: "Grace", LastName: "Hopper"},
		Event: certificate.Event{
			ID:        "ev-1",
			Title:     "GopherCon",
			StartDate: time.Date(2025, 6, 3, 0, 0, 0, 0, time.UTC),
			Venue:     "Hall A",
		},
		Attestation: eligibility.Attestation{Attended: attended},
	})
	return string(body)
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func errorCode(t *testing.T, resp *http.Response) errors.Code {
	t.Helper()
	return decode[map[string]errorBody](t, resp)["error"].Code
}

func TestGenerateAndVerify(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := post(t, ts.URL+"/v1/certificates", generateBody("u-1", true))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	created := decode[generateResponse](t, resp)
	c := created.Certificate
	if c == nil || c.Number != "CERT-000001" || c.ParticipantName != "Grace Hopper" {
		t.Fatalf("certificate = %+v", c)
	}
	if created.Duplicate {
		t.Error("first generation reported as duplicate")
	}

	again := post(t, ts.URL+"/v1/certificates", generateBody("u-1", true))
	if again.StatusCode != http.StatusOK {
		t.Errorf("repeat status = %d, want 200", again.StatusCode)
	}
	if dup := decode[generateResponse](t, again); !dup.Duplicate || dup.Certificate.Number != c.Number {
		t.Errorf("repeat = %+v", dup)
	}

	verify := get(t, ts.URL+"/v1/certificates/CERT-000001?event=ev-1")
	if verify.StatusCode != http.StatusOK {
		t.Fatalf("verify status = %d", verify.StatusCode)
	}
	if got := decode[certificate.Certificate](t, verify); got.ID != c.ID {
		t.Errorf("verify id = %q, want %q", got.ID, c.ID)
	}

	pdf := get(t, ts.URL+"/v1/artifacts/"+c.VectorRef)
	data, _ := io.ReadAll(pdf.Body)
	if pdf.StatusCode != http.StatusOK || pdf.Header.Get("Content-Type") != "application/pdf" || !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("artifact = %d %q %q", pdf.StatusCode, pdf.Header.Get("Content-Type"), data[:min(len(data), 8)])
	}
}

func TestGenerateNotEligible(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := post(t, ts.URL+"/v1/certificates", generateBody("u-2", false))
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != errors.ErrCodeNotEligible {
		t.Errorf("code = %s", code)
	}
}

func TestBadRequests(t *testing.T) {
	ts := newTestServer(t, nil)
	tests := []struct {
		name   string
		resp   func() *http.Response
		status int
		code   errors.Code
	}{
		{"malformed body", func() *http.Response { return post(t, ts.URL+"/v1/certificates", "{") }, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"missing ids", func() *http.Response { return post(t, ts.URL+"/v1/certificates", "{}") }, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"verify without event", func() *http.Response { return get(t, ts.URL+"/v1/certificates/CERT-000001") }, http.StatusBadRequest, errors.ErrCodeInvalidInput},
		{"verify unknown", func() *http.Response { return get(t, ts.URL+"/v1/certificates/NOPE?event=ev-1") }, http.StatusNotFound, errors.ErrCodeNotFound},
		{"artifact unknown", func() *http.Response { return get(t, ts.URL+"/v1/artifacts/ev-1/NOPE.pdf") }, http.StatusNotFound, errors.ErrCodeNotFound},
		{"preview format", func() *http.Response { return post(t, ts.URL+"/v1/preview/svg", "{}") }, http.StatusBadRequest, errors.ErrCodeInvalidFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := tt.resp()
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.status)
			}
			if code := errorCode(t, resp); code != tt.code {
				t.Errorf("code = %s, want %s", code, tt.code)
			}
		})
	}
}

func TestListEvent(t *testing.T) {
	ts := newTestServer(t, nil)

	empty := decode[map[string]json.RawMessage](t, get(t, ts.URL+"/v1/events/ev-1/certificates"))
	if string(empty["certificates"]) != "[]" {
		t.Errorf("empty list = %s", empty["certificates"])
	}

	for _, u := range []string{"u-1", "u-2", "u-3"} {
		if resp := post(t, ts.URL+"/v1/certificates", generateBody(u, true)); resp.StatusCode != http.StatusCreated {
			t.Fatalf("generate %s: %d", u, resp.StatusCode)
		}
	}
	var list struct {
		Certificates []certificate.Certificate `json:"certificates"`
	}
	if err := json.NewDecoder(get(t, ts.URL+"/v1/events/ev-1/certificates").Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list.Certificates) != 3 {
		t.Fatalf("listed %d certificates", len(list.Certificates))
	}
	for i, c := range list.Certificates {
		want := []string{"CERT-000001", "CERT-000002", "CERT-000003"}[i]
		if c.Number != want {
			t.Errorf("certificates[%d] = %s, want %s", i, c.Number, want)
		}
	}
}

func TestPreview(t *testing.T) {
	ts := newTestServer(t, nil)
	body := `{"participant_name":"Grace Hopper","certificate_number":"PREVIEW-1","event":{"title":"GopherCon"},"width":300}`

	resp := post(t, ts.URL+"/v1/preview/png", body)
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("preview = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("preview body is not a PNG")
	}
	if resp.Header.Get("X-Certforge-Degraded") == "" {
		t.Error("missing degraded header")
	}

	// Previews persist nothing.
	list := decode[map[string]json.RawMessage](t, get(t, ts.URL+"/v1/events/ev-1/certificates"))
	if string(list["certificates"]) != "[]" {
		t.Errorf("preview persisted certificates: %s", list["certificates"])
	}
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	canary := prometheus.NewCounter(prometheus.CounterOpts{Name: "certforge_canary_total", Help: "canary"})
	reg.MustRegister(canary)
	canary.Inc()
	ts := newTestServer(t, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	if resp := get(t, ts.URL+"/healthz"); resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d", resp.StatusCode)
	}
	data, _ := io.ReadAll(get(t, ts.URL+"/metrics").Body)
	if !strings.Contains(string(data), "certforge_canary_total 1") {
		t.Errorf("metrics body missing canary:\n%s", data)
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(Options{Layout: layout.Default()})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln, time.Second, time.Second) }()

	waitHealthy(t, "http://"+ln.Addr().String()+"/healthz")
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func waitHealthy(t *testing.T, url string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if resp, err := http.Get(url); err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("server never became healthy")
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.ErrCodeNotEligible, http.StatusForbidden},
		{errors.ErrCodeAllocationConflict, http.StatusConflict},
		{errors.ErrCodeUploadFailure, http.StatusBadGateway},
		{errors.ErrCodeRenderFailure, http.StatusInternalServerError},
		{errors.ErrCodeNotFound, http.StatusNotFound},
		{"", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.code); got != tt.want {
			t.Errorf("statusFor(%q) = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestLocalFileAssetsRefused(t *testing.T) {
	ts := newTestServer(t, nil)

	path := filepath.Join(t.TempDir(), "logo.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	fileURL := "file://" + path

	tests := []struct {
		user string
		url  string
		want bool
	}{
		{"u-file", fileURL, true},
		{"u-data", "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), false},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			var req generateRequest
			if err := json.Unmarshal([]byte(generateBody(tt.user, true)), &req); err != nil {
				t.Fatal(err)
			}
			req.Layout = map[string]any{"logos": map[string]any{"items": []any{map[string]any{"url": tt.url}}}}
			body, _ := json.Marshal(req)

			resp := post(t, ts.URL+"/v1/certificates", string(body))
			if resp.StatusCode != http.StatusCreated {
				t.Fatalf("status = %d, want 201", resp.StatusCode)
			}
			created := decode[generateResponse](t, resp)
			refused := false
			for _, d := range created.Degraded {
				if strings.Contains(d, tt.url) {
					refused = true
				}
			}
			if refused != tt.want {
				t.Errorf("logo degraded = %v, want %v (degraded: %v)", refused, tt.want, created.Degraded)
			}
		})
	}
}
