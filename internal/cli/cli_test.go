package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	_ "github.com/matzehuels/certforge/pkg/blob/badger"
	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/eligibility"
	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/observability"
)

// writeTestConfig writes a config that keeps all state under a temp dir.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "certforge.toml")
	body := fmt.Sprintf(`
[database]
driver = "sqlite"
path = %q

[blob]
url = "badger://%s"

[assets]
cache = "none"

[numbering]
default_prefix = "GC-"
`, filepath.Join(dir, "certforge.db"), filepath.Join(dir, "blobs"))
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestCLI() (*CLI, *bytes.Buffer) {
	var buf bytes.Buffer
	return New(&buf, log.InfoLevel), &buf
}

func execute(t *testing.T, c *CLI, args ...string) error {
	t.Helper()
	root := c.RootCommand()
	root.SetArgs(args)
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	return root.ExecuteContext(context.Background())
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	c, _ := newTestCLI()
	root := c.RootCommand()
	want := []string{"render", "generate", "verify", "list", "batch", "serve", "cache", "completion"}
	for _, name := range want {
		if cmd, _, err := root.Find([]string{name}); err != nil || cmd.Name() != name {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestGenerateVerifyList(t *testing.T) {
	cfg := writeTestConfig(t)
	c, logs := newTestCLI()
	generate := []string{"--config", cfg, "generate",
		"--event", "gc25", "--title", "GopherCon", "--date", "2025-06-03",
		"--user", "u-1", "--first", "Ada", "--middle", "byron", "--last", "Lovelace",
		"--attended",
	}

	if err := execute(t, c, generate...); err != nil {
		t.Fatalf("generate: %v", err)
	}
	// Running it again returns the same certificate.
	if err := execute(t, c, generate...); err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if !strings.Contains(logs.String(), "certificate already issued") {
		t.Errorf("second run was not reported as a duplicate:\n%s", logs)
	}

	fetch := t.TempDir()
	if err := execute(t, c, "--config", cfg, "verify", "GC-000001", "--event", "gc25", "--fetch", fetch); err != nil {
		t.Fatalf("verify: %v", err)
	}
	pdf, err := os.ReadFile(filepath.Join(fetch, "GC-000001.pdf"))
	if err != nil || !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Errorf("fetched pdf = %v", err)
	}
	if _, err := os.Stat(filepath.Join(fetch, "GC-000001.png")); err != nil {
		t.Errorf("fetched png: %v", err)
	}

	if err := execute(t, c, "--config", cfg, "list", "gc25"); err != nil {
		t.Fatalf("list: %v", err)
	}

	err = execute(t, c, "--config", cfg, "verify", "GC-000002", "--event", "gc25")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("verify unknown = %v, want NOT_FOUND", err)
	}
}

func TestGenerateNotEligible(t *testing.T) {
	cfg := writeTestConfig(t)
	c, _ := newTestCLI()
	err := execute(t, c, "--config", cfg, "generate", "--event", "gc25", "--user", "u-1", "--first", "Ada")
	if !errors.Is(err, errors.ErrCodeNotEligible) {
		t.Errorf("generate = %v, want NOT_ELIGIBLE", err)
	}
}

func TestRenderWritesFiles(t *testing.T) {
	cfg := writeTestConfig(t)
	dir := t.TempDir()
	layoutPath := filepath.Join(dir, "small.json")
	os.WriteFile(layoutPath, []byte(`{"canvas":{"width":600,"height":400}}`), 0o644)
	out := filepath.Join(dir, "preview")
	saved := filepath.Join(dir, "resolved.yaml")

	c, _ := newTestCLI()
	err := execute(t, c, "--config", cfg, "render", layoutPath, "-o", out, "--name", "Ada Lovelace", "--save-config", saved)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, name := range []string{"preview.pdf", "preview.png", "resolved.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestRenderRejectsFormat(t *testing.T) {
	c, _ := newTestCLI()
	if err := execute(t, c, "render", "-f", "svg"); err == nil {
		t.Error("render -f svg succeeded")
	}
}

func TestReadBatch(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "batch.json")
	yamlPath := filepath.Join(dir, "batch.yaml")
	os.WriteFile(jsonPath, []byte(`{
  "event": {"id": "gc25", "title": "GopherCon", "start_date": "2025-06-03T00:00:00Z"},
  "participants": [
    {"participant": {"user_id": "u-1", "first_name": "Ada"}, "attestation": {"attended": true}},
    {"participant": {"user_id": "u-2", "first_name": "Grace"}}
  ]
}`), 0o644)
	os.WriteFile(yamlPath, []byte(`
event:
  id: gc25
  title: GopherCon
  start_date: "2025-06-03T00:00:00Z"
  requires_survey: true
participants:
  - participant: {user_id: u-1, first_name: Ada}
    attestation: {attended: true, survey_completed: true}
`), 0o644)

	b, err := readBatch(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	if b.Event.FormattedDate() != "June 3, 2025" || len(b.Participants) != 2 || !b.Participants[0].Attestation.Attended {
		t.Errorf("json batch = %+v", b)
	}

	b, err = readBatch(yamlPath)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Event.RequiresSurvey || b.Participants[0].Participant.UserID != "u-1" || !b.Participants[0].Attestation.SurveyCompleted {
		t.Errorf("yaml batch = %+v", b)
	}

	noEvent := filepath.Join(dir, "empty.json")
	os.WriteFile(noEvent, []byte(`{"participants": []}`), 0o644)
	if _, err := readBatch(noEvent); !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("readBatch without event = %v", err)
	}
}

func TestGenerateAll(t *testing.T) {
	cfgPath := writeTestConfig(t)
	c, _ := newTestCLI()
	c.configPath = cfgPath
	cfg, err := c.loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	e, err := c.openEnv(ctx, cfg, true)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	b := &batchFile{
		Event: certificate.Event{ID: "gc25", Title: "GopherCon"},
	}
	for i := 1; i <= 5; i++ {
		b.Participants = append(b.Participants, batchEntry{
			Participant: certificate.Participant{UserID: fmt.Sprintf("u-%d", i), FirstName: "P", LastName: fmt.Sprint(i)},
			Attestation: eligibility.Attestation{Attended: i != 3},
		})
	}
	m := layout.Default()
	m.Canvas.Width, m.Canvas.Height = 600, 400

	results := make(chan batchResult)
	go func() {
		defer close(results)
		generateAll(ctx, e.orch, b, m, batchOptions{concurrency: 3, retries: 1}, results)
	}()

	// Drive the progress model the way the live view would.
	var model tea.Model = newBatchModel("gc25", len(b.Participants), results)
	msg := model.Init()()
	for {
		var cmd tea.Cmd
		model, cmd = model.Update(msg)
		if _, done := msg.(batchDoneMsg); done {
			break
		}
		msg = cmd()
	}
	bm := model.(BatchModel)
	if !bm.Done || len(bm.Results) != 5 {
		t.Fatalf("model done=%v results=%d", bm.Done, len(bm.Results))
	}
	if bm.Counts[observability.OutcomeGenerated] != 4 || bm.Counts[observability.OutcomeNotEligible] != 1 {
		t.Errorf("counts = %v", bm.Counts)
	}
	view := bm.View()
	if !strings.Contains(view, "4 generated") || !strings.Contains(view, "1 not_eligible") {
		t.Errorf("view missing summary:\n%s", view)
	}

	certs, err := e.orch.List(ctx, "gc25")
	if err != nil {
		t.Fatal(err)
	}
	seen := make(map[string]bool)
	for _, c := range certs {
		if seen[c.Number] {
			t.Errorf("number %s issued twice", c.Number)
		}
		seen[c.Number] = true
	}
	if len(certs) != 4 {
		t.Errorf("issued %d certificates, want 4", len(certs))
	}
}

func TestBatchCommandPlain(t *testing.T) {
	cfg := writeTestConfig(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "batch.json")
	os.WriteFile(path, []byte(`{
  "event": {"id": "gc25", "title": "GopherCon"},
  "layout": {"canvas": {"width": 600, "height": 400}},
  "participants": [
    {"participant": {"user_id": "u-1", "first_name": "Ada"}, "attestation": {"attended": true}},
    {"participant": {"user_id": "u-2", "first_name": "Grace"}, "attestation": {"attended": true}}
  ]
}`), 0o644)

	c, logs := newTestCLI()
	if err := execute(t, c, "--config", cfg, "batch", path, "--plain"); err != nil {
		t.Fatalf("batch: %v\n%s", err, logs)
	}
	if !strings.Contains(logs.String(), "GC-000002") {
		t.Errorf("batch log missing second number:\n%s", logs)
	}
}

func TestBatchModelQuit(t *testing.T) {
	m := newBatchModel("x", 3, make(chan batchResult))
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if !next.(BatchModel).Aborted {
		t.Error("quitting early should mark the batch aborted")
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		done, total, filled int
	}{
		{0, 10, 0},
		{5, 10, progressBarWidth / 2},
		{10, 10, progressBarWidth},
		{0, 0, 0},
	}
	for _, tt := range tests {
		got := strings.Count(renderBar(tt.done, tt.total), "█")
		if got != tt.filled {
			t.Errorf("renderBar(%d, %d) filled %d cells, want %d", tt.done, tt.total, got, tt.filled)
		}
	}
}
