package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/eligibility"
	"github.com/matzehuels/certforge/pkg/errors"
	"github.com/matzehuels/certforge/pkg/httputil"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/observability"
	"github.com/matzehuels/certforge/pkg/orchestrator"
)

const (
	defaultBatchConcurrency = 4
	defaultBatchRetries     = 2
	batchRetryDelay         = 200 * time.Millisecond
)

type batchOptions struct {
	layoutPath  string
	concurrency int
	retries     int
	plain       bool
}

// batchFile is the input of the batch command.
type batchFile struct {
	Event        certificate.Event `json:"event"`
	Layout       map[string]any    `json:"layout,omitempty"`
	Participants []batchEntry      `json:"participants"`
}

type batchEntry struct {
	Participant certificate.Participant `json:"participant"`
	Attestation eligibility.Attestation `json:"attestation"`
}

// batchResult is one finished entry.
type batchResult struct {
	UserID  string
	Number  string
	Outcome observability.Outcome
	Err     error
}

func (r batchResult) detail() string {
	if r.Err == nil {
		return ""
	}
	return errors.UserMessage(r.Err)
}

// batchCommand creates the batch command.
func (c *CLI) batchCommand() *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Issue certificates for every participant in a file",
		Long: `Issue certificates for the participants listed in a JSON or YAML file:

  event:
    id: gc25
    title: GopherCon
    start_date: "2025-06-03T00:00:00Z"
  participants:
    - participant: {user_id: u-1, first_name: Ada, last_name: Lovelace}
      attestation: {attended: true}

Participants that already hold a certificate keep it. Numbering conflicts
and network errors are retried with backoff. The command fails if any
certificate could not be issued.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runBatch(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.layoutPath, "layout", "l", "", "layout config (overrides the file's layout)")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "j", defaultBatchConcurrency, "certificates generated at once")
	cmd.Flags().IntVar(&opts.retries, "retries", defaultBatchRetries, "extra attempts after a transient failure such as a numbering conflict")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "log progress instead of showing the live view")

	return cmd
}

// readBatch reads a batch file. YAML is chosen by extension.
func readBatch(path string) (*batchFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		// Decode through JSON so one set of field tags serves both.
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parse batch %s: %w", path, err)
		}
		if data, err = json.Marshal(raw); err != nil {
			return nil, fmt.Errorf("parse batch %s: %w", path, err)
		}
	}
	var b batchFile
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	if b.Event.ID == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "batch %s has no event id", path)
	}
	return &b, nil
}

func (c *CLI) runBatch(ctx context.Context, path string, opts batchOptions) error {
	b, err := readBatch(path)
	if err != nil {
		return err
	}
	m := layout.Resolve(b.Layout)
	if opts.layoutPath != "" {
		if m, err = loadLayout(opts.layoutPath); err != nil {
			return err
		}
	}
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	e, err := c.openEnv(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	results := make(chan batchResult)
	go func() {
		defer close(results)
		generateAll(ctx, e.orch, b, m, opts, results)
	}()

	var counts map[observability.Outcome]int
	if opts.plain || !isatty.IsTerminal(os.Stdout.Fd()) {
		counts = c.logBatch(results)
	} else {
		// The live view owns the terminal; keep log lines out of it.
		level := c.Logger.GetLevel()
		c.SetLogLevel(LogFatal)
		final, err := tea.NewProgram(newBatchModel("Issuing certificates for "+b.Event.ID, len(b.Participants), results)).Run()
		c.SetLogLevel(level)
		if err != nil {
			return err
		}
		bm := final.(BatchModel)
		if bm.Aborted {
			cancel()
			for range results {
			}
			return context.Canceled
		}
		counts = bm.Counts
	}

	if n := counts[observability.OutcomeFailed] + counts[observability.OutcomeConflict]; n > 0 {
		printError("%s", summaryLine(counts))
		return fmt.Errorf("%d of %d certificates could not be issued", n, len(b.Participants))
	}
	printSuccess("%s", summaryLine(counts))
	return nil
}

// generateAll issues every entry of b, at most opts.concurrency at a time,
// and reports each on results. Transient failures are retried up to
// opts.retries times.
func generateAll(ctx context.Context, orch *orchestrator.Orchestrator, b *batchFile, m layout.Model, opts batchOptions, results chan<- batchResult) {
	var g errgroup.Group
	g.SetLimit(max(opts.concurrency, 1))
	for _, entry := range b.Participants {
		g.Go(func() error {
			req := orchestrator.Request{
				Participant: entry.Participant,
				Event:       b.Event,
				Attestation: entry.Attestation,
				Layout:      m,
			}
			var res *orchestrator.Result
			err := httputil.Retry(ctx, opts.retries+1, batchRetryDelay, func() error {
				var err error
				if res, err = orch.Generate(ctx, req); errors.Transient(err) {
					return httputil.Retryable(err)
				}
				return err
			})
			r := batchResult{UserID: entry.Participant.UserID, Outcome: orchestrator.Classify(res, err), Err: err}
			if err == nil {
				r.Number = res.Certificate.Number
			}
			select {
			case results <- r:
			case <-ctx.Done():
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (c *CLI) logBatch(results <-chan batchResult) map[observability.Outcome]int {
	counts := make(map[observability.Outcome]int)
	for r := range results {
		counts[r.Outcome]++
		if r.Err != nil {
			c.Logger.Warn("not issued", "user", r.UserID, "outcome", r.Outcome, "reason", r.detail())
			continue
		}
		c.Logger.Info(string(r.Outcome), "user", r.UserID, "number", r.Number)
	}
	return counts
}
