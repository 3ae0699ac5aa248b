package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/eligibility"
	"github.com/matzehuels/certforge/pkg/orchestrator"
)

// generateOpts holds the command-line flags for the generate command.
type generateOpts struct {
	layout      string
	request     string // JSON request file, overrides participant and event flags
	participant certificate.Participant
	event       eventFlags
	attestation eligibility.Attestation
	survey      bool // event requires the survey
	asJSON      bool
}

// generateCommand creates the generate command, which issues one
// certificate and stores its artifacts.
func (c *CLI) generateCommand() *cobra.Command {
	var opts generateOpts

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Issue a certificate for one participant",
		Long: `Issue the certificate for one participant of one event. Running it
again for the same participant and event returns the existing certificate.

The participant and event come from flags or from a JSON request file:

  {"participant": {"user_id": "u-42", "first_name": "Ada", "last_name": "Lovelace"},
   "event": {"id": "gc25", "title": "GopherCon", "start_date": "2025-06-03T00:00:00Z"},
   "attestation": {"attended": true}}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runGenerate(cmd.Context(), &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.layout, "layout", "l", "", "layout config (JSON or YAML)")
	cmd.Flags().StringVar(&opts.request, "request", "", "JSON request file")
	cmd.Flags().StringVar(&opts.participant.UserID, "user", "", "participant user id")
	cmd.Flags().StringVar(&opts.participant.Prefix, "name-prefix", "", "name prefix, e.g. Dr.")
	cmd.Flags().StringVar(&opts.participant.FirstName, "first", "", "first name")
	cmd.Flags().StringVar(&opts.participant.MiddleName, "middle", "", "middle name (printed as an initial)")
	cmd.Flags().StringVar(&opts.participant.LastName, "last", "", "last name")
	cmd.Flags().StringVar(&opts.participant.Suffix, "name-suffix", "", "name suffix, e.g. Jr.")
	cmd.Flags().BoolVar(&opts.attestation.Attended, "attended", false, "the participant attended")
	cmd.Flags().BoolVar(&opts.attestation.SurveyCompleted, "survey-completed", false, "the participant completed the survey")
	cmd.Flags().BoolVar(&opts.survey, "requires-survey", false, "the event requires the survey")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the certificate as JSON")
	opts.event.register(cmd)

	return cmd
}

func (o *generateOpts) toRequest() (orchestrator.Request, error) {
	if o.request != "" {
		return readRequest(o.request)
	}
	ev, err := o.event.event()
	if err != nil {
		return orchestrator.Request{}, err
	}
	ev.RequiresSurvey = o.survey
	return orchestrator.Request{
		Participant: o.participant,
		Event:       ev,
		Attestation: o.attestation,
	}, nil
}

func readRequest(path string) (orchestrator.Request, error) {
	var req orchestrator.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, fmt.Errorf("read request: %w", err)
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("parse request %s: %w", path, err)
	}
	return req, nil
}

func (c *CLI) runGenerate(ctx context.Context, opts *generateOpts) error {
	req, err := opts.toRequest()
	if err != nil {
		return err
	}
	if req.Layout, err = loadLayout(opts.layout); err != nil {
		return err
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

	prog := newProgress(loggerFromContext(ctx))
	res, err := spin(ctx, "Issuing certificate...", func(*spinner) (*orchestrator.Result, error) {
		return e.orch.Generate(ctx, req)
	})
	if err != nil {
		return err
	}
	prog.done("Generation finished", "number", res.Certificate.Number, "duplicate", res.Duplicate)

	if opts.asJSON {
		return printJSON(res.Certificate)
	}
	if res.Duplicate {
		printInfo("Certificate already issued")
	} else {
		printSuccess("Certificate issued")
	}
	printCertificate(res.Certificate)
	for _, d := range res.Degraded {
		printWarning("%v", d)
	}
	printNextStep("Verify it", fmt.Sprintf("%s verify %s --event %s", appName, res.Certificate.Number, res.Certificate.EventID))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
