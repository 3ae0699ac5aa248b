package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// verifyCommand creates the verify command, which looks a certificate up
// by its number.
func (c *CLI) verifyCommand() *cobra.Command {
	var (
		eventID string
		fetch   string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "verify <number>",
		Short: "Look up an issued certificate by number",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runVerify(cmd.Context(), eventID, args[0], fetch, asJSON)
		},
	}

	cmd.Flags().StringVar(&eventID, "event", "", "event id (required)")
	cmd.Flags().StringVar(&fetch, "fetch", "", "download the PDF and PNG into this directory")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the certificate as JSON")
	_ = cmd.MarkFlagRequired("event")

	return cmd
}

func (c *CLI) runVerify(ctx context.Context, eventID, number, fetch string, asJSON bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	e, err := c.openEnv(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer e.Close()

	cert, err := e.orch.Lookup(ctx, eventID, number)
	if err != nil {
		return err
	}
	if asJSON {
		if err := printJSON(cert); err != nil {
			return err
		}
	} else {
		printSuccess("Certificate %s is valid", cert.Number)
		printCertificate(cert)
	}

	if fetch == "" {
		return nil
	}
	if err := os.MkdirAll(fetch, 0o755); err != nil {
		return err
	}
	paths, err := spin(ctx, "Fetching artifacts...", func(s *spinner) ([]string, error) {
		var paths []string
		for _, ref := range []string{cert.VectorRef, cert.RasterRef} {
			s.update("Fetching " + filepath.Base(ref) + "...")
			data, err := e.orch.Artifact(ctx, ref)
			if err != nil {
				return nil, fmt.Errorf("fetch %s: %w", ref, err)
			}
			path := filepath.Join(fetch, filepath.Base(ref))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return nil, err
			}
			paths = append(paths, path)
		}
		return paths, nil
	})
	if err != nil {
		return err
	}
	if !asJSON {
		for _, path := range paths {
			printFile(path)
		}
	}
	return nil
}
