package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// listCommand creates the list command.
func (c *CLI) listCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <event>",
		Short: "List the certificates issued for an event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runList(cmd.Context(), args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print certificates as JSON")
	return cmd
}

func (c *CLI) runList(ctx context.Context, eventID string, asJSON bool) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	e, err := c.openEnv(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer e.Close()

	certs, err := e.orch.List(ctx, eventID)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(certs)
	}
	if len(certs) == 0 {
		printInfo("No certificates issued for %s", eventID)
		return nil
	}
	fmt.Println(certificateTable(certs))
	printDetail("%d certificates", len(certs))
	return nil
}
