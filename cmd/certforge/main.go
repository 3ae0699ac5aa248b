package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matzehuels/certforge/internal/cli"
	_ "github.com/matzehuels/certforge/pkg/blob/badger"
	_ "github.com/matzehuels/certforge/pkg/blob/gcs"
	_ "github.com/matzehuels/certforge/pkg/blob/s3"
	cferrors "github.com/matzehuels/certforge/pkg/errors"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(130) // Standard shell convention for SIGINT
		}
		fmt.Fprintln(os.Stderr, cferrors.UserMessage(err))
		os.Exit(exitCode(err))
	}
}

// exitCode maps error codes to distinct statuses so scripts can tell an
// ineligible participant from a failure.
func exitCode(err error) int {
	switch cferrors.GetCode(err) {
	case cferrors.ErrCodeNotEligible:
		return 3
	case cferrors.ErrCodeAllocationConflict:
		return 4
	default:
		return 1
	}
}

func run(ctx context.Context) error {
	var verbose bool

	c := cli.New(os.Stderr, cli.LogInfo)
	root := c.RootCommand()

	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")

	originalPreRun := root.PersistentPreRunE
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := cli.LogInfo
		if verbose {
			level = cli.LogDebug
		}
		c.SetLogLevel(level)

		if originalPreRun != nil {
			return originalPreRun(cmd, args)
		}
		return nil
	}

	return root.ExecuteContext(ctx)
}
