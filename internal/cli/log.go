// Package cli implements the certforge command-line interface.
//
// The commands render certificate previews, issue certificates singly or
// in batches, look them up, and run the HTTP API. The CLI is built with
// cobra and logs through charmbracelet/log.
//
// # Commands
//
// The main commands are:
//   - render: Preview a layout as PDF and/or PNG without storing anything
//   - generate: Issue one certificate
//   - batch: Issue certificates for a file of participants
//   - verify, list: Look up issued certificates
//   - serve: Run the HTTP API
//   - cache: Manage the asset cache
//
// # Configuration
//
// Every command that touches storage reads the TOML config named by
// --config, or the first of the default locations, overlaid with
// CERTFORGE_* environment variables.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns the CLI logger. Timestamps read "15:04:05.00".
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// named returns l with a component prefix, as in "store: opened".
// A nil logger stays nil so callers keep their own defaults.
func named(l *log.Logger, component string) *log.Logger {
	if l == nil {
		return nil
	}
	return l.WithPrefix(component)
}

// progress logs how long an operation took. Not for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg with the elapsed time, rounded to the millisecond, and any
// extra key/value pairs.
func (p *progress) done(msg string, keyvals ...any) {
	keyvals = append(keyvals, "elapsed", time.Since(p.start).Round(time.Millisecond))
	p.logger.Info(msg, keyvals...)
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx for loggerFromContext.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
