package cli

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/certforge/internal/server"
	"github.com/matzehuels/certforge/pkg/observability"
)

// serveCommand creates the serve command, which runs the HTTP API.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr       string
		layoutPath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the certificate API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), addr, layoutPath)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVarP(&layoutPath, "layout", "l", "", "default layout for requests without one")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, addr, layoutPath string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	m, err := loadLayout(layoutPath)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	observability.NewPrometheus(reg).Install()

	e, err := c.openEnv(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer e.Close()

	srv := server.New(server.Options{
		Orchestrator: e.orch,
		Runner:       e.runner,
		Layout:       m,
		Metrics:      promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		RasterWidth:  cfg.Render.Width,
		Logger:       named(c.Logger, "server"),
	})
	c.Logger.Info("starting certforge",
		"addr", cfg.Server.Addr,
		"database", cfg.Database.Driver,
		"blob", cfg.Blob.URL,
		"cache", cfg.Assets.Cache,
	)
	err = srv.ListenAndServe(ctx, cfg.Server.Addr, cfg.Server.ReadTimeout.Std(), cfg.Server.ShutdownTimeout.Std())
	if err == nil && errors.Is(ctx.Err(), context.Canceled) {
		c.Logger.Info("stopped")
	}
	return err
}
