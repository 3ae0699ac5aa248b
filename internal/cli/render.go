package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/certforge/pkg/certificate"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/pipeline"
	"github.com/matzehuels/certforge/pkg/render/scene"
)

// dateFlagLayout is the format of --date flags.
const dateFlagLayout = "2006-01-02"

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output     string   // output file (single format) or base path
	formats    []string // pdf, png
	name       string   // participant name printed on the certificate
	number     string   // certificate number printed and encoded in the QR code
	event      eventFlags
	width      int    // PNG width in pixels
	noCache    bool   // bypass the asset and artifact cache
	saveConfig string // write the resolved layout here
}

// eventFlags are the event fields shared by render, generate and batch.
type eventFlags struct {
	id    string
	title string
	date  string
	venue string
}

func (f *eventFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.id, "event", "", "event id")
	cmd.Flags().StringVar(&f.title, "title", "", "event title")
	cmd.Flags().StringVar(&f.date, "date", "", "event start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.venue, "venue", "", "event venue")
}

func (f eventFlags) event() (certificate.Event, error) {
	ev := certificate.Event{ID: f.id, Title: f.title, Venue: f.venue}
	if f.date != "" {
		d, err := time.Parse(dateFlagLayout, f.date)
		if err != nil {
			return ev, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", f.date)
		}
		ev.StartDate = d
	}
	return ev, nil
}

func varsFor(ev certificate.Event) layout.Vars {
	return layout.Vars{EventName: ev.Title, EventDate: ev.FormattedDate(), Venue: ev.Venue}
}

// renderCommand creates the render command for previewing certificates
// without numbering or storing them.
func (c *CLI) renderCommand() *cobra.Command {
	var formatsStr string
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [layout]",
		Short: "Render a certificate preview to PDF and/or PNG",
		Long: `Render a certificate from a layout config (JSON or YAML) without
allocating a number or storing anything. Without a layout the built-in
default design is used.`,
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: fileCompletion([]string{"json", "yaml", "yml"}),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.formats = parseFormats(formatsStr)
			if err := pipeline.ValidateFormats(opts.formats); err != nil {
				return err
			}
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			return c.runRender(cmd.Context(), input, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): pdf, png (comma-separated, default both)")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "Jane Q. Participant", "participant name")
	cmd.Flags().StringVar(&opts.number, "number", "PREVIEW-000000", "certificate number")
	cmd.Flags().IntVar(&opts.width, "width", 0, "PNG width in pixels (default: one pixel per canvas unit)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable caching")
	cmd.Flags().StringVar(&opts.saveConfig, "save-config", "", "write the resolved layout to this file (.json or .yaml)")
	opts.event.register(cmd)

	return cmd
}

func (c *CLI) runRender(ctx context.Context, input string, opts *renderOpts) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	m, err := loadLayout(input)
	if err != nil {
		return err
	}
	logger := loggerFromContext(ctx)
	logger.Debug("layout resolved", "canvas", fmt.Sprintf("%gx%g", m.Canvas.Width, m.Canvas.Height), "images", len(m.ImageURLs()))
	ev, err := opts.event.event()
	if err != nil {
		return err
	}
	if opts.saveConfig != "" {
		if err := saveLayout(opts.saveConfig, m); err != nil {
			return err
		}
		printFile(opts.saveConfig)
	}

	runner, _, err := c.newRunner(ctx, cfg, opts.noCache, true)
	if err != nil {
		return err
	}
	defer runner.Close()

	width := opts.width
	if width == 0 {
		width = cfg.Render.Width
	}

	res, err := spin(ctx, "Rendering certificate...", func(*spinner) (*pipeline.Result, error) {
		return runner.Execute(ctx, m, scene.Data{
			ParticipantName: opts.name,
			Number:          opts.number,
			Vars:            varsFor(ev),
		}, pipeline.Options{
			Formats: opts.formats,
			Width:   width,
			Cached:  !opts.noCache,
			Logger:  c.Logger,
		})
	})
	if err != nil {
		return err
	}

	base := basePath(opts.output, input)
	for _, format := range opts.formats {
		path := base + "." + format
		if len(opts.formats) == 1 && opts.output != "" {
			path = opts.output
		}
		if err := os.WriteFile(path, res.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		printFile(path)
	}
	printStats(len(res.Degraded), res.CacheInfo.RenderHit, res.Stats.ResolveTime+res.Stats.ComposeTime+res.Stats.RenderTime)
	for _, d := range res.Degraded {
		printWarning("%v", d)
	}
	return nil
}

// basePath derives the base output path. An output with a format
// extension loses it; no output falls back to the layout file's stem, or
// "certificate".
func basePath(output, input string) string {
	if output == "" {
		if input == "" {
			return "certificate"
		}
		return strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	ext := filepath.Ext(output)
	if pipeline.ValidFormats[strings.TrimPrefix(ext, ".")] {
		return strings.TrimSuffix(output, ext)
	}
	return output
}

// saveLayout writes m in the format the path's extension names.
func saveLayout(path string, m layout.Model) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(m)
	default:
		data, err = json.MarshalIndent(m, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
