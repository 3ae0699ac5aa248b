package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/certforge/internal/config"
	"github.com/matzehuels/certforge/pkg/assets"
	"github.com/matzehuels/certforge/pkg/blob"
	"github.com/matzehuels/certforge/pkg/cache"
	"github.com/matzehuels/certforge/pkg/httputil"
	"github.com/matzehuels/certforge/pkg/layout"
	"github.com/matzehuels/certforge/pkg/orchestrator"
	"github.com/matzehuels/certforge/pkg/pipeline"
	"github.com/matzehuels/certforge/pkg/store"
	"github.com/matzehuels/certforge/pkg/store/mongo"
	"github.com/matzehuels/certforge/pkg/store/sqlite"
)

// env is everything a command needs to issue certificates. Close
// releases it.
type env struct {
	cfg    *config.Config
	store  store.Store
	blobs  blob.Store
	runner *pipeline.Runner
	orch   *orchestrator.Orchestrator
}

func configPathsHint() []string {
	return config.Paths()
}

// loadConfig reads the --config file, the default locations and the
// environment.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.configPath != "" {
		c.Logger.Debug("loaded config", "path", c.configPath)
	}
	return cfg, nil
}

// newRunner creates a pipeline runner with the configured asset cache.
// localFiles lets layouts reference file:// assets.
func (c *CLI) newRunner(ctx context.Context, cfg *config.Config, noCache, localFiles bool) (*pipeline.Runner, cache.Cache, error) {
	ac, err := newCache(ctx, cfg, noCache)
	if err != nil {
		return nil, nil, err
	}
	resolver := assets.NewResolver(assets.Options{
		Fetcher:     httputil.NewFetcher(cfg.Assets.Timeout.Std()),
		Cache:       ac,
		CacheTTL:    cfg.Assets.CacheTTL.Std(),
		FontSources: cfg.Assets.FontSources,
		Concurrency: cfg.Assets.Concurrency,
		AllowFile:   localFiles,
		Logger:      c.Logger,
	})
	return pipeline.NewRunner(resolver, ac, c.Logger), ac, nil
}

func newCache(ctx context.Context, cfg *config.Config, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.Nop(), nil
	}
	switch cfg.Assets.Cache {
	case config.CacheRedis:
		rc, err := cache.NewRedisCache(ctx, cfg.Assets.RedisAddr, cfg.Assets.RedisPassword, cfg.Assets.RedisDB)
		if err != nil {
			return nil, err
		}
		return rc, nil
	case config.CacheNone:
		return cache.Nop(), nil
	}
	dir := cfg.Assets.CacheDir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			return cache.Nop(), nil
		}
		dir = d
	}
	fc, err := cache.NewFileCache(dir)
	if err != nil {
		return nil, err
	}
	return fc, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *log.Logger) (store.Store, error) {
	if cfg.Database.Driver == config.DriverMongo {
		st, err := mongo.Open(ctx, cfg.Database.URI, cfg.Database.Name, logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	}
	st, err := sqlite.Open(cfg.Database.Path, logger)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// openEnv wires the store, blob store, asset cache and orchestrator
// described by cfg. Only commands run by the operator pass localFiles.
func (c *CLI) openEnv(ctx context.Context, cfg *config.Config, localFiles bool) (*env, error) {
	e := &env{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	var err error
	if e.store, err = openStore(ctx, cfg, named(c.Logger, "store")); err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Database.Driver, err)
	}
	if e.blobs, err = blob.Open(ctx, cfg.Blob.URL, named(c.Logger, "blob")); err != nil {
		return nil, err
	}
	if e.runner, _, err = c.newRunner(ctx, cfg, false, localFiles); err != nil {
		return nil, fmt.Errorf("open asset cache: %w", err)
	}
	e.orch = orchestrator.New(e.store, e.blobs, e.runner, orchestrator.Options{
		Owner:         cfg.Server.Owner,
		DefaultPrefix: cfg.Numbering.DefaultPrefix,
		RasterWidth:   cfg.Render.Width,
		Logger:        named(c.Logger, "orchestrator"),
	})
	ok = true
	return e, nil
}

// Close releases everything openEnv opened.
func (e *env) Close() error {
	var errs []error
	if e.runner != nil {
		errs = append(errs, e.runner.Close())
	}
	if e.blobs != nil {
		errs = append(errs, e.blobs.Close())
	}
	if e.store != nil {
		errs = append(errs, e.store.Close())
	}
	return errors.Join(errs...)
}

// loadLayout reads a layout config. YAML is chosen by extension, anything
// else is read as JSON. An empty path yields the default layout.
func loadLayout(path string) (layout.Model, error) {
	if path == "" {
		return layout.Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return layout.Model{}, fmt.Errorf("read layout: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return layout.ResolveYAML(data), nil
	default:
		return layout.ResolveJSON(data), nil
	}
}
