// Package config loads certforge settings.
//
// Settings come from three layers, later ones winning: built-in defaults,
// a TOML file, and CERTFORGE_* environment variables. Nested keys map to
// underscored variable names, so [server] addr becomes
// CERTFORGE_SERVER_ADDR.
//
//	[server]
//	addr = ":8080"
//	shutdown_timeout = "15s"
//
//	[database]
//	driver = "sqlite"
//	path = "/var/lib/certforge/certforge.db"
//
//	[blob]
//	url = "s3://certificates/issued?region=eu-west-1"
//
//	[assets]
//	cache = "redis"
//	redis_addr = "localhost:6379"
//
//	[assets.font_sources]
//	"Great Vibes" = "https://fonts.example.com/GreatVibes-Regular.ttf"
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "CERTFORGE"

// FileName is the config file looked up in the default locations.
const FileName = "certforge.toml"

// Database drivers.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Asset cache backends.
const (
	CacheFile  = "file"
	CacheRedis = "redis"
	CacheNone  = "none"
)

// Duration is a time.Duration written as "30s" or "5m" in files and
// environment variables.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every setting.
type Config struct {
	Server    Server    `toml:"server"    envconfig:"SERVER"`
	Database  Database  `toml:"database"  envconfig:"DATABASE"`
	Blob      Blob      `toml:"blob"      envconfig:"BLOB"`
	Assets    Assets    `toml:"assets"    envconfig:"ASSETS"`
	Render    Render    `toml:"render"    envconfig:"RENDER"`
	Numbering Numbering `toml:"numbering" envconfig:"NUMBERING"`
}

// Server configures the HTTP API.
type Server struct {
	Addr            string   `toml:"addr"             envconfig:"ADDR"`
	ShutdownTimeout Duration `toml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	ReadTimeout     Duration `toml:"read_timeout"     envconfig:"READ_TIMEOUT"`
	// Owner names this instance in generation claims. Empty picks a
	// random id at startup.
	Owner string `toml:"owner" envconfig:"OWNER"`
}

// Database selects the certificate record store.
type Database struct {
	Driver string `toml:"driver" envconfig:"DRIVER"`
	// Path is the SQLite file. Empty keeps records in memory.
	Path string `toml:"path" envconfig:"PATH"`
	// URI and Name locate the MongoDB database.
	URI  string `toml:"uri"  envconfig:"URI"`
	Name string `toml:"name" envconfig:"NAME"`
}

// Blob selects the artifact store by URL.
type Blob struct {
	URL string `toml:"url" envconfig:"URL"`
}

// Assets configures font and image fetching.
type Assets struct {
	Timeout       Duration          `toml:"timeout"        envconfig:"TIMEOUT"`
	Concurrency   int               `toml:"concurrency"    envconfig:"CONCURRENCY"`
	Cache         string            `toml:"cache"          envconfig:"CACHE"`
	CacheDir      string            `toml:"cache_dir"      envconfig:"CACHE_DIR"`
	CacheTTL      Duration          `toml:"cache_ttl"      envconfig:"CACHE_TTL"`
	RedisAddr     string            `toml:"redis_addr"     envconfig:"REDIS_ADDR"`
	RedisPassword string            `toml:"redis_password" envconfig:"REDIS_PASSWORD"`
	RedisDB       int               `toml:"redis_db"       envconfig:"REDIS_DB"`
	FontSources   map[string]string `toml:"font_sources"   envconfig:"FONT_SOURCES"`
}

// Render configures artifact output.
type Render struct {
	// Width is the PNG width in pixels. Zero renders one pixel per canvas
	// unit.
	Width int `toml:"width" envconfig:"WIDTH"`
}

// Numbering configures certificate numbers.
type Numbering struct {
	DefaultPrefix string `toml:"default_prefix" envconfig:"DEFAULT_PREFIX"`
}

// Default returns the built-in settings: an in-memory deployment
// listening on :8080.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:            ":8080",
			ShutdownTimeout: Duration(15 * time.Second),
			ReadTimeout:     Duration(30 * time.Second),
		},
		Database: Database{
			Driver: DriverSQLite,
			Name:   "certforge",
		},
		Blob: Blob{URL: "memory://"},
		Assets: Assets{
			Timeout:     Duration(10 * time.Second),
			Concurrency: 8,
			Cache:       CacheFile,
			CacheTTL:    Duration(7 * 24 * time.Hour),
		},
	}
}

// Load builds the configuration. An empty path searches the default
// locations and falls back to defaults when no file exists; an explicit
// path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = findFile()
	}
	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// Paths returns the locations searched for a config file, in order.
func Paths() []string {
	var paths []string
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "certforge", FileName))
	}
	return append(paths, filepath.Join("/etc/certforge", FileName))
}

func findFile() string {
	for _, p := range Paths() {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks enumerated settings and required values.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverMongo:
		if c.Database.URI == "" {
			problems = append(problems, "database.uri is required for mongo")
		}
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q must be sqlite or mongo", c.Database.Driver))
	}
	if c.Blob.URL == "" {
		problems = append(problems, "blob.url is required")
	}
	switch c.Assets.Cache {
	case CacheFile, CacheNone:
	case CacheRedis:
		if c.Assets.RedisAddr == "" {
			problems = append(problems, "assets.redis_addr is required for the redis cache")
		}
	default:
		problems = append(problems, fmt.Sprintf("assets.cache %q must be file, redis or none", c.Assets.Cache))
	}
	if c.Render.Width < 0 {
		problems = append(problems, "render.width must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
