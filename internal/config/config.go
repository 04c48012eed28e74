// Package config loads argflow settings from a YAML file, a .env file and
// ARGFLOW_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFilename is read from the working directory when no config file
// is named.
const DefaultFilename = "argflow.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARGFLOW_"

// Config holds every setting of the CLI and the MCP server.
type Config struct {
	ResourceDir string      `yaml:"resource_dir" validate:"required"`
	IndexDir    string      `yaml:"index_dir"`
	CacheSize   int         `yaml:"cache_size" validate:"gte=1"`
	Prune       PruneConfig `yaml:"prune"`
	Log         LogConfig   `yaml:"log"`
	Watch       WatchConfig `yaml:"watch"`
}

// PruneConfig holds the limits used when a prune request omits them.
type PruneConfig struct {
	Limit      int `yaml:"limit" validate:"gte=0"`
	LayerLimit int `yaml:"layer_limit" validate:"gte=0"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// WatchConfig controls the resource watcher of the serve command.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce" validate:"gt=0"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		ResourceDir: "resources",
		CacheSize:   64,
		Prune:       PruneConfig{Limit: 20, LayerLimit: 5},
		Log:         LogConfig{Level: "info", Format: "text"},
		Watch:       WatchConfig{Debounce: 2 * time.Second},
	}
}

// Load reads the settings. An empty path reads DefaultFilename when it
// exists; a named file must exist. A .env file in the working directory is
// loaded into the environment first, without replacing variables that are
// already set.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	required := path != ""
	if path == "" {
		path = DefaultFilename
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !required:
	case err != nil:
		return nil, fmt.Errorf("reading config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	if cfg.IndexDir == "" {
		cfg.IndexDir = filepath.Join(cfg.ResourceDir, ".argflow", "index")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}

	str("RESOURCE_DIR", &c.ResourceDir)
	str("INDEX_DIR", &c.IndexDir)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)

	if err := num("CACHE_SIZE", &c.CacheSize); err != nil {
		return err
	}
	if err := num("PRUNE_LIMIT", &c.Prune.Limit); err != nil {
		return err
	}
	if err := num("PRUNE_LAYER_LIMIT", &c.Prune.LayerLimit); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "WATCH"); ok && strings.TrimSpace(v) != "" {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sWATCH: %w", EnvPrefix, err)
		}
		c.Watch.Enabled = enabled
	}
	if v, ok := lookup(EnvPrefix + "WATCH_DEBOUNCE"); ok && strings.TrimSpace(v) != "" {
		d, err := time.ParseDuration(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%sWATCH_DEBOUNCE: %w", EnvPrefix, err)
		}
		c.Watch.Debounce = d
	}
	return nil
}
