// Package config loads assetsync settings from YAML, environment and flags through viper.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aweris/assetsync"
	"github.com/spf13/viper"
	"go.trai.ch/zerr"
)

// EnvPrefix prefixes every environment override, e.g. ASSETSYNC_REMOTE_URL.
const EnvPrefix = "ASSETSYNC"

// Config is the full settings tree.
type Config struct {
	Remote Remote `mapstructure:"remote"`
	Store  Store  `mapstructure:"store"`
	Sync   Sync   `mapstructure:"sync"`
	Serve  Serve  `mapstructure:"serve"`
	Log    Log    `mapstructure:"log"`
}

// Remote selects where manifests and content come from.
type Remote struct {
	Kind    string        `mapstructure:"kind"`
	URL     string        `mapstructure:"url"`
	Ref     string        `mapstructure:"ref"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   Retry         `mapstructure:"retry"`
}

// Retry bounds remote retries.
type Retry struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
	MaxDelay time.Duration `mapstructure:"max_delay"`
}

// Store selects the local cache backend.
type Store struct {
	Driver      string      `mapstructure:"driver"`
	Path        string      `mapstructure:"path"`
	CacheSize   int         `mapstructure:"cache_size"`
	Compression Compression `mapstructure:"compression"`
}

// Compression configures zstd for the local backend.
type Compression struct {
	Enabled bool `mapstructure:"enabled"`
	Level   int  `mapstructure:"level"`
}

// Sync tunes a synchronization pass.
type Sync struct {
	Concurrency int    `mapstructure:"concurrency"`
	Verify      string `mapstructure:"verify"`
	Prune       bool   `mapstructure:"prune"`
}

// Serve configures the development asset server.
type Serve struct {
	Listen     string   `mapstructure:"listen"`
	Dir        string   `mapstructure:"dir"`
	Extensions []string `mapstructure:"extensions"`
}

// Log configures the logrus logger.
type Log struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	Compress   bool   `mapstructure:"compress"`
}

// SetDefaults registers every key so environment overrides resolve.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("remote.kind", "http")
	v.SetDefault("remote.url", "http://127.0.0.1:8080/api")
	v.SetDefault("remote.ref", "")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.retry.attempts", 3)
	v.SetDefault("remote.retry.delay", "500ms")
	v.SetDefault("remote.retry.max_delay", "5s")

	v.SetDefault("store.driver", "local")
	v.SetDefault("store.path", DefaultDataDir())
	v.SetDefault("store.cache_size", 128)
	v.SetDefault("store.compression.enabled", true)
	v.SetDefault("store.compression.level", 2)

	v.SetDefault("sync.concurrency", assetsync.DefaultConcurrency)
	v.SetDefault("sync.verify", string(assetsync.VerifySize))
	v.SetDefault("sync.prune", false)

	v.SetDefault("serve.listen", "127.0.0.1:8080")
	v.SetDefault("serve.dir", "dist")
	v.SetDefault("serve.extensions", []string{".dac"})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 10)
	v.SetDefault("log.compress", true)
}

// New returns a viper instance with defaults and environment overrides wired.
func New() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// ReadFile points v at path, or at config.yaml in DefaultConfigDir when path
// is empty. A missing default file is not an error.
func ReadFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return zerr.With(zerr.Wrap(err, "failed to read config"), "path", path)
	}
	return nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, zerr.Wrap(err, "failed to decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Remote.Kind) {
	case "http":
		if c.Remote.URL == "" {
			return invalid("remote.url", "required for http remote")
		}
	case "oci":
		if c.Remote.Ref == "" {
			return invalid("remote.ref", "required for oci remote")
		}
	default:
		return invalid("remote.kind", "must be http or oci")
	}
	if c.Remote.Timeout < 0 {
		return invalid("remote.timeout", "must not be negative")
	}
	if c.Remote.Retry.Attempts < 1 {
		return invalid("remote.retry.attempts", "must be at least 1")
	}

	switch strings.ToLower(c.Store.Driver) {
	case "local", "sqlite":
		if c.Store.Path == "" {
			return invalid("store.path", "required")
		}
	case "memory":
	default:
		return invalid("store.driver", "must be local, sqlite or memory")
	}
	if c.Store.Compression.Level < 0 || c.Store.Compression.Level > 3 {
		return invalid("store.compression.level", "must be between 0 and 3")
	}

	if c.Sync.Concurrency < 1 {
		return invalid("sync.concurrency", "must be at least 1")
	}
	if _, err := assetsync.ParseVerification(c.Sync.Verify); err != nil {
		return invalid("sync.verify", "must be none, size or digest")
	}

	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return invalid("log.format", "must be text or json")
	}
	return nil
}

func invalid(key, reason string) error {
	return zerr.With(zerr.Wrap(ErrInvalidConfig, key+" "+reason), "key", key)
}

// ErrInvalidConfig marks a setting that failed validation.
var ErrInvalidConfig = zerr.New("invalid config")

// DefaultConfigDir returns $XDG_CONFIG_HOME/assetsync or its fallback.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "assetsync")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "assetsync")
	}
	return ".assetsync"
}

// DefaultDataDir returns $XDG_DATA_HOME/assetsync or its fallback.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "assetsync")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "assetsync")
	}
	return ".assetsync"
}
