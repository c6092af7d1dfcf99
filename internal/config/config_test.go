package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	v := New()
	require.NoError(t, ReadFile(v, ""))

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Remote.Kind)
	assert.Equal(t, "http://127.0.0.1:8080/api", cfg.Remote.URL)
	assert.Equal(t, 30*time.Second, cfg.Remote.Timeout)
	assert.Equal(t, 3, cfg.Remote.Retry.Attempts)
	assert.Equal(t, 500*time.Millisecond, cfg.Remote.Retry.Delay)
	assert.Equal(t, "local", cfg.Store.Driver)
	assert.True(t, cfg.Store.Compression.Enabled)
	assert.Equal(t, 4, cfg.Sync.Concurrency)
	assert.Equal(t, "size", cfg.Sync.Verify)
	assert.False(t, cfg.Sync.Prune)
	assert.Equal(t, []string{".dac"}, cfg.Serve.Extensions)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Log.MaxSize)
	assert.Equal(t, 10, cfg.Log.MaxBackups)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
remote:
  kind: oci
  ref: localhost:5000/assets:dev
  retry:
    attempts: 5
    delay: 1s
store:
  driver: sqlite
  path: /tmp/assets.db
sync:
  concurrency: 8
  verify: digest
  prune: true
log:
  format: json
  file: /tmp/assetsync.log
`)

	v := New()
	require.NoError(t, ReadFile(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "oci", cfg.Remote.Kind)
	assert.Equal(t, "localhost:5000/assets:dev", cfg.Remote.Ref)
	assert.Equal(t, 5, cfg.Remote.Retry.Attempts)
	assert.Equal(t, time.Second, cfg.Remote.Retry.Delay)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/assets.db", cfg.Store.Path)
	assert.Equal(t, 8, cfg.Sync.Concurrency)
	assert.Equal(t, "digest", cfg.Sync.Verify)
	assert.True(t, cfg.Sync.Prune)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ASSETSYNC_SYNC_CONCURRENCY", "2")
	t.Setenv("ASSETSYNC_REMOTE_URL", "http://assets.internal/api")

	v := New()
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Sync.Concurrency)
	assert.Equal(t, "http://assets.internal/api", cfg.Remote.URL)
}

func TestReadFileMissingExplicitPath(t *testing.T) {
	v := New()
	assert.Error(t, ReadFile(v, filepath.Join(t.TempDir(), "missing.yaml")))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown remote kind", mutate: func(c *Config) { c.Remote.Kind = "ftp" }},
		{name: "http without url", mutate: func(c *Config) { c.Remote.URL = "" }},
		{name: "oci without ref", mutate: func(c *Config) { c.Remote.Kind = "oci" }},
		{name: "no attempts", mutate: func(c *Config) { c.Remote.Retry.Attempts = 0 }},
		{name: "unknown driver", mutate: func(c *Config) { c.Store.Driver = "redis" }},
		{name: "local without path", mutate: func(c *Config) { c.Store.Path = "" }},
		{name: "compression level", mutate: func(c *Config) { c.Store.Compression.Level = 9 }},
		{name: "zero concurrency", mutate: func(c *Config) { c.Sync.Concurrency = 0 }},
		{name: "unknown verify", mutate: func(c *Config) { c.Sync.Verify = "crc" }},
		{name: "unknown log format", mutate: func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(New())
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestMemoryDriverNeedsNoPath(t *testing.T) {
	cfg, err := Load(New())
	require.NoError(t, err)

	cfg.Store.Driver = "memory"
	cfg.Store.Path = ""
	assert.NoError(t, cfg.Validate())
}

func TestDefaultDirsFollowXDG(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	assert.Equal(t, filepath.Join("/xdg/config", "assetsync"), DefaultConfigDir())
	assert.Equal(t, filepath.Join("/xdg/data", "assetsync"), DefaultDataDir())
}
