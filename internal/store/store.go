// Package store implements assetsync.CacheStore backends.
//
// Three backends share the same contract (atomic Put per record, full-scan GetAll, Delete for
// the prune pass):
// - LocalStore: JSON index plus content-addressed zstd objects on the filesystem
// - SQLiteStore: a single SQLite table keyed by name
// - Memory: a process-local map, for tests and dry runs
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/aweris/assetsync"
)

// Store is a CacheStore that supports deletion and releases resources on Close.
type Store interface {
	assetsync.CacheStore
	assetsync.RecordDeleter
	Close() error
}

// Drivers accepted by Open.
const (
	DriverLocal  = "local"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Driver             string
	Path               string
	CacheSize          int
	CompressionEnabled bool
	CompressionLevel   int
}

// Open builds the backend named by cfg.Driver.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case DriverLocal, "":
		return NewLocalStore(cfg.Path, LocalOptions{
			CacheSize:          cfg.CacheSize,
			CompressionEnabled: cfg.CompressionEnabled,
			CompressionLevel:   cfg.CompressionLevel,
		})
	case DriverSQLite:
		return OpenSQLite(cfg.Path)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

func checkRecord(rec assetsync.CacheRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("record name required")
	}
	return nil
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func cloneRecord(rec assetsync.CacheRecord) assetsync.CacheRecord {
	if rec.HasContent {
		content := make([]byte, len(rec.Content))
		copy(content, rec.Content)
		rec.Content = content
	} else {
		rec.Content = nil
	}
	return rec
}
