package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aweris/assetsync"
	"github.com/aweris/assetsync/internal/compression"
	"go.trai.ch/zerr"
)

// LocalStore implements Store on the local filesystem.
//
// Storage layout:
//
//	basePath/
//	  index.json           (name -> hash, size, object)
//	  objects/
//	    ab/cd123...        (content-addressed, optionally zstd-compressed)
//
// Objects are written before the index that references them, and both are
// replaced through a temp file and rename, so a crash never leaves a record
// pointing at half-written content.
type LocalStore struct {
	basePath   string
	cache      Cache
	compressor *compression.Compressor

	mu    sync.RWMutex
	index map[string]indexEntry
}

// LocalOptions configures a LocalStore.
type LocalOptions struct {
	CacheSize          int
	CompressionEnabled bool
	CompressionLevel   int
}

type indexEntry struct {
	Hash   string `json:"hash"`
	Size   int64  `json:"size"`
	Object string `json:"object,omitempty"`
}

type indexFile struct {
	Version int                   `json:"version"`
	Records map[string]indexEntry `json:"records"`
}

const indexVersion = 1

// NewLocalStore opens or creates a store rooted at basePath.
func NewLocalStore(basePath string, opts LocalOptions) (*LocalStore, error) {
	if basePath == "" {
		return nil, errors.New("store path required")
	}
	basePath = expandPath(basePath)

	if err := os.MkdirAll(filepath.Join(basePath, "objects"), 0o755); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to create store directory"), "path", basePath)
	}

	compressor, err := compression.NewCompressor(opts.CompressionLevel, opts.CompressionEnabled)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create compressor")
	}

	cache, err := NewLRUCache(opts.CacheSize)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create object cache")
	}

	s := &LocalStore{
		basePath:   basePath,
		cache:      cache,
		compressor: compressor,
		index:      make(map[string]indexEntry),
	}
	if err := s.loadIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the store root.
func (s *LocalStore) Path() string { return s.basePath }

// GetAll returns every record sorted by name. A record whose object is missing
// or unreadable is returned without content so the next pass downloads it again.
func (s *LocalStore) GetAll(ctx context.Context) ([]assetsync.CacheRecord, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.index))
	for name := range s.index {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]assetsync.CacheRecord, 0, len(names))
	for _, name := range names {
		entry := s.index[name]
		rec := assetsync.CacheRecord{Name: name, Hash: entry.Hash, Size: entry.Size}
		if entry.Object != "" {
			if data, err := s.readObject(entry.Object); err == nil {
				rec.Content = data
				rec.HasContent = true
			}
		}
		out = append(out, rec)
	}
	return out, nil
}

// Put writes the record's content object, then swaps the index.
func (s *LocalStore) Put(ctx context.Context, rec assetsync.CacheRecord) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err := checkRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry := indexEntry{Hash: rec.Hash, Size: rec.Size}
	if rec.HasContent {
		object, err := s.writeObject(rec.Content)
		if err != nil {
			return zerr.With(err, "resource", rec.Name)
		}
		entry.Object = object
	}

	prev, existed := s.index[rec.Name]
	s.index[rec.Name] = entry
	if err := s.saveIndex(); err != nil {
		if existed {
			s.index[rec.Name] = prev
		} else {
			delete(s.index, rec.Name)
		}
		return zerr.With(err, "resource", rec.Name)
	}

	if existed && prev.Object != "" && prev.Object != entry.Object {
		s.releaseObject(prev.Object)
	}
	return nil
}

// Delete removes the record for name and its object when no other record uses it.
func (s *LocalStore) Delete(ctx context.Context, name string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.index[name]
	if !ok {
		return nil
	}
	delete(s.index, name)
	if err := s.saveIndex(); err != nil {
		s.index[name] = prev
		return zerr.With(err, "resource", name)
	}
	if prev.Object != "" {
		s.releaseObject(prev.Object)
	}
	return nil
}

// Close releases the compressor.
func (s *LocalStore) Close() error {
	s.cache.Clear()
	return s.compressor.Close()
}

func (s *LocalStore) loadIndex() error {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return zerr.Wrap(err, "failed to read store index")
	}
	if len(data) == 0 {
		return nil
	}

	var idx indexFile
	if err := json.Unmarshal(data, &idx); err != nil {
		return zerr.Wrap(err, "failed to parse store index")
	}
	if idx.Version != indexVersion {
		return zerr.With(errors.New("unsupported store index version"), "version", idx.Version)
	}
	if idx.Records != nil {
		s.index = idx.Records
	}
	return nil
}

// saveIndex must be called with s.mu held.
func (s *LocalStore) saveIndex() error {
	data, err := json.MarshalIndent(indexFile{Version: indexVersion, Records: s.index}, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "failed to marshal store index")
	}
	if err := writeFileAtomic(s.indexPath(), data); err != nil {
		return zerr.Wrap(err, "failed to write store index")
	}
	return nil
}

// writeObject stores content under its SHA-256 and returns the object key.
// An existing object is reused only if it still reads back intact.
// Must be called with s.mu held.
func (s *LocalStore) writeObject(content []byte) (string, error) {
	key := assetsync.ContentHash(content)
	path := s.objectPath(key)
	if _, err := os.Stat(path); err == nil {
		if _, err := s.readObject(key); err == nil {
			return key, nil
		}
	}

	compressed, err := s.compressor.Compress(content)
	if err != nil {
		return "", zerr.Wrap(err, "failed to compress object")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", zerr.Wrap(err, "failed to create object directory")
	}
	if err := writeFileAtomic(path, compressed); err != nil {
		return "", zerr.Wrap(err, "failed to write object")
	}

	s.cache.Add(key, content)
	return key, nil
}

func (s *LocalStore) readObject(key string) ([]byte, error) {
	if data, ok := s.cache.Get(key); ok {
		return data, nil
	}

	raw, err := os.ReadFile(s.objectPath(key))
	if err != nil {
		return nil, err
	}
	// Objects that did not shrink are stored raw, even when they start with a zstd frame.
	data := raw
	if assetsync.ContentHash(raw) != key {
		data, err = s.compressor.Decompress(raw)
		if err != nil {
			return nil, err
		}
		if assetsync.ContentHash(data) != key {
			return nil, fmt.Errorf("object %s is corrupt", key)
		}
	}

	s.cache.Add(key, data)
	return data, nil
}

// releaseObject removes key from disk unless another record references it.
// Must be called with s.mu held.
func (s *LocalStore) releaseObject(key string) {
	for _, e := range s.index {
		if e.Object == key {
			return
		}
	}
	s.cache.Remove(key)
	_ = os.Remove(s.objectPath(key))
}

func (s *LocalStore) indexPath() string {
	return filepath.Join(s.basePath, "index.json")
}

// objectPath returns the filesystem path for an object key.
// Git-style sharding: objects/ab/cd123...
func (s *LocalStore) objectPath(key string) string {
	if len(key) < 4 {
		return filepath.Join(s.basePath, "objects", key)
	}
	return filepath.Join(s.basePath, "objects", key[:2], key[2:])
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
