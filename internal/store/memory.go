package store

import (
	"context"
	"sort"
	"sync"

	"github.com/aweris/assetsync"
)

// Memory implements Store with a map. Records are copied on the way in and out.
type Memory struct {
	mu      sync.RWMutex
	records map[string]assetsync.CacheRecord
	writes  int
}

// NewMemory creates an empty Memory store.
func NewMemory(records ...assetsync.CacheRecord) *Memory {
	m := &Memory{records: make(map[string]assetsync.CacheRecord)}
	for _, rec := range records {
		m.records[rec.Name] = cloneRecord(rec)
	}
	return m
}

// GetAll returns every record sorted by name.
func (m *Memory) GetAll(ctx context.Context) ([]assetsync.CacheRecord, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]assetsync.CacheRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Get returns the record for name.
func (m *Memory) Get(name string) (assetsync.CacheRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[name]
	if !ok {
		return assetsync.CacheRecord{}, false
	}
	return cloneRecord(rec), true
}

// Put stores a copy of rec.
func (m *Memory) Put(ctx context.Context, rec assetsync.CacheRecord) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err := checkRecord(rec); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.Name] = cloneRecord(rec)
	m.writes++
	return nil
}

// Delete removes the record for name. Missing names are not an error.
func (m *Memory) Delete(ctx context.Context, name string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[name]; ok {
		delete(m.records, name)
		m.writes++
	}
	return nil
}

// Writes returns the number of mutations applied so far.
func (m *Memory) Writes() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.writes
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
