package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"github.com/aweris/assetsync"
	_ "github.com/mattn/go-sqlite3"
	"go.trai.ch/zerr"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS resources (
	name    TEXT PRIMARY KEY,
	hash    TEXT NOT NULL,
	size    INTEGER NOT NULL,
	content BLOB
)`

// SQLiteStore keeps records in a single SQLite table. A NULL content column
// marks a placeholder.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("store path required")
	}
	path = expandPath(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to create store directory"), "path", dir)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to open sqlite store"), "path", path)
	}
	// Serializes writers; database/sql would otherwise race the file lock.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, zerr.With(zerr.Wrap(err, "failed to create schema"), "path", path)
	}
	return &SQLiteStore{db: db}, nil
}

// GetAll returns every record ordered by name.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]assetsync.CacheRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, hash, size, content IS NOT NULL, content FROM resources ORDER BY name`)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to query resources")
	}
	defer rows.Close()

	var out []assetsync.CacheRecord
	for rows.Next() {
		var (
			rec     assetsync.CacheRecord
			content []byte
		)
		if err := rows.Scan(&rec.Name, &rec.Hash, &rec.Size, &rec.HasContent, &content); err != nil {
			return nil, zerr.Wrap(err, "failed to scan resource")
		}
		if rec.HasContent {
			if content == nil {
				content = []byte{}
			}
			rec.Content = content
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, zerr.Wrap(err, "failed to read resources")
	}
	return out, nil
}

// Put upserts rec in one statement.
func (s *SQLiteStore) Put(ctx context.Context, rec assetsync.CacheRecord) error {
	if err := checkRecord(rec); err != nil {
		return err
	}

	var content any
	if rec.HasContent {
		c := rec.Content
		if c == nil {
			c = []byte{}
		}
		content = c
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO resources (name, hash, size, content) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET hash = excluded.hash, size = excluded.size, content = excluded.content`,
		rec.Name, rec.Hash, rec.Size, content)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to upsert resource"), "resource", rec.Name)
	}
	return nil
}

// Delete removes the record for name.
func (s *SQLiteStore) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE name = ?`, name); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to delete resource"), "resource", name)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
