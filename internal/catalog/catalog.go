// Package catalog builds a resource manifest from an asset directory.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/aweris/assetsync"
	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"
)

// DefaultExtensions lists the file extensions served when none are configured.
var DefaultExtensions = []string{".dac"}

// Entry is a scanned file: its descriptor and where it lives on disk.
type Entry struct {
	assetsync.ResourceDescriptor
	Path string
}

// Scan walks dir and hashes every regular file whose extension is in exts.
// Names are slash-separated paths relative to dir, sorted.
func Scan(ctx context.Context, dir string, exts []string) ([]Entry, error) {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	allowed := make(map[string]bool, len(exts))
	for _, ext := range exts {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		allowed[strings.ToLower(ext)] = true
	}

	var entries []Entry
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || !allowed[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			ResourceDescriptor: assetsync.ResourceDescriptor{Name: filepath.ToSlash(rel)},
			Path:               p,
		})
		return nil
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to scan directory"), "dir", dir)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range entries {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(entries[i].Path)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to read file"), "resource", entries[i].Name)
			}
			entries[i].Hash = assetsync.ContentHash(data)
			entries[i].Size = int64(len(data))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

// Descriptors strips the disk paths from entries.
func Descriptors(entries []Entry) []assetsync.ResourceDescriptor {
	out := make([]assetsync.ResourceDescriptor, len(entries))
	for i, e := range entries {
		out[i] = e.ResourceDescriptor
	}
	return out
}

// Resolve maps a resource name to a path under dir. Names that escape dir
// report assetsync.ErrResourceNotFound.
func Resolve(dir, name string) (string, error) {
	if name == "" || strings.Contains(name, "\\") || !fs.ValidPath(name) || path.Clean(name) != name {
		return "", zerr.With(zerr.Wrap(assetsync.ErrResourceNotFound, "invalid resource name"), "resource", name)
	}
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return "", zerr.With(zerr.Wrap(assetsync.ErrResourceNotFound, "invalid resource name"), "resource", name)
	}
	return filepath.Join(dir, local), nil
}

// Read returns the content of the named resource.
func Read(dir, name string) ([]byte, error) {
	p, err := Resolve(dir, name)
	if err != nil {
		return nil, err
	}
	// Scan does not follow symlinks, so neither does Read: every path element must be real.
	cur := dir
	parts := strings.Split(name, "/")
	for i, part := range parts {
		cur = filepath.Join(cur, part)
		info, err := os.Lstat(cur)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, zerr.With(zerr.Wrap(assetsync.ErrResourceNotFound, "resource missing"), "resource", name)
			}
			return nil, zerr.With(zerr.Wrap(err, "failed to stat resource"), "resource", name)
		}
		last := i == len(parts)-1
		if info.Mode()&fs.ModeSymlink != 0 || (last && !info.Mode().IsRegular()) || (!last && !info.IsDir()) {
			return nil, zerr.With(zerr.Wrap(assetsync.ErrResourceNotFound, "not a regular file"), "resource", name)
		}
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read resource"), "resource", name)
	}
	return data, nil
}

// Allowed reports whether name carries one of exts.
func Allowed(name string, exts []string) bool {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(path.Ext(name))
	for _, e := range exts {
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

func (e Entry) String() string {
	return fmt.Sprintf("%s (%d bytes, %s)", e.Name, e.Size, e.Hash)
}
