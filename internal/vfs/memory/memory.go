// Package memory implements the in-memory storage backend. It is the
// fallback substituted when the durable backend becomes unreachable, and the
// primary backend when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/muzaffar401/IDE/internal/vfs"
)

type entry struct {
	rec vfs.FileRecord
	seq int64 // insertion order, stable across rename
}

// Backend stores records in a map keyed by path.
type Backend struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSeq int64
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{entries: make(map[string]*entry)}
}

func (b *Backend) Name() string { return "memory" }

func (b *Backend) Ping(ctx context.Context) error { return nil }

func (b *Backend) Close() error { return nil }

func (b *Backend) List(ctx context.Context) ([]*vfs.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	recs := make([]*vfs.FileRecord, 0, len(b.entries))
	for _, e := range b.entries {
		recs = append(recs, e.rec.Clone())
	}
	return recs, nil
}

func (b *Backend) Get(ctx context.Context, path string) (*vfs.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, vfs.ErrNotFound)
	}
	return e.rec.Clone(), nil
}

func (b *Backend) Create(ctx context.Context, rec *vfs.FileRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[rec.Path]; ok {
		return fmt.Errorf("%s: %w", rec.Path, vfs.ErrConflict)
	}
	b.nextSeq++
	b.entries[rec.Path] = &entry{rec: *rec.Clone(), seq: b.nextSeq}
	return nil
}

func (b *Backend) Update(ctx context.Context, path string, upd vfs.Update) (*vfs.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[path]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, vfs.ErrNotFound)
	}
	if upd.Content != nil && e.rec.IsDirectory {
		return nil, fmt.Errorf("%w: directory %s has no content", vfs.ErrInvalidInput, path)
	}
	if upd.Name != nil {
		e.rec.Name = *upd.Name
	}
	if upd.Content != nil {
		content := *upd.Content
		e.rec.Content = &content
	}
	e.rec.UpdatedAt = time.Now().UTC()
	return e.rec.Clone(), nil
}

func (b *Backend) Delete(ctx context.Context, path string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[path]
	if !ok {
		return 0, fmt.Errorf("%s: %w", path, vfs.ErrNotFound)
	}

	removed := 0
	if e.rec.IsDirectory {
		for p, child := range b.entries {
			if isDescendant(&child.rec, path) {
				delete(b.entries, p)
				removed++
			}
		}
	}
	delete(b.entries, path)
	return removed + 1, nil
}

func (b *Backend) Rename(ctx context.Context, oldPath, newPath string) (*vfs.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.entries[oldPath]
	if !ok {
		return nil, fmt.Errorf("%s: %w", oldPath, vfs.ErrNotFound)
	}
	if _, ok := b.entries[newPath]; ok {
		return nil, fmt.Errorf("%s: %w", newPath, vfs.ErrConflict)
	}

	now := time.Now().UTC()

	if e.rec.IsDirectory {
		// Collect first: mutating the map while ranging over it would skip
		// or revisit entries.
		var moved []*entry
		for p, child := range b.entries {
			if isDescendant(&child.rec, oldPath) {
				delete(b.entries, p)
				moved = append(moved, child)
			}
		}
		for _, child := range moved {
			// Anchored substitution: replace exactly the leading prefix.
			child.rec.Path = newPath + child.rec.Path[len(oldPath):]
			if child.rec.ParentPath != nil {
				pp := *child.rec.ParentPath
				if pp == oldPath {
					pp = newPath
				} else {
					pp = newPath + pp[len(oldPath):]
				}
				child.rec.ParentPath = &pp
			}
			child.rec.UpdatedAt = now
			b.entries[child.rec.Path] = child
		}
	}

	delete(b.entries, oldPath)
	e.rec.Path = newPath
	e.rec.Name = basename(newPath)
	parent := parentOf(newPath)
	if e.rec.ParentPath != nil || parent != "/" {
		e.rec.ParentPath = &parent
	}
	e.rec.UpdatedAt = now
	b.entries[newPath] = e

	return e.rec.Clone(), nil
}

func (b *Backend) Search(ctx context.Context, query string) ([]*vfs.FileRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	q := strings.ToLower(query)
	var matched []*entry
	for _, e := range b.entries {
		if strings.Contains(strings.ToLower(e.rec.Name), q) {
			matched = append(matched, e)
			continue
		}
		if !e.rec.IsDirectory && e.rec.Content != nil &&
			strings.Contains(strings.ToLower(*e.rec.Content), q) {
			matched = append(matched, e)
		}
	}

	// Insertion order keeps results deterministic.
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	recs := make([]*vfs.FileRecord, len(matched))
	for i, e := range matched {
		recs[i] = e.rec.Clone()
	}
	return recs, nil
}

// isDescendant matches the cascade set: direct children by parent path plus
// anchored path prefix (never a substring match mid-path).
func isDescendant(rec *vfs.FileRecord, dir string) bool {
	if rec.ParentPath != nil && *rec.ParentPath == dir {
		return true
	}
	return strings.HasPrefix(rec.Path, dir+"/")
}

func basename(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func parentOf(path string) string {
	i := strings.LastIndex(path, "/")
	if i <= 0 {
		return "/"
	}
	return path[:i]
}
