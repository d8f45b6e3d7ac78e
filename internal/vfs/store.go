package vfs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/muzaffar401/IDE/internal/logging"
	"github.com/muzaffar401/IDE/internal/metrics"
	"github.com/muzaffar401/IDE/internal/pathutil"
)

// Store is the authoritative owner of the record tree. It enforces the tree
// invariants, serializes structural mutations against readers, and performs
// the one-way switch to the fallback backend the first time the primary
// reports ErrStorageUnavailable.
type Store struct {
	mu       sync.RWMutex
	backend  Backend
	fallback func() Backend
	fellBack bool
}

// Open constructs a store over the primary backend. The primary is probed
// once; if it is unreachable the store starts directly on the fallback.
// A nil fallback disables failover (used when the primary is already the
// in-memory backend). The root record is created if absent.
func Open(ctx context.Context, primary Backend, fallback func() Backend) (*Store, error) {
	s := &Store{backend: primary, fallback: fallback}

	if fallback != nil {
		if err := primary.Ping(ctx); err != nil {
			if ferr := s.failoverLocked(ctx, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)); ferr != nil {
				return nil, ferr
			}
		}
	}

	if err := ensureRoot(ctx, s.backend); err != nil {
		if !errors.Is(err, ErrStorageUnavailable) {
			return nil, err
		}
		if ferr := s.failoverLocked(ctx, err); ferr != nil {
			return nil, ferr
		}
	}

	metrics.SetActiveBackend(s.backend.Name())
	return s, nil
}

func rootRecord() *FileRecord {
	now := time.Now().UTC()
	return &FileRecord{
		ID:          "root",
		Name:        "/",
		Path:        "/",
		IsDirectory: true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func ensureRoot(ctx context.Context, b Backend) error {
	_, err := b.Get(ctx, "/")
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := b.Create(ctx, rootRecord()); err != nil && !errors.Is(err, ErrConflict) {
		return err
	}
	return nil
}

// BackendName reports which backend is currently active.
func (s *Store) BackendName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.backend.Name()
}

// Close closes the active backend.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Close()
}

// failoverLocked swaps in the fallback backend exactly once. Caller must
// hold the write lock (or be the only goroutine, during Open).
func (s *Store) failoverLocked(ctx context.Context, cause error) error {
	if s.fellBack {
		return nil
	}
	if s.fallback == nil {
		return cause
	}

	logging.Warn("storage backend unavailable, switching to in-memory fallback",
		zap.String("backend", s.backend.Name()),
		zap.Error(cause))

	old := s.backend
	s.backend = s.fallback()
	s.fellBack = true
	s.fallback = nil
	old.Close()

	if err := ensureRoot(ctx, s.backend); err != nil {
		return err
	}

	metrics.RecordStorageFallback()
	metrics.SetActiveBackend(s.backend.Name())
	return nil
}

func (s *Store) failover(ctx context.Context, cause error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failoverLocked(ctx, cause)
}

// readOp runs fn under the read lock, retrying once on the fallback if the
// backend reports unavailability.
func (s *Store) readOp(ctx context.Context, op string, fn func(Backend) error) error {
	start := time.Now()

	s.mu.RLock()
	name := s.backend.Name()
	err := fn(s.backend)
	s.mu.RUnlock()

	if errors.Is(err, ErrStorageUnavailable) {
		if ferr := s.failover(ctx, err); ferr != nil {
			metrics.RecordStoreOp(op, name, time.Since(start), false)
			return ferr
		}
		s.mu.RLock()
		name = s.backend.Name()
		err = fn(s.backend)
		s.mu.RUnlock()
	}

	metrics.RecordStoreOp(op, name, time.Since(start), err == nil)
	return err
}

// writeOp runs fn under the write lock so cascades appear atomic to every
// reader, with the same single fallback retry as readOp.
func (s *Store) writeOp(ctx context.Context, op string, fn func(Backend) error) error {
	start := time.Now()

	s.mu.Lock()
	err := fn(s.backend)
	if errors.Is(err, ErrStorageUnavailable) {
		if ferr := s.failoverLocked(ctx, err); ferr != nil {
			err = ferr
		} else {
			err = fn(s.backend)
		}
	}
	name := s.backend.Name()
	s.mu.Unlock()

	metrics.RecordStoreOp(op, name, time.Since(start), err == nil)
	return err
}

// List returns every record, directories first, then locale-aware
// lexicographic by name within each group.
func (s *Store) List(ctx context.Context) ([]*FileRecord, error) {
	var recs []*FileRecord
	err := s.readOp(ctx, "list", func(b Backend) error {
		var err error
		recs, err = b.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	sortRecords(recs)
	metrics.SetStoreRecordCount(int64(len(recs)))
	return recs, nil
}

// Get returns the record at an exact path, or ErrNotFound.
func (s *Store) Get(ctx context.Context, path string) (*FileRecord, error) {
	path = pathutil.Normalize(path)
	var rec *FileRecord
	err := s.readOp(ctx, "get", func(b Backend) error {
		var err error
		rec, err = b.Get(ctx, path)
		return err
	})
	return rec, err
}

// Children returns the direct children of a directory, in List order. The
// legacy nil parentPath counts as a child of the root.
func (s *Store) Children(ctx context.Context, dir string) ([]*FileRecord, error) {
	dir = pathutil.Normalize(dir)
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var children []*FileRecord
	for _, rec := range all {
		if rec.IsChildOf(dir) {
			children = append(children, rec)
		}
	}
	return children, nil
}

// Create validates the spec, fills defaults (empty content for files, nil
// for directories, derived name and parent path) and inserts the record.
// The parent must be an existing directory; a nil ParentPath on a direct
// root child is preserved as the legacy root alias.
func (s *Store) Create(ctx context.Context, spec CreateSpec) (*FileRecord, error) {
	path := pathutil.Normalize(spec.Path)
	if path == "/" {
		return nil, fmt.Errorf("%w: root", ErrConflict)
	}
	if spec.IsDirectory && spec.Content != nil && *spec.Content != "" {
		return nil, fmt.Errorf("%w: directories have no content", ErrInvalidInput)
	}

	derivedParent := pathutil.ParentOf(path)
	var parentPath *string
	if spec.ParentPath != nil {
		pp := pathutil.Normalize(*spec.ParentPath)
		if pp != derivedParent {
			return nil, fmt.Errorf("%w: parentPath %q does not match path %q", ErrInvalidInput, pp, path)
		}
		parentPath = &pp
	} else if derivedParent != "/" {
		parentPath = &derivedParent
	}

	now := time.Now().UTC()
	rec := &FileRecord{
		ID:          newID(path),
		Name:        pathutil.Basename(path),
		Path:        path,
		IsDirectory: spec.IsDirectory,
		ParentPath:  parentPath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if !spec.IsDirectory {
		content := ""
		if spec.Content != nil {
			content = *spec.Content
		}
		rec.Content = &content
	}

	err := s.writeOp(ctx, "create", func(b Backend) error {
		if derivedParent != "/" {
			parent, err := b.Get(ctx, derivedParent)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("parent directory %s: %w", derivedParent, ErrNotFound)
				}
				return err
			}
			if !parent.IsDirectory {
				return fmt.Errorf("%w: parent %s is not a directory", ErrInvalidInput, derivedParent)
			}
		}
		return b.Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// Update applies a partial name/content change. Returns ErrNotFound if no
// record exists at path, ErrInvalidInput for content on a directory.
func (s *Store) Update(ctx context.Context, path string, upd Update) (*FileRecord, error) {
	path = pathutil.Normalize(path)
	var rec *FileRecord
	err := s.writeOp(ctx, "update", func(b Backend) error {
		var err error
		rec, err = b.Update(ctx, path, upd)
		return err
	})
	return rec, err
}

// Delete removes the record at path and, for directories, every descendant.
// Returns false (and no error) if the target does not exist.
func (s *Store) Delete(ctx context.Context, path string) (bool, error) {
	path = pathutil.Normalize(path)
	if path == "/" {
		return false, fmt.Errorf("%w: cannot delete root", ErrInvalidInput)
	}

	var removed int
	err := s.writeOp(ctx, "delete", func(b Backend) error {
		var err error
		removed, err = b.Delete(ctx, path)
		return err
	})
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return removed > 0, nil
}

// Rename moves oldPath to newPath, rewriting every descendant's path and
// parentPath with an anchored prefix substitution. The substitution replaces
// exactly the leading len(oldPath) bytes, so an unrelated recurrence of the
// old path deeper in a string is never touched.
func (s *Store) Rename(ctx context.Context, oldPath, newPath string) (*FileRecord, error) {
	oldPath = pathutil.Normalize(oldPath)
	newPath = pathutil.Normalize(newPath)

	if oldPath == "/" || newPath == "/" {
		return nil, fmt.Errorf("%w: cannot rename root", ErrInvalidInput)
	}
	if strings.HasPrefix(newPath, oldPath+"/") {
		return nil, fmt.Errorf("%w: cannot move %s inside itself", ErrInvalidInput, oldPath)
	}
	if oldPath == newPath {
		return s.Get(ctx, oldPath)
	}

	newParent := pathutil.ParentOf(newPath)
	var rec *FileRecord
	err := s.writeOp(ctx, "rename", func(b Backend) error {
		if newParent != "/" {
			parent, err := b.Get(ctx, newParent)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return fmt.Errorf("target directory %s: %w", newParent, ErrNotFound)
				}
				return err
			}
			if !parent.IsDirectory {
				return fmt.Errorf("%w: target parent %s is not a directory", ErrInvalidInput, newParent)
			}
		}
		var err error
		rec, err = b.Rename(ctx, oldPath, newPath)
		return err
	})
	return rec, err
}

// Search returns records whose name or (for files) content contains the
// query, case-insensitively, in the backend's deterministic storage order.
func (s *Store) Search(ctx context.Context, query string) ([]*FileRecord, error) {
	var recs []*FileRecord
	err := s.readOp(ctx, "search", func(b Backend) error {
		var err error
		recs, err = b.Search(ctx, query)
		return err
	})
	return recs, err
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	recs, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// sortRecords orders directories before files, then by name within each
// group using a locale-aware comparison. Collators are not safe for
// concurrent use, so each call builds its own.
func sortRecords(recs []*FileRecord) {
	c := collate.New(language.Und)
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].IsDirectory != recs[j].IsDirectory {
			return recs[i].IsDirectory
		}
		return c.CompareString(recs[i].Name, recs[j].Name) < 0
	})
}
