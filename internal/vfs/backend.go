package vfs

import "context"

// Backend is the durability layer the Store delegates to. Implementations
// store flat FileRecord rows keyed by unique path; the Store owns invariant
// enforcement, ordering and fallback.
//
// Backends report absence with ErrNotFound, duplicate paths with ErrConflict
// and unreachability with ErrStorageUnavailable. Cascading Delete/Rename
// must be atomic within a single call.
type Backend interface {
	// List returns every record, in no particular order.
	List(ctx context.Context) ([]*FileRecord, error)

	// Get returns the record at an exact path.
	Get(ctx context.Context, path string) (*FileRecord, error)

	// Create inserts a fully-populated record.
	Create(ctx context.Context, rec *FileRecord) error

	// Update applies a partial name/content mutation and returns the result.
	Update(ctx context.Context, path string, upd Update) (*FileRecord, error)

	// Delete removes the record at path; for directories it first removes
	// every descendant (direct children by parent path plus anchored path
	// prefix). Returns the number of records removed.
	Delete(ctx context.Context, path string) (int, error)

	// Rename moves the record at oldPath to newPath, rewriting descendant
	// paths with an anchored prefix substitution, and returns the moved
	// record.
	Rename(ctx context.Context, oldPath, newPath string) (*FileRecord, error)

	// Search returns records whose name (or, for files, content) contains
	// the query, case-insensitively, in deterministic storage order.
	Search(ctx context.Context, query string) ([]*FileRecord, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Name identifies the backend ("postgres", "memory") for logs/metrics.
	Name() string

	// Close releases backend resources.
	Close() error
}
