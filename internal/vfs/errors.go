package vfs

import "errors"

// Store operations return these sentinels (possibly wrapped); match with
// errors.Is. Only ErrStorageUnavailable triggers the backend fallback — all
// other failures are ordinary outcomes.
var (
	ErrNotFound           = errors.New("record not found")
	ErrConflict           = errors.New("path already exists")
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("storage backend unavailable")
)
