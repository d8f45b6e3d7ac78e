// Package vfs implements the virtual file store backing the editor: a tree
// of file and directory records addressed by absolute path, with recursive
// rename/delete semantics and a swappable durability backend.
package vfs

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// FileRecord is one node in the virtual tree. Path is the primary key;
// Content is nil for directories; ParentPath is nil for the root (and, as a
// legacy alias, for records created without an explicit parent under root).
type FileRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Content     *string   `json:"content,omitempty"`
	IsDirectory bool      `json:"isDirectory"`
	ParentPath  *string   `json:"parentPath"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can never alias stored state.
func (r *FileRecord) Clone() *FileRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.Content != nil {
		v := *r.Content
		c.Content = &v
	}
	if r.ParentPath != nil {
		v := *r.ParentPath
		c.ParentPath = &v
	}
	return &c
}

// IsChildOf reports whether the record is a direct child of dir. A nil
// ParentPath on a non-root record counts as a child of the root.
func (r *FileRecord) IsChildOf(dir string) bool {
	if r.Path == "/" {
		return false
	}
	if r.ParentPath == nil {
		return dir == "/"
	}
	return *r.ParentPath == dir
}

// CreateSpec describes a record to create. Content and ParentPath are
// optional; Name and ParentPath are derived from Path when omitted.
type CreateSpec struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	Content     *string `json:"content"`
	IsDirectory bool    `json:"isDirectory"`
	ParentPath  *string `json:"parentPath"`
}

// Update is a partial mutation of a record. Only name and content are
// mutable in place; identity changes go through Rename.
type Update struct {
	Name    *string `json:"name"`
	Content *string `json:"content"`
}

func newID(path string) string {
	h := sha256.Sum256(fmt.Appendf(nil, "%s@%d", path, time.Now().UnixNano()))
	return fmt.Sprintf("%x", h[:8])
}
