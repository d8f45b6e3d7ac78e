// Package session tracks per-terminal-session working directories. Sessions
// are independent cursors over the shared tree; the registry never touches
// the tree itself.
package session

import (
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/muzaffar401/IDE/internal/metrics"
)

// Registry maps opaque session identifiers to working directories.
type Registry struct {
	mu   sync.RWMutex
	cwds map[string]string
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{cwds: make(map[string]string)}
}

// Create registers a new session rooted at "/" and returns its identifier.
func (r *Registry) Create() string {
	id := newSessionID()
	r.mu.Lock()
	r.cwds[id] = "/"
	count := len(r.cwds)
	r.mu.Unlock()
	metrics.SetTerminalSessions(int64(count))
	return id
}

// Get returns the session's working directory, lazily materializing the
// session at "/" on first use.
func (r *Registry) Get(id string) string {
	r.mu.RLock()
	cwd, ok := r.cwds[id]
	r.mu.RUnlock()
	if ok {
		return cwd
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cwd, ok := r.cwds[id]; ok {
		return cwd
	}
	r.cwds[id] = "/"
	metrics.SetTerminalSessions(int64(len(r.cwds)))
	return "/"
}

// SetCwd updates the session's working directory.
func (r *Registry) SetCwd(id, cwd string) {
	r.mu.Lock()
	r.cwds[id] = cwd
	r.mu.Unlock()
}

// Count returns the number of known sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cwds)
}

func newSessionID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("session: cannot read random bytes: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
