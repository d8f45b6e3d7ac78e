package session

import "testing"

func TestCreateStartsAtRoot(t *testing.T) {
	r := NewRegistry()

	id := r.Create()
	if id == "" {
		t.Fatal("empty session id")
	}
	if cwd := r.Get(id); cwd != "/" {
		t.Errorf("cwd = %q, want /", cwd)
	}

	id2 := r.Create()
	if id2 == id {
		t.Error("duplicate session ids")
	}
	if r.Count() != 2 {
		t.Errorf("count = %d, want 2", r.Count())
	}
}

func TestSetCwd(t *testing.T) {
	r := NewRegistry()
	id := r.Create()

	r.SetCwd(id, "/src")
	if cwd := r.Get(id); cwd != "/src" {
		t.Errorf("cwd = %q, want /src", cwd)
	}

	// Other sessions are unaffected.
	other := r.Create()
	if cwd := r.Get(other); cwd != "/" {
		t.Errorf("other session cwd = %q, want /", cwd)
	}
}

func TestGetMaterializesUnknownSession(t *testing.T) {
	r := NewRegistry()

	if cwd := r.Get("never-created"); cwd != "/" {
		t.Errorf("unknown session cwd = %q, want /", cwd)
	}
	if r.Count() != 1 {
		t.Errorf("count = %d, want 1 after lazy materialization", r.Count())
	}

	// A second lookup reuses the materialized session.
	r.SetCwd("never-created", "/deep")
	if cwd := r.Get("never-created"); cwd != "/deep" {
		t.Errorf("cwd = %q, want /deep", cwd)
	}
}
