package shell

import (
	"context"
	"testing"

	"github.com/muzaffar401/IDE/internal/session"
	"github.com/muzaffar401/IDE/internal/vfs"
	"github.com/muzaffar401/IDE/internal/vfs/memory"
)

func newTestShell(t *testing.T) (*Interpreter, string) {
	t.Helper()
	store, err := vfs.Open(context.Background(), memory.New(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	registry := session.NewRegistry()
	return New(store, registry, nil), registry.Create()
}

func run(t *testing.T, in *Interpreter, sessionID, line string) Result {
	t.Helper()
	return in.Execute(context.Background(), sessionID, line)
}

func expectOK(t *testing.T, res Result, line string) {
	t.Helper()
	if res.ExitCode != 0 {
		t.Fatalf("%q: exit %d, stderr %q", line, res.ExitCode, res.Stderr)
	}
}

func TestMakeTouchMoveCat(t *testing.T) {
	in, sid := newTestShell(t)

	for _, line := range []string{
		"mkdir /a",
		"touch /a/b.txt",
		"mv /a /c",
	} {
		expectOK(t, run(t, in, sid, line), line)
	}

	res := run(t, in, sid, "cat /c/b.txt")
	expectOK(t, res, "cat /c/b.txt")
	if res.Stdout != "\n" {
		t.Errorf("cat empty file stdout = %q, want newline", res.Stdout)
	}

	res = run(t, in, sid, "cat /a/b.txt")
	if res.ExitCode != 1 {
		t.Errorf("cat old path: exit %d, want 1", res.ExitCode)
	}
}

func TestPwdAndCd(t *testing.T) {
	in, sid := newTestShell(t)

	res := run(t, in, sid, "pwd")
	if res.Stdout != "/\n" {
		t.Errorf("pwd = %q, want /", res.Stdout)
	}

	expectOK(t, run(t, in, sid, "mkdir /src"), "mkdir /src")
	expectOK(t, run(t, in, sid, "cd src"), "cd src")

	res = run(t, in, sid, "pwd")
	if res.Stdout != "/src\n" {
		t.Errorf("pwd after cd = %q, want /src", res.Stdout)
	}
	if res.Cwd != "/src" {
		t.Errorf("cwd = %q, want /src", res.Cwd)
	}

	// .. from a subdirectory goes up; .. at root stays at root.
	expectOK(t, run(t, in, sid, "cd .."), "cd ..")
	res = run(t, in, sid, "cd ..")
	expectOK(t, res, "cd .. at root")
	if res.Cwd != "/" {
		t.Errorf("cd .. at root: cwd = %q, want /", res.Cwd)
	}

	res = run(t, in, sid, "cd missing")
	if res.ExitCode != 1 || res.Stderr != "cd: missing: No such directory\n" {
		t.Errorf("cd missing: exit %d, stderr %q", res.ExitCode, res.Stderr)
	}
	if res.Cwd != "/" {
		t.Errorf("failed cd changed cwd to %q", res.Cwd)
	}

	// cd into a file is rejected.
	expectOK(t, run(t, in, sid, "touch f.txt"), "touch f.txt")
	res = run(t, in, sid, "cd f.txt")
	if res.ExitCode != 1 {
		t.Errorf("cd into file: exit %d, want 1", res.ExitCode)
	}
}

func TestCwdPersistsAcrossCommands(t *testing.T) {
	in, sid := newTestShell(t)

	expectOK(t, run(t, in, sid, "mkdir /work"), "mkdir")
	expectOK(t, run(t, in, sid, "cd work"), "cd")
	expectOK(t, run(t, in, sid, "touch out.txt"), "touch")

	// Relative path resolved against the persisted cwd.
	res := run(t, in, sid, "cat /work/out.txt")
	expectOK(t, res, "cat /work/out.txt")

	// A second session starts at the root, unaffected.
	in2 := in
	sid2 := in.sessions.Create()
	res = run(t, in2, sid2, "pwd")
	if res.Stdout != "/\n" {
		t.Errorf("new session pwd = %q, want /", res.Stdout)
	}
}

func TestLs(t *testing.T) {
	in, sid := newTestShell(t)

	res := run(t, in, sid, "ls")
	expectOK(t, res, "ls empty")
	if res.Stdout != "" {
		t.Errorf("ls empty root = %q, want empty", res.Stdout)
	}

	expectOK(t, run(t, in, sid, "mkdir /dir"), "mkdir")
	expectOK(t, run(t, in, sid, "touch /a.txt"), "touch")

	res = run(t, in, sid, "ls")
	expectOK(t, res, "ls")
	if res.Stdout != "dir/ a.txt\n" {
		t.Errorf("ls = %q, want %q", res.Stdout, "dir/ a.txt\n")
	}
}

func TestCatErrors(t *testing.T) {
	in, sid := newTestShell(t)

	res := run(t, in, sid, "cat")
	if res.Stderr != "cat: missing file operand\n" || res.ExitCode != 1 {
		t.Errorf("cat no args: exit %d, stderr %q", res.ExitCode, res.Stderr)
	}

	res = run(t, in, sid, "cat nope.txt")
	if res.Stderr != "cat: nope.txt: No such file or directory\n" {
		t.Errorf("cat missing: stderr %q", res.Stderr)
	}

	expectOK(t, run(t, in, sid, "mkdir d"), "mkdir")
	res = run(t, in, sid, "cat d")
	if res.Stderr != "cat: d: Is a directory\n" {
		t.Errorf("cat directory: stderr %q", res.Stderr)
	}
}

func TestTouchIdempotent(t *testing.T) {
	in, sid := newTestShell(t)
	ctx := context.Background()

	expectOK(t, run(t, in, sid, "touch /f.txt"), "touch")

	content := "keep me"
	if _, err := in.store.Update(ctx, "/f.txt", vfs.Update{Content: &content}); err != nil {
		t.Fatalf("update: %v", err)
	}

	expectOK(t, run(t, in, sid, "touch /f.txt"), "touch again")

	rec, err := in.store.Get(ctx, "/f.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Content == nil || *rec.Content != "keep me" {
		t.Errorf("touch clobbered content: %v", rec.Content)
	}
}

func TestMkdirErrors(t *testing.T) {
	in, sid := newTestShell(t)

	res := run(t, in, sid, "mkdir")
	if res.Stderr != "mkdir: missing operand\n" {
		t.Errorf("mkdir no args: stderr %q", res.Stderr)
	}

	expectOK(t, run(t, in, sid, "mkdir /d"), "mkdir /d")
	res = run(t, in, sid, "mkdir /d")
	if res.Stderr != "mkdir: cannot create directory '/d': File exists\n" {
		t.Errorf("mkdir duplicate: stderr %q", res.Stderr)
	}

	res = run(t, in, sid, "mkdir /no/such/deep")
	if res.ExitCode != 1 {
		t.Errorf("mkdir missing parent: exit %d, want 1", res.ExitCode)
	}
}

func TestRm(t *testing.T) {
	in, sid := newTestShell(t)
	ctx := context.Background()

	res := run(t, in, sid, "rm")
	if res.Stderr != "rm: missing operand\n" {
		t.Errorf("rm no args: stderr %q", res.Stderr)
	}

	expectOK(t, run(t, in, sid, "touch /f.txt"), "touch")
	expectOK(t, run(t, in, sid, "rm /f.txt"), "rm file")

	expectOK(t, run(t, in, sid, "mkdir /d"), "mkdir")
	expectOK(t, run(t, in, sid, "touch /d/x.txt"), "touch")

	res = run(t, in, sid, "rm /d")
	if res.Stderr != "rm: cannot remove '/d': Is a directory\n" || res.ExitCode != 1 {
		t.Errorf("rm directory without -r: exit %d, stderr %q", res.ExitCode, res.Stderr)
	}

	expectOK(t, run(t, in, sid, "rm -r /d"), "rm -r /d")
	if _, err := in.store.Get(ctx, "/d/x.txt"); err == nil {
		t.Error("rm -r left descendant behind")
	}

	res = run(t, in, sid, "rm /missing")
	if res.Stderr != "rm: cannot remove '/missing': No such file or directory\n" {
		t.Errorf("rm missing: stderr %q", res.Stderr)
	}
}

func TestMvErrors(t *testing.T) {
	in, sid := newTestShell(t)

	res := run(t, in, sid, "mv only-one")
	if res.Stderr != "mv: missing file operand\n" {
		t.Errorf("mv one arg: stderr %q", res.Stderr)
	}

	res = run(t, in, sid, "mv /missing /target")
	if res.Stderr != "mv: cannot stat '/missing': No such file or directory\n" {
		t.Errorf("mv missing: stderr %q", res.Stderr)
	}

	expectOK(t, run(t, in, sid, "touch /a.txt"), "touch")
	expectOK(t, run(t, in, sid, "touch /b.txt"), "touch")
	res = run(t, in, sid, "mv /a.txt /b.txt")
	if res.Stderr != "mv: cannot move '/a.txt' to '/b.txt': File exists\n" {
		t.Errorf("mv onto existing: stderr %q", res.Stderr)
	}
}

func TestEchoAndMisc(t *testing.T) {
	in, sid := newTestShell(t)

	res := run(t, in, sid, "echo hello   world")
	if res.Stdout != "hello world\n" {
		t.Errorf("echo = %q", res.Stdout)
	}

	res = run(t, in, sid, "echo")
	if res.Stdout != "\n" {
		t.Errorf("echo no args = %q, want newline", res.Stdout)
	}

	res = run(t, in, sid, "clear")
	if res.Stdout != "\x1b[H\x1b[2J" {
		t.Errorf("clear = %q", res.Stdout)
	}

	res = run(t, in, sid, "")
	if res.ExitCode != 0 || res.Stdout != "" || res.Stderr != "" {
		t.Errorf("empty line: %+v", res)
	}

	res = run(t, in, sid, "   ")
	if res.ExitCode != 0 {
		t.Errorf("blank line: exit %d", res.ExitCode)
	}
}

func TestCommandNotFound(t *testing.T) {
	in, sid := newTestShell(t)

	res := run(t, in, sid, "frobnicate --now")
	if res.ExitCode != 127 {
		t.Errorf("exit = %d, want 127", res.ExitCode)
	}
	if res.Stderr != "frobnicate: command not found\n" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}
