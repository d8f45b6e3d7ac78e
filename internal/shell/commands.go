package shell

import (
	"context"
	"errors"
	"strings"

	"github.com/muzaffar401/IDE/internal/events"
	"github.com/muzaffar401/IDE/internal/pathutil"
	"github.com/muzaffar401/IDE/internal/vfs"
)

func ok(stdout, cwd string) Result {
	return Result{Stdout: stdout, Cwd: cwd}
}

func fail(stderr, cwd string) Result {
	return Result{Stderr: stderr, ExitCode: 1, Cwd: cwd}
}

func (in *Interpreter) cmdPwd(cwd string) Result {
	return ok(cwd+"\n", cwd)
}

func (in *Interpreter) cmdLs(ctx context.Context, cwd string) Result {
	children, err := in.store.Children(ctx, cwd)
	if err != nil {
		return fail("ls: "+cwd+": cannot list directory\n", cwd)
	}

	names := make([]string, len(children))
	for i, rec := range children {
		names[i] = rec.Name
		if rec.IsDirectory {
			names[i] += "/"
		}
	}
	if len(names) == 0 {
		return ok("", cwd)
	}
	return ok(strings.Join(names, " ")+"\n", cwd)
}

func (in *Interpreter) cmdCd(ctx context.Context, cwd string, args []string) Result {
	if len(args) == 0 || args[0] == "/" {
		return ok("", "/")
	}

	target := pathutil.Join(cwd, args[0])
	if target == "/" {
		return ok("", "/")
	}

	rec, err := in.store.Get(ctx, target)
	if err != nil || !rec.IsDirectory {
		return fail("cd: "+args[0]+": No such directory\n", cwd)
	}
	return ok("", target)
}

func (in *Interpreter) cmdCat(ctx context.Context, cwd string, args []string) Result {
	if len(args) == 0 {
		return fail("cat: missing file operand\n", cwd)
	}

	target := pathutil.Join(cwd, args[0])
	rec, err := in.store.Get(ctx, target)
	if err != nil {
		return fail("cat: "+args[0]+": No such file or directory\n", cwd)
	}
	if rec.IsDirectory {
		return fail("cat: "+args[0]+": Is a directory\n", cwd)
	}

	content := ""
	if rec.Content != nil {
		content = *rec.Content
	}
	return ok(content+"\n", cwd)
}

func (in *Interpreter) cmdTouch(ctx context.Context, cwd string, args []string) Result {
	if len(args) == 0 {
		return fail("touch: missing file operand\n", cwd)
	}

	target := pathutil.Join(cwd, args[0])
	if _, err := in.store.Get(ctx, target); err == nil {
		// Existing path: touch is a no-op success and never clobbers content.
		return ok("", cwd)
	}

	_, err := in.store.Create(ctx, vfs.CreateSpec{Path: target})
	if err != nil {
		if errors.Is(err, vfs.ErrConflict) {
			return ok("", cwd)
		}
		return fail("touch: cannot touch '"+args[0]+"': No such file or directory\n", cwd)
	}

	in.publish(events.EventCreate, target, "", false)
	return ok("", cwd)
}

func (in *Interpreter) cmdMkdir(ctx context.Context, cwd string, args []string) Result {
	if len(args) == 0 {
		return fail("mkdir: missing operand\n", cwd)
	}

	target := pathutil.Join(cwd, args[0])
	_, err := in.store.Create(ctx, vfs.CreateSpec{Path: target, IsDirectory: true})
	if err != nil {
		if errors.Is(err, vfs.ErrConflict) {
			return fail("mkdir: cannot create directory '"+args[0]+"': File exists\n", cwd)
		}
		return fail("mkdir: cannot create directory '"+args[0]+"': No such file or directory\n", cwd)
	}

	in.publish(events.EventCreate, target, "", true)
	return ok("", cwd)
}

func (in *Interpreter) cmdRm(ctx context.Context, cwd string, args []string) Result {
	recursive := false
	var operands []string
	for _, a := range args {
		if a == "-r" || a == "-rf" {
			recursive = true
			continue
		}
		operands = append(operands, a)
	}
	if len(operands) == 0 {
		return fail("rm: missing operand\n", cwd)
	}

	target := pathutil.Join(cwd, operands[0])
	rec, err := in.store.Get(ctx, target)
	if err != nil {
		return fail("rm: cannot remove '"+operands[0]+"': No such file or directory\n", cwd)
	}
	if rec.IsDirectory && !recursive {
		return fail("rm: cannot remove '"+operands[0]+"': Is a directory\n", cwd)
	}

	removed, err := in.store.Delete(ctx, target)
	if err != nil || !removed {
		return fail("rm: cannot remove '"+operands[0]+"': No such file or directory\n", cwd)
	}

	in.publish(events.EventDelete, target, "", rec.IsDirectory)
	return ok("", cwd)
}

func (in *Interpreter) cmdMv(ctx context.Context, cwd string, args []string) Result {
	if len(args) < 2 {
		return fail("mv: missing file operand\n", cwd)
	}

	oldPath := pathutil.Join(cwd, args[0])
	newPath := pathutil.Join(cwd, args[1])

	rec, err := in.store.Rename(ctx, oldPath, newPath)
	if err != nil {
		if errors.Is(err, vfs.ErrConflict) {
			return fail("mv: cannot move '"+args[0]+"' to '"+args[1]+"': File exists\n", cwd)
		}
		return fail("mv: cannot stat '"+args[0]+"': No such file or directory\n", cwd)
	}

	in.publish(events.EventRename, newPath, oldPath, rec.IsDirectory)
	return ok("", cwd)
}

func (in *Interpreter) cmdEcho(cwd string, args []string) Result {
	return ok(strings.Join(args, " ")+"\n", cwd)
}
