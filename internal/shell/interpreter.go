// Package shell implements the virtual terminal's command interpreter. It
// parses single-line commands, resolves paths against the session's working
// directory and translates file store results into stdout/stderr/exit-code
// triples.
package shell

import (
	"context"
	"strings"

	"github.com/muzaffar401/IDE/internal/events"
	"github.com/muzaffar401/IDE/internal/metrics"
	"github.com/muzaffar401/IDE/internal/session"
	"github.com/muzaffar401/IDE/internal/vfs"
)

// Result is the outcome of one command execution. Cwd is the session's
// working directory after the command (changed only by cd).
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
	Cwd      string `json:"cwd"`
}

// Interpreter executes shell commands against the file store.
type Interpreter struct {
	store       *vfs.Store
	sessions    *session.Registry
	broadcaster *events.Broadcaster
}

// New creates an interpreter. The broadcaster may be nil.
func New(store *vfs.Store, sessions *session.Registry, broadcaster *events.Broadcaster) *Interpreter {
	return &Interpreter{store: store, sessions: sessions, broadcaster: broadcaster}
}

// Execute runs a single command line for a session, persisting any working
// directory change back to the registry.
func (in *Interpreter) Execute(ctx context.Context, sessionID, commandLine string) Result {
	cwd := in.sessions.Get(sessionID)
	res := in.run(ctx, cwd, commandLine)
	if res.Cwd != cwd {
		in.sessions.SetCwd(sessionID, res.Cwd)
	}
	return res
}

// run dispatches one command line at a given working directory.
func (in *Interpreter) run(ctx context.Context, cwd, commandLine string) Result {
	tokens := strings.Fields(commandLine)
	if len(tokens) == 0 {
		return Result{Cwd: cwd}
	}
	cmd, args := tokens[0], tokens[1:]

	var res Result
	switch cmd {
	case "pwd":
		res = in.cmdPwd(cwd)
	case "ls":
		res = in.cmdLs(ctx, cwd)
	case "cd":
		res = in.cmdCd(ctx, cwd, args)
	case "cat":
		res = in.cmdCat(ctx, cwd, args)
	case "touch":
		res = in.cmdTouch(ctx, cwd, args)
	case "mkdir":
		res = in.cmdMkdir(ctx, cwd, args)
	case "rm":
		res = in.cmdRm(ctx, cwd, args)
	case "mv":
		res = in.cmdMv(ctx, cwd, args)
	case "echo":
		res = in.cmdEcho(cwd, args)
	case "clear":
		res = Result{Stdout: "\x1b[H\x1b[2J", Cwd: cwd}
	case "help":
		res = Result{Stdout: helpText, Cwd: cwd}
	default:
		res = Result{
			Stderr:   cmd + ": command not found\n",
			ExitCode: 127,
			Cwd:      cwd,
		}
	}

	metrics.RecordShellCommand(cmd, res.ExitCode)
	return res
}

func (in *Interpreter) publish(eventType, path, oldPath string, isDir bool) {
	if in.broadcaster == nil {
		return
	}
	in.broadcaster.Publish(events.Event{
		Type:        eventType,
		Path:        path,
		OldPath:     oldPath,
		IsDirectory: isDir,
	})
}

const helpText = `Available commands:
  pwd             print the working directory
  ls              list directory contents
  cd <dir>        change directory (.. goes up)
  cat <file>      print file contents
  touch <file>    create an empty file
  mkdir <dir>     create a directory
  rm [-r] <path>  remove a file, or a directory with -r
  mv <old> <new>  move or rename a file or directory
  echo <text>     print text
  clear           clear the terminal
  help            show this help
`
