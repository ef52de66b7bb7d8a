// Package executor carries out parsed actions against the filesystem and
// the shell, inside a sandbox scope.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/vinayprograms/contui/internal/action"
	"github.com/vinayprograms/contui/internal/logging"
	"github.com/vinayprograms/contui/internal/sandbox"
)

const (
	defaultMaxOutput = 16 * 1024
	defaultMaxRead   = 256 * 1024
)

// Executor runs actions. It never panics on bad input; every failure is a
// Result.
type Executor struct {
	scope     *sandbox.Scope
	logger    *logging.Logger
	workDir   string
	maxOutput int
	maxRead   int
	shell     string
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Executor) { e.logger = l }
}

// WithWorkDir sets the directory commands and git run in.
func WithWorkDir(dir string) Option {
	return func(e *Executor) { e.workDir = dir }
}

// WithMaxOutput caps each captured command stream, in bytes.
func WithMaxOutput(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxOutput = n
		}
	}
}

// WithShell sets the shell used as "<shell> -c <command>".
func WithShell(shell string) Option {
	return func(e *Executor) { e.shell = shell }
}

// New creates an Executor confined to scope.
func New(scope *sandbox.Scope, opts ...Option) *Executor {
	e := &Executor{
		scope:     scope,
		maxOutput: defaultMaxOutput,
		maxRead:   defaultMaxRead,
		shell:     "sh",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logging.Discard()
	}
	e.logger = e.logger.WithComponent("executor")
	return e
}

// Scope returns the sandbox the executor checks against.
func (e *Executor) Scope() *sandbox.Scope { return e.scope }

// Execute performs a. Commands are not run here; they need confirmation and
// go through RunCommand.
func (e *Executor) Execute(ctx context.Context, a action.Action) Result {
	ctx, span := startActionSpan(ctx, a)
	var res Result
	switch a := a.(type) {
	case action.CreateFile:
		res = e.createFile(a)
	case action.ReadFile:
		res = e.readFile(a)
	case action.EditFile:
		res = e.editFile(a)
	case action.AppendFile:
		res = e.appendFile(a)
	case action.ListDirectory:
		res = e.listDirectory(a)
	case action.ShowDiff:
		res = e.showDiff(ctx, a)
	case action.ExecuteCommand:
		res = failed(a, newError(KindRejected, "command was not confirmed"))
	default:
		res = Result{Action: a.Kind(), Target: a.Target(), Err: newError(KindParse, "unsupported action %T", a)}
	}
	endActionSpan(span, res)
	e.logger.ActionResult(string(res.Action), res.Target, res.Success, string(res.ErrorKind()))
	return res
}

func (e *Executor) createFile(a action.CreateFile) Result {
	parent := filepath.Dir(a.Filename)
	if err := e.scope.Check(parent); err != nil {
		e.logger.SecurityWarning("create denied", map[string]interface{}{"path": a.Filename})
		return failed(a, wrapError("create "+a.Filename, err))
	}
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return failed(a, wrapError("create directory "+parent, err))
	}
	path := sandbox.UniquePath(a.Filename)
	if err := e.scope.Check(path); err != nil {
		return failed(a, wrapError("create "+path, err))
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return failed(a, wrapError("create "+path, err))
	}
	_, werr := io.WriteString(f, a.Content)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return failed(a, wrapError("write "+path, werr))
	}
	return succeed(a, path)
}

func (e *Executor) readFile(a action.ReadFile) Result {
	if err := e.scope.Check(a.Filename); err != nil {
		e.logger.SecurityWarning("read denied", map[string]interface{}{"path": a.Filename})
		return failed(a, wrapError("read "+a.Filename, err))
	}
	data, err := os.ReadFile(a.Filename)
	if err != nil {
		return failed(a, wrapError("read "+a.Filename, err))
	}
	return succeed(a, truncate(string(data), e.maxRead))
}

func (e *Executor) editFile(a action.EditFile) Result {
	if err := e.scope.Check(a.Filename); err != nil {
		e.logger.SecurityWarning("edit denied", map[string]interface{}{"path": a.Filename})
		return failed(a, wrapError("edit "+a.Filename, err))
	}
	if a.OldText == "" {
		return failed(a, newError(KindNoMatch, "old text is empty"))
	}
	info, err := os.Stat(a.Filename)
	if err != nil {
		return failed(a, wrapError("edit "+a.Filename, err))
	}
	data, err := os.ReadFile(a.Filename)
	if err != nil {
		return failed(a, wrapError("edit "+a.Filename, err))
	}
	content := string(data)
	n := strings.Count(content, a.OldText)
	if n == 0 {
		return failed(a, newError(KindNoMatch, "old text not found in %s", a.Filename))
	}
	updated := strings.ReplaceAll(content, a.OldText, a.NewText)
	if err := os.WriteFile(a.Filename, []byte(updated), info.Mode().Perm()); err != nil {
		return failed(a, wrapError("write "+a.Filename, err))
	}
	return succeed(a, fmt.Sprintf("replaced %d occurrence(s) in %s", n, a.Filename))
}

func (e *Executor) appendFile(a action.AppendFile) Result {
	if err := e.scope.Check(a.Filename); err != nil {
		e.logger.SecurityWarning("append denied", map[string]interface{}{"path": a.Filename})
		return failed(a, wrapError("append "+a.Filename, err))
	}
	f, err := os.OpenFile(a.Filename, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return failed(a, wrapError("append "+a.Filename, err))
	}
	n, werr := io.WriteString(f, a.Content)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return failed(a, wrapError("append "+a.Filename, werr))
	}
	return succeed(a, fmt.Sprintf("appended %d bytes to %s", n, a.Filename))
}

func (e *Executor) listDirectory(a action.ListDirectory) Result {
	if err := e.scope.Check(a.Path); err != nil {
		e.logger.SecurityWarning("list denied", map[string]interface{}{"path": a.Path})
		return failed(a, wrapError("list "+a.Path, err))
	}
	entries, err := os.ReadDir(a.Path)
	if err != nil {
		return failed(a, wrapError("list "+a.Path, err))
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if isDir(a.Path, entry) {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return succeed(a, strings.Join(names, "\n"))
}

// isDir follows symlinks so linked directories list with a slash.
func isDir(parent string, entry os.DirEntry) bool {
	if entry.IsDir() {
		return true
	}
	if entry.Type()&os.ModeSymlink == 0 {
		return false
	}
	info, err := os.Stat(filepath.Join(parent, entry.Name()))
	return err == nil && info.IsDir()
}

func (e *Executor) showDiff(ctx context.Context, a action.ShowDiff) Result {
	cmd := exec.CommandContext(ctx, "git", "--no-pager", "diff")
	cmd.Dir = e.workDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return failed(a, &Error{Kind: KindCommandFailed, Message: "git diff: " + truncate(msg, e.maxOutput), Err: err})
	}
	if stdout.Len() == 0 {
		return succeed(a, "(no changes)")
	}
	return succeed(a, truncate(stdout.String(), e.maxOutput))
}

// CommandOutput is what a shell command produced.
type CommandOutput struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

func (o CommandOutput) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "exit code: %d", o.ExitCode)
	if o.Stdout != "" {
		b.WriteString("\nstdout:\n")
		b.WriteString(strings.TrimRight(o.Stdout, "\n"))
	}
	if o.Stderr != "" {
		b.WriteString("\nstderr:\n")
		b.WriteString(strings.TrimRight(o.Stderr, "\n"))
	}
	return b.String()
}

// RunCommand runs an approved command with "<shell> -c" in the work dir.
// Each output stream is capped before it is returned. A non-zero exit is a
// CommandFailed result carrying both streams.
func (e *Executor) RunCommand(ctx context.Context, c action.ExecuteCommand) (Result, CommandOutput) {
	ctx, span := startActionSpan(ctx, c)
	out, err := e.run(ctx, c.Command)

	var res Result
	switch {
	case err != nil:
		res = failed(c, &Error{Kind: KindCommandFailed, Message: err.Error(), Err: err})
	case out.ExitCode != 0:
		res = failed(c, &Error{Kind: KindCommandFailed, Message: out.String()})
	default:
		res = succeed(c, out.String())
	}
	res.Silent = c.Silent
	endActionSpan(span, res)
	e.logger.Info("command_finished", map[string]interface{}{
		"exit_code": out.ExitCode,
		"duration":  out.Duration.String(),
		"silent":    c.Silent,
	})
	return res, out
}

func (e *Executor) run(ctx context.Context, command string) (CommandOutput, error) {
	cmd := exec.CommandContext(ctx, e.shell, "-c", command)
	cmd.Dir = e.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	out := CommandOutput{
		Stdout:   truncate(stdout.String(), e.maxOutput),
		Stderr:   truncate(stderr.String(), e.maxOutput),
		Duration: time.Since(start),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return out, fmt.Errorf("failed to execute command: %w", err)
		}
		out.ExitCode = exitErr.ExitCode()
	}
	return out, nil
}

// truncate cuts s to at most max bytes on a rune boundary and notes how
// much was dropped.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + fmt.Sprintf("\n... [truncated %d bytes]", len(s)-cut)
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }
