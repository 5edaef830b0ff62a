// Package executor runs approved commands in the user's shell with the
// terminal attached.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"mvdan.cc/sh/v3/syntax"

	"github.com/doeshing/q/internal/domain"
	contextcollector "github.com/doeshing/q/internal/infrastructure/context"
	"github.com/doeshing/q/internal/ports"
)

// Shell exit statuses meaning the command itself never started.
const (
	exitNotExecutable = 126
	exitNotFound      = 127
)

// Shell is a program plus the flags that make it run one command string.
type Shell struct {
	Program string
	Flags   []string
}

// ResolveShell picks the shell for running commands: the configured one,
// then $SHELL, then /bin/sh (powershell on Windows).
func ResolveShell(configured string) Shell {
	return resolveShell(configured, runtime.GOOS, os.Getenv)
}

func resolveShell(configured, goos string, getenv func(string) string) Shell {
	program := strings.TrimSpace(configured)
	if program == "" {
		program = getenv("SHELL")
	}
	if program == "" {
		if goos == "windows" {
			program = contextcollector.DetectShell(goos, getenv)
		} else {
			program = "/bin/sh"
		}
	}
	return Shell{Program: program, Flags: shellFlags(program)}
}

func shellFlags(program string) []string {
	name := strings.ToLower(filepath.Base(strings.ReplaceAll(program, `\`, "/")))
	name = strings.TrimSuffix(name, ".exe")
	switch name {
	case "powershell", "pwsh":
		return []string{"-NoProfile", "-Command"}
	case "cmd":
		return []string{"/C"}
	default:
		return []string{"-c"}
	}
}

// ShellExecutor implements ports.CommandExecutor.
type ShellExecutor struct {
	shell    Shell
	grace    time.Duration
	stdin    io.Reader
	stdout   io.Writer
	stderr   io.Writer
	lookPath func(string) (string, error)
}

// NewShellExecutor streams through the process's own stdin, stdout and stderr.
func NewShellExecutor(shell Shell) *ShellExecutor {
	return &ShellExecutor{
		shell:    shell,
		grace:    domain.DefaultInterruptGrace,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		lookPath: exec.LookPath,
	}
}

// WithStreams returns a copy that uses the given streams.
func (e *ShellExecutor) WithStreams(stdin io.Reader, stdout, stderr io.Writer) *ShellExecutor {
	clone := *e
	clone.stdin, clone.stdout, clone.stderr = stdin, stdout, stderr
	return &clone
}

// WithGrace returns a copy that waits d after an interrupt before killing.
func (e *ShellExecutor) WithGrace(d time.Duration) *ShellExecutor {
	clone := *e
	clone.grace = d
	return &clone
}

// Shell reports the shell commands run in.
func (e *ShellExecutor) Shell() Shell {
	return e.shell
}

// Run starts the command and waits for it. A normal exit, zero or not, is
// returned as an outcome; everything else is a *domain.ExecutionError.
func (e *ShellExecutor) Run(ctx context.Context, candidate domain.CommandCandidate) (domain.ExecutionOutcome, error) {
	args := append(append([]string{}, e.shell.Flags...), candidate.Command)
	cmd := exec.CommandContext(ctx, e.shell.Program, args...)
	cmd.Stdin = e.stdin
	cmd.Stdout = e.stdout
	cmd.Stderr = e.stderr
	cmd.Cancel = func() error { return interruptProcess(cmd.Process) }
	cmd.WaitDelay = e.grace

	if err := cmd.Start(); err != nil {
		return domain.ExecutionOutcome{}, &domain.ExecutionError{Kind: domain.LaunchFailed, Err: err}
	}

	err := cmd.Wait()
	state := cmd.ProcessState
	if err != nil && errors.Is(err, exec.ErrWaitDelay) && state != nil && state.Exited() {
		// the process exited but left its output pipes open; the status stands
		err = nil
		if state.ExitCode() != 0 {
			err = &exec.ExitError{ProcessState: state}
		}
	}

	if err == nil {
		return domain.ExecutionOutcome{Launched: true, ExitCode: 0}, nil
	}

	if ctx.Err() != nil {
		return domain.ExecutionOutcome{Launched: true, ExitCode: exitCodeOf(state)}, &domain.ExecutionError{
			Kind:     domain.InterruptedBySignal,
			Signal:   "interrupt",
			ExitCode: exitCodeOf(state),
			Err:      context.Cause(ctx),
		}
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return domain.ExecutionOutcome{Launched: true}, &domain.ExecutionError{Kind: domain.LaunchFailed, Err: err}
	}

	if sig, ok := signalOf(exitErr.ProcessState); ok {
		return domain.ExecutionOutcome{Launched: true, ExitCode: exitErr.ExitCode()}, &domain.ExecutionError{
			Kind:     domain.InterruptedBySignal,
			Signal:   sig,
			ExitCode: exitErr.ExitCode(),
		}
	}

	code := exitErr.ExitCode()
	if code == exitNotFound || code == exitNotExecutable {
		// ssh host missing-cmd exits 127 too; only blame the launch when the
		// program itself cannot be started
		if !e.programStarts(candidate.Command) {
			reason := "not found"
			if code == exitNotExecutable {
				reason = "not executable"
			}
			return domain.ExecutionOutcome{}, &domain.ExecutionError{
				Kind: domain.LaunchFailed, ExitCode: code,
				Err: fmt.Errorf("%s reported command %s (exit %d)", e.shell.Program, reason, code),
			}
		}
	}
	return domain.ExecutionOutcome{Launched: true, ExitCode: code}, nil
}

// programStarts reports whether the first program the command names is a
// shell builtin, on PATH, or an executable file. Anything it cannot parse
// counts as not starting.
func (e *ShellExecutor) programStarts(command string) bool {
	name := firstProgram(command)
	switch {
	case name == "":
		return false
	case shellBuiltins[name]:
		return true
	case strings.ContainsRune(name, '/'):
		info, err := os.Stat(name)
		return err == nil && info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
	default:
		_, err := e.lookPath(name)
		return err == nil
	}
}

func firstProgram(command string) string {
	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(command), "")
	if err != nil {
		return ""
	}
	var (
		name  string
		found bool
	)
	syntax.Walk(file, func(node syntax.Node) bool {
		if found {
			return false
		}
		if call, ok := node.(*syntax.CallExpr); ok && len(call.Args) > 0 {
			name, found = call.Args[0].Lit(), true
			return false
		}
		return true
	})
	return name
}

// builtins that never launch another program
var shellBuiltins = map[string]bool{
	"exit": true, "return": true, "cd": true, "true": true, "false": true,
	"test": true, "[": true, "echo": true, "printf": true, "read": true, "wait": true,
}

func exitCodeOf(state *os.ProcessState) int {
	if state == nil {
		return -1
	}
	return state.ExitCode()
}

var _ ports.CommandExecutor = (*ShellExecutor)(nil)
