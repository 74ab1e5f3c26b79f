package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultDenylist holds the substrings that block a command outright.
// Matching is case-insensitive containment, not shell parsing.
var DefaultDenylist = []string{
	"rm -rf /",
	"mkfs",
	"dd if=",
	"> /dev/",
	"shutdown",
	"reboot",
	"format",
	":(){ :|:& };:", // fork bomb
}

const (
	defaultExecTimeout   = 30 * time.Second
	defaultMaxOutputSize = 1 << 20
	truncatedMarker      = "\n... (output truncated)"
)

// ErrBlockedCommand is matched by every BlockedCommandError.
var ErrBlockedCommand = errors.New("command blocked")

// BlockedCommandError reports the denylist entry that rejected a command.
type BlockedCommandError struct {
	Command string
	Pattern string
}

func (e *BlockedCommandError) Error() string {
	return fmt.Sprintf("command blocked: contains denied pattern %q", e.Pattern)
}

func (e *BlockedCommandError) Unwrap() error { return ErrBlockedCommand }

// ExecResult is the captured outcome of one command.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// CommandExecutor runs shell commands inside a fixed root directory.
type CommandExecutor struct {
	Root           string
	Timeout        time.Duration
	MaxOutputBytes int
	denylist       []string
}

// NewCommandExecutor creates an executor rooted at root. extraDeny is added
// to DefaultDenylist.
func NewCommandExecutor(root string, timeout time.Duration, maxOutputBytes int, extraDeny []string) *CommandExecutor {
	deny := make([]string, 0, len(DefaultDenylist)+len(extraDeny))
	for _, p := range append(append([]string{}, DefaultDenylist...), extraDeny...) {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			deny = append(deny, p)
		}
	}
	return &CommandExecutor{
		Root:           root,
		Timeout:        timeout,
		MaxOutputBytes: maxOutputBytes,
		denylist:       deny,
	}
}

// Check returns a BlockedCommandError when command matches the denylist.
func (e *CommandExecutor) Check(command string) error {
	lower := strings.ToLower(command)
	for _, p := range e.denylist {
		if strings.Contains(lower, p) {
			return &BlockedCommandError{Command: command, Pattern: p}
		}
	}
	return nil
}

// Execute runs command with sh -c. A non-zero exit is reported through
// ExitCode; only a blocked command or a failure to start the process is
// returned as an error. A zero timeout uses the executor default.
func (e *CommandExecutor) Execute(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	if err := e.Check(command); err != nil {
		slog.WarnContext(ctx, "Blocked command", "command", command, "error", err)
		return ExecResult{}, err
	}

	if timeout <= 0 {
		timeout = e.Timeout
	}
	if timeout <= 0 {
		timeout = defaultExecTimeout
	}
	limit := e.MaxOutputBytes
	if limit <= 0 {
		limit = defaultMaxOutputSize
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = e.Root
	// Children of sh may hold the pipes open after a timeout kill.
	cmd.WaitDelay = time.Second

	stdout := &cappedBuffer{limit: limit}
	stderr := &cappedBuffer{limit: limit}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	res := ExecResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		res.ExitCode = -1
		note := fmt.Sprintf("command timed out after %v", timeout)
		if res.Stderr != "" {
			res.Stderr += "\n" + note
		} else {
			res.Stderr = note
		}
		return res, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		return res, fmt.Errorf("start command: %w", err)
	}
	return res, nil
}

// cappedBuffer keeps the first limit bytes written to it and discards the rest.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + truncatedMarker
	}
	return b.buf.String()
}
