// Package executor runs the external tools the pipeline depends on
// (yt-dlp, ffmpeg, whisper, translation and synthesis CLIs) with timeout
// enforcement and captured output.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Command describes a single subprocess invocation.
type Command struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string
	Stdin   io.Reader
	Timeout time.Duration
}

// Result captures the outcome of a finished subprocess.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// ErrTimedOut marks commands killed by their timeout.
var ErrTimedOut = errors.New("command timed out")

// Runner executes commands. The default implementation shells out; tests
// substitute a RunnerFunc.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, cmd Command) (Result, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// ExecRunner runs commands via os/exec.
type ExecRunner struct{}

// NewRunner returns the default subprocess runner.
func NewRunner() Runner {
	return ExecRunner{}
}

// Run executes the command, enforcing the timeout when set. The returned
// Result is populated even on failure so callers can log captured output.
func (ExecRunner) Run(ctx context.Context, command Command) (Result, error) {
	if command.Name == "" {
		return Result{}, errors.New("command name is required")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if command.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, command.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, command.Name, command.Args...) //nolint:gosec
	cmd.Dir = command.Dir
	cmd.Stdin = command.Stdin
	if len(command.Env) > 0 {
		cmd.Env = append(os.Environ(), command.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	started := time.Now()
	err := cmd.Run()
	result := Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(started),
	}

	if err == nil {
		return result, nil
	}

	if runCtx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		return result, fmt.Errorf("%w after %s: %s", ErrTimedOut, command.Timeout, command.Name)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, fmt.Errorf("%s exited with status %d: %s", command.Name, result.ExitCode, TruncateOutput(result.Stderr, 512))
	}

	result.ExitCode = -1
	return result, fmt.Errorf("run %s: %w", command.Name, err)
}

// TruncateOutput trims captured process output for inclusion in error
// messages and log fields.
func TruncateOutput(output string, limit int) string {
	trimmed := strings.TrimSpace(output)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "... (truncated)"
}
