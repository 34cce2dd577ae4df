package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrToolNotFound indicates the wrapped binary is not installed.
var ErrToolNotFound = errors.New("tool binary not found")

// TimeoutError reports that a tool exceeded its execution budget. The
// runners record it as a distinct error type from ordinary failures.
type TimeoutError struct {
	Tool    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s exceeded timeout of %s", e.Tool, e.Timeout)
}

// ExecError reports a tool process failure with the captured stderr and
// exit code, so the fan-out runners can build a complete ToolError.
type ExecError struct {
	Tool     string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// runCommand executes a tool binary with a hard timeout, returning stdout.
// Timeout expiry kills the process and yields a TimeoutError; any other
// process failure yields an ExecError. allowExit lists exit codes that are
// not failures (several scanners exit non-zero when they find issues).
func runCommand(ctx context.Context, tool, bin string, timeout time.Duration, args []string, allowExit ...int) (string, error) {
	if _, err := exec.LookPath(bin); err != nil {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, bin)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return "", &TimeoutError{Tool: tool, Timeout: timeout}
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			for _, code := range allowExit {
				if exitErr.ExitCode() == code {
					return stdout.String(), nil
				}
			}
			return "", &ExecError{
				Tool:     tool,
				Stderr:   stderr.String(),
				ExitCode: exitErr.ExitCode(),
				Err:      err,
			}
		}
		return "", &ExecError{Tool: tool, Stderr: stderr.String(), ExitCode: -1, Err: err}
	}

	return stdout.String(), nil
}
