package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"time"
)

// ExitCommandNotFound is reported when the binary itself could not be started.
const ExitCommandNotFound int32 = 127

// DefaultWaitDelay bounds how long a cancelled command may keep its pipes open.
const DefaultWaitDelay = 5 * time.Second

// CommandRunner abstracts external command execution for gateway adapters.
// Output is stdout and stderr interleaved, the way a terminal would show it.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, int32, error)
}

// ExecRunner executes commands on the local host.
type ExecRunner struct {
	// WaitDelay is the grace period after cancellation before the process is
	// killed outright. Zero uses DefaultWaitDelay.
	WaitDelay time.Duration
}

// tools command-runner implementation backed by os/exec.
func (r ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, int32, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultWaitDelay
	}
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()
	if err == nil {
		return combined.Bytes(), 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return combined.Bytes(), int32(exitErr.ExitCode()), errors.Join(err, ctxErr)
		}
		return combined.Bytes(), int32(exitErr.ExitCode()), err
	}

	exitCode := int32(1)
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		exitCode = ExitCommandNotFound
	}
	return combined.Bytes(), exitCode, err
}

// TimeoutRunner bounds every command run through Runner by Timeout.
// A zero Timeout leaves the caller's context untouched.
type TimeoutRunner struct {
	Runner  CommandRunner
	Timeout time.Duration
}

func (r TimeoutRunner) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, int32, error) {
	runner := r.Runner
	if runner == nil {
		runner = ExecRunner{}
	}
	if r.Timeout <= 0 {
		return runner.Run(ctx, dir, name, args...)
	}
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	return runner.Run(ctx, dir, name, args...)
}
