package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// CommandRunner defines the interface for running external commands
// This allows mocking exec.Command in tests
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)

	// Start launches a command and returns its stdout as a stream.
	// Closing the stream waits for the process; the context kills it.
	Start(ctx context.Context, name string, args ...string) (io.ReadCloser, error)
}

// ExecCommandRunner is the production implementation using os/exec
type ExecCommandRunner struct{}

// Run executes a command and returns any error, including the tail of stderr
func (r *ExecCommandRunner) Run(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return withStderr(err, stderr.String())
	}
	return nil
}

// Output executes a command and returns its output
func (r *ExecCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return out, withStderr(err, string(exitErr.Stderr))
		}
		return out, err
	}
	return out, nil
}

// Start executes a command and streams its stdout
func (r *ExecCommandRunner) Start(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return &processStream{ReadCloser: stdout, cmd: cmd}, nil
}

// processStream ties the lifetime of a child process to its stdout pipe
type processStream struct {
	io.ReadCloser
	cmd *exec.Cmd
}

// Close stops reading and reaps the process. A process killed because the
// reader stopped early is not an error.
func (p *processStream) Close() error {
	_ = p.ReadCloser.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	_ = p.cmd.Wait()
	return nil
}

func withStderr(err error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return err
	}
	// ffmpeg prints the banner first; the cause is at the end
	if len(stderr) > 512 {
		stderr = "..." + stderr[len(stderr)-512:]
	}
	return fmt.Errorf("%w: %s", err, stderr)
}

// VerifyInstalled checks that the binary at path is available
func VerifyInstalled(ctx context.Context, runner CommandRunner, path string) error {
	_, err := runner.Output(ctx, path, "-version")
	if err != nil {
		return fmt.Errorf("%s not found or not executable: %w", path, err)
	}
	return nil
}
