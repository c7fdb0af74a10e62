package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

// DefaultConnectTimeout bounds connection establishment for copies and probes
const DefaultConnectTimeout = 5 * time.Second

// CommandResult captures the output of one remote command invocation
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Channel abstracts running commands on and copying files to/from a host.
// All operations are blocking; callers sequence them as needed.
type Channel interface {
	// CopyTo copies a local file to a path on the remote host
	CopyTo(ctx context.Context, localPath, remotePath string) error
	// CopyFrom copies a remote file to a local path
	CopyFrom(ctx context.Context, remotePath, localPath string) error
	// Run executes a shell command on the remote host.
	// The command string must already be fully quoted (see Quote).
	Run(ctx context.Context, command string) (CommandResult, error)
	// Probe checks host reachability within timeout. It must fail rather
	// than block on an interactive credential prompt.
	Probe(ctx context.Context, timeout time.Duration) error
}

// commandRunner abstracts local process execution for testability
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (CommandResult, error)
}

// execRunner executes commands via os/exec
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}
	return result, nil
}

// SSHChannel runs commands over ssh and copies files with scp.
// It relies on an already-configured ssh setup (keys, known_hosts);
// it never prompts for credentials.
type SSHChannel struct {
	host           string
	connectTimeout time.Duration
	runner         commandRunner
}

// NewSSHChannel creates a channel for the given host (user@host or hostname)
func NewSSHChannel(host string) *SSHChannel {
	return &SSHChannel{
		host:           host,
		connectTimeout: DefaultConnectTimeout,
		runner:         execRunner{},
	}
}

// Host returns the remote host identifier
func (c *SSHChannel) Host() string {
	return c.host
}

// SetConnectTimeout overrides the connection timeout used for all operations
func (c *SSHChannel) SetConnectTimeout(d time.Duration) {
	c.connectTimeout = d
}

func (c *SSHChannel) connectArgs() []string {
	secs := int(c.connectTimeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	return []string{"-o", "ConnectTimeout=" + strconv.Itoa(secs)}
}

// CopyTo copies a local file to remotePath on the host
func (c *SSHChannel) CopyTo(ctx context.Context, localPath, remotePath string) error {
	args := append(c.connectArgs(), localPath, c.host+":"+remotePath)
	result, err := c.runner.Run(ctx, "scp", args...)
	if err != nil {
		return fmt.Errorf("scp to %s:%s failed: %w (stderr: %s)", c.host, remotePath, err, result.Stderr)
	}
	return nil
}

// CopyFrom copies remotePath on the host to a local file
func (c *SSHChannel) CopyFrom(ctx context.Context, remotePath, localPath string) error {
	args := append(c.connectArgs(), c.host+":"+remotePath, localPath)
	result, err := c.runner.Run(ctx, "scp", args...)
	if err != nil {
		return fmt.Errorf("scp from %s:%s failed: %w (stderr: %s)", c.host, remotePath, err, result.Stderr)
	}
	return nil
}

// Run executes command in the remote shell and returns its output.
// A non-zero remote exit is reported through CommandResult with a non-nil
// error from the underlying ssh invocation.
func (c *SSHChannel) Run(ctx context.Context, command string) (CommandResult, error) {
	args := append(c.connectArgs(), c.host, command)
	return c.runner.Run(ctx, "ssh", args...)
}

// Probe verifies the host accepts non-interactive ssh within timeout.
// BatchMode prevents credential prompts so an unreachable or
// misconfigured host fails quickly instead of hanging.
func (c *SSHChannel) Probe(ctx context.Context, timeout time.Duration) error {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	ctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()

	args := []string{
		"-o", "ConnectTimeout=" + strconv.Itoa(secs),
		"-o", "BatchMode=yes",
		c.host,
		"echo ok",
	}
	result, err := c.runner.Run(ctx, "ssh", args...)
	if err != nil {
		return fmt.Errorf("host %s is not reachable: %w (stderr: %s)", c.host, err, result.Stderr)
	}
	return nil
}

// NewSSHChannelForTests creates a channel with an injected runner
func NewSSHChannelForTests(host string, runner commandRunner) *SSHChannel {
	return &SSHChannel{
		host:           host,
		connectTimeout: DefaultConnectTimeout,
		runner:         runner,
	}
}
