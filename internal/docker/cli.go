package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/security"
	"go.uber.org/zap"
)

const defaultBinary = "docker"

// CLI implements ContainerRuntime by invoking the docker binary. Every
// invocation is bounded by the configured timeout; a timeout surfaces as
// the failed operation's error, never as a hung tick.
type CLI struct {
	binary  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewCLI creates a docker CLI adapter with a per-invocation timeout.
func NewCLI(timeout time.Duration, logger *zap.Logger) *CLI {
	return &CLI{
		binary:  defaultBinary,
		timeout: timeout,
		logger:  logger.Named("docker"),
	}
}

// ListContainers runs `docker ps -q` and returns the reported IDs.
// Lines that do not look like container IDs are dropped with a warning
// rather than passed on to later argv interpolation.
func (c *CLI) ListContainers(ctx context.Context) ([]string, error) {
	output, err := c.run(ctx, "ps", "-q")
	if err != nil {
		return nil, &RuntimeError{Op: "ps", Err: err}
	}

	ids := parseContainerList(output)
	valid := ids[:0]
	for _, id := range ids {
		if err := security.ValidateContainerID(id); err != nil {
			c.logger.Warn("Dropping unparseable container ID from runtime listing",
				zap.String("id", id),
				zap.Error(err))
			continue
		}
		valid = append(valid, id)
	}

	return valid, nil
}

// Command runs `docker inspect <id> --format '{{json .Config.Cmd}}'` and
// decodes the launch command tokens.
func (c *CLI) Command(ctx context.Context, id string) ([]string, error) {
	if err := security.ValidateContainerID(id); err != nil {
		return nil, &RuntimeError{Op: "inspect", ContainerID: id, Err: err}
	}

	output, err := c.run(ctx, "inspect", id, "--format", "{{json .Config.Cmd}}")
	if err != nil {
		return nil, &RuntimeError{Op: "inspect", ContainerID: id, Err: err}
	}

	cmd, err := parseLaunchCommand(output)
	if err != nil {
		return nil, &RuntimeError{Op: "inspect", ContainerID: id, Err: err}
	}

	return cmd, nil
}

// MainPID runs `docker inspect -f '{{.State.Pid}}' <id>` and parses the
// host PID of the container's top-level process.
func (c *CLI) MainPID(ctx context.Context, id string) (int, error) {
	if err := security.ValidateContainerID(id); err != nil {
		return 0, &RuntimeError{Op: "inspect", ContainerID: id, Err: err}
	}

	output, err := c.run(ctx, "inspect", "-f", "{{.State.Pid}}", id)
	if err != nil {
		return 0, &RuntimeError{Op: "inspect", ContainerID: id, Err: err}
	}

	pid, err := parseMainPID(output)
	if err != nil {
		return 0, &RuntimeError{Op: "inspect", ContainerID: id, Err: err}
	}

	return pid, nil
}

// run executes one docker invocation under the per-call timeout.
func (c *CLI) run(ctx context.Context, args ...string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.binary, args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if stderr != "" {
				return nil, fmt.Errorf("%w: %s", err, stderr)
			}
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("command timed out: %w", ctx.Err())
		}
		return nil, err
	}

	return output, nil
}

// parseContainerList splits `docker ps -q` output into trimmed IDs.
func parseContainerList(output []byte) []string {
	var ids []string
	for _, line := range strings.Split(string(output), "\n") {
		id := strings.TrimSpace(line)
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// parseLaunchCommand decodes the `{{json .Config.Cmd}}` template output.
// Docker prints the JSON literal null when no command is configured.
func parseLaunchCommand(output []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(output)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	var cmd []string
	if err := json.Unmarshal(trimmed, &cmd); err != nil {
		return nil, fmt.Errorf("launch command is not a JSON token array: %w", err)
	}

	return cmd, nil
}

// parseMainPID parses the `{{.State.Pid}}` template output. Docker reports
// PID 0 for containers without a running process.
func parseMainPID(output []byte) (int, error) {
	trimmed := strings.TrimSpace(string(output))

	pid, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("unparseable PID %q: %w", trimmed, err)
	}

	if pid <= 0 {
		return 0, fmt.Errorf("container has no running process (pid %d)", pid)
	}

	return pid, nil
}
