package sockets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Privilege elevation modes accepted by NewNSEnter.
const (
	SudoAuto   = "auto"
	SudoAlways = "always"
	SudoNever  = "never"
)

// NSEnter implements Inspector by entering the target process's network
// namespace with nsenter and listing unix listening sockets with ss.
// Entering a foreign namespace needs CAP_SYS_ADMIN, so the invocation is
// prefixed with sudo unless the agent already runs as root.
type NSEnter struct {
	useSudo bool
	timeout time.Duration
	logger  *zap.Logger
}

// NewNSEnter creates a namespace-entering inspector. sudoMode is one of
// SudoAuto, SudoAlways or SudoNever; SudoAuto elevates only when the
// effective UID is not root.
func NewNSEnter(sudoMode string, timeout time.Duration, logger *zap.Logger) *NSEnter {
	var useSudo bool
	switch sudoMode {
	case SudoAlways:
		useSudo = true
	case SudoNever:
		useSudo = false
	default:
		useSudo = os.Geteuid() != 0
	}

	return &NSEnter{
		useSudo: useSudo,
		timeout: timeout,
		logger:  logger.Named("sockets"),
	}
}

// ListeningSockets runs `nsenter -t <pid> -n ss -lxnH` (sudo-prefixed
// when elevation is enabled) and returns the raw listing.
func (n *NSEnter) ListeningSockets(ctx context.Context, pid int) (string, error) {
	if pid <= 0 {
		return "", fmt.Errorf("invalid target pid %d", pid)
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	args := []string{"nsenter", "-t", strconv.Itoa(pid), "-n", "ss", "-lxnH"}
	if n.useSudo {
		args = append([]string{"sudo"}, args...)
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr := strings.TrimSpace(string(exitErr.Stderr))
			if stderr != "" {
				return "", fmt.Errorf("%w: %s", err, stderr)
			}
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("socket listing timed out: %w", ctx.Err())
		}
		return "", err
	}

	return string(output), nil
}
