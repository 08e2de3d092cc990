// Package docker queries the container runtime through its CLI.
//
// The sampling pipeline only needs three lookups: the running container
// IDs, a container's configured launch command, and the host PID of a
// container's main process. Everything else the runtime knows is out of
// scope, so the interface stays deliberately narrow and the production
// adapter shells out to the docker binary instead of carrying a client SDK.
package docker

import (
	"context"
	"fmt"
)

// ContainerRuntime is the query surface the sampling pipeline depends on.
// Implementations must be safe for concurrent use; the aggregator issues
// per-container lookups in parallel.
type ContainerRuntime interface {
	// ListContainers returns the IDs of all currently running containers.
	// Order carries no meaning.
	ListContainers(ctx context.Context) ([]string, error)

	// Command returns the container's configured launch command as an
	// ordered token sequence. A nil slice means the runtime reported no
	// command (image ENTRYPOINT only).
	Command(ctx context.Context, id string) ([]string, error)

	// MainPID returns the host-visible PID of the container's top-level
	// process.
	MainPID(ctx context.Context, id string) (int, error)
}

// RuntimeError wraps a failed runtime query with its operation and, when
// per-container, the container it concerned.
type RuntimeError struct {
	Op          string
	ContainerID string
	Err         error
}

func (e *RuntimeError) Error() string {
	if e.ContainerID != "" {
		return fmt.Sprintf("docker %s failed for container %s: %v", e.Op, e.ContainerID, e.Err)
	}
	return fmt.Sprintf("docker %s failed: %v", e.Op, e.Err)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
