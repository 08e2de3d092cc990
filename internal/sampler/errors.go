package sampler

import "fmt"

// DiscoveryError reports a failed container enumeration. It aborts the
// current tick; the reporting loop logs it and retries on the next tick.
// It is never fatal to the process.
type DiscoveryError struct {
	Cause error
}

func (e DiscoveryError) Error() string {
	return fmt.Sprintf("container discovery failed: %v", e.Cause)
}

func (e DiscoveryError) Unwrap() error {
	return e.Cause
}

// ClassificationError reports a container whose launch command could not
// be inspected or parsed. The container classifies as not-monitored and
// is excluded from the sample; the tick continues.
type ClassificationError struct {
	ContainerID string
	Cause       error
}

func (e ClassificationError) Error() string {
	return fmt.Sprintf("classification failed for container %s: %v", e.ContainerID, e.Cause)
}

func (e ClassificationError) Unwrap() error {
	return e.Cause
}

// ProcessLookupError reports a failed main-PID resolution for a
// container already classified as the monitored workload. The container
// contributes zero to the aggregate.
type ProcessLookupError struct {
	ContainerID string
	Cause       error
}

func (e ProcessLookupError) Error() string {
	return fmt.Sprintf("process lookup failed for container %s: %v", e.ContainerID, e.Cause)
}

func (e ProcessLookupError) Unwrap() error {
	return e.Cause
}

// SocketListingError reports a failed namespace entry or socket listing.
// The container contributes zero to the aggregate.
type SocketListingError struct {
	ContainerID string
	PID         int
	Cause       error
}

func (e SocketListingError) Error() string {
	return fmt.Sprintf("socket listing failed for container %s (pid %d): %v", e.ContainerID, e.PID, e.Cause)
}

func (e SocketListingError) Unwrap() error {
	return e.Cause
}
