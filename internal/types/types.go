package types

import (
	"context"
	"time"
)

// ContainerID is an opaque handle to a running container. It is only
// meaningful for the duration of the sampling tick that produced it.
type ContainerID = string

// AggregateSample is the result of one full sampling tick: the summed
// listen-queue backlog across every matched container, plus the counts the
// observability surfaces report. The emission decision looks only at Queue.
type AggregateSample struct {
	// Queue is the summed backlog. Always >= 0; zero covers both "no
	// backlog" and "could not measure".
	Queue int64 `json:"queue"`

	// Discovered is the number of containers the runtime reported.
	Discovered int `json:"discovered"`

	// Matched is how many of those classified as the monitored workload.
	Matched int `json:"matched"`

	// Sampled is how many matched containers produced a measured value.
	Sampled int `json:"sampled"`

	// Failed is how many matched containers fell back to a zero
	// contribution because PID lookup or socket listing failed.
	Failed int `json:"failed"`

	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"`
}

// Dimension is one metric dimension attached to emitted samples.
type Dimension struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SampleSource produces one aggregated measurement per invocation.
type SampleSource interface {
	Sample(ctx context.Context) (AggregateSample, error)
}

// MetricsSink submits one aggregated queue measurement to the metrics
// backend. Implementations never buffer; a failed submission is dropped.
type MetricsSink interface {
	Emit(ctx context.Context, value int64) error
}

// Outcome labels shared by the reporting loop and the metrics surface.
const (
	TickOutcomeOK             = "ok"
	TickOutcomeDiscoveryError = "discovery_error"

	EmissionOutcomeEmitted = "emitted"
	EmissionOutcomeDryRun  = "dry_run"
	EmissionOutcomeFailed  = "failed"
	EmissionOutcomeSkipped = "skipped"
)

// HealthStatus represents the health state of the agent
type HealthStatus struct {
	Overall    HealthState            `json:"overall"`
	Components map[string]HealthState `json:"components"`
	Updated    time.Time              `json:"updated"`
}

// HealthState represents the health of a component
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateUnhealthy HealthState = "unhealthy"
	HealthStateUnknown   HealthState = "unknown"
	HealthStateStarting  HealthState = "starting"
	HealthStateStopping  HealthState = "stopping"
)
