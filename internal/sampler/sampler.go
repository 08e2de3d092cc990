package sampler

import (
	"context"

	"github.com/humanmade/php-fpm-queue-monitor/internal/docker"
	"github.com/humanmade/php-fpm-queue-monitor/internal/sockets"
	"go.uber.org/zap"
)

// QueueSampler measures the listen queue depth of one container already
// classified as the monitored workload.
type QueueSampler struct {
	runtime    docker.ContainerRuntime
	inspector  sockets.Inspector
	socketPath string
	logger     *zap.Logger
}

// NewQueueSampler creates a sampler reading the given pool socket path.
func NewQueueSampler(runtime docker.ContainerRuntime, inspector sockets.Inspector, socketPath string, logger *zap.Logger) *QueueSampler {
	return &QueueSampler{
		runtime:    runtime,
		inspector:  inspector,
		socketPath: socketPath,
		logger:     logger.Named("sampler"),
	}
}

// Sample returns the container's current listen queue depth.
//
// A listing with no line for the pool socket, or one whose depth column
// cannot be parsed, measures as zero: the pool may not have bound its
// socket yet. Failed PID resolution and failed namespace listings return
// typed errors; the aggregator degrades both to a zero contribution.
func (s *QueueSampler) Sample(ctx context.Context, id string) (int64, error) {
	pid, err := s.runtime.MainPID(ctx, id)
	if err != nil {
		return 0, ProcessLookupError{ContainerID: id, Cause: err}
	}

	listing, err := s.inspector.ListeningSockets(ctx, pid)
	if err != nil {
		return 0, SocketListingError{ContainerID: id, PID: pid, Cause: err}
	}

	queue, ok := sockets.ParseListenQueue(listing, s.socketPath)
	if !ok {
		s.logger.Debug("No measurable pool socket in listing",
			zap.String("container_id", id),
			zap.String("socket_path", s.socketPath))
		return 0, nil
	}

	return queue, nil
}
