package sampler

import (
	"context"

	"github.com/humanmade/php-fpm-queue-monitor/internal/docker"
	"go.uber.org/zap"
)

// Classifier decides whether a container hosts the monitored workload by
// inspecting its configured launch command.
type Classifier struct {
	runtime docker.ContainerRuntime
	marker  string
	logger  *zap.Logger
}

// NewClassifier creates a classifier matching the given command marker.
func NewClassifier(runtime docker.ContainerRuntime, marker string, logger *zap.Logger) *Classifier {
	return &Classifier{
		runtime: runtime,
		marker:  marker,
		logger:  logger.Named("classifier"),
	}
}

// Matches reports whether the container's launch command carries the
// workload marker. Inspection failures classify as false with a warning;
// one container's bad state never aborts the tick.
func (c *Classifier) Matches(ctx context.Context, id string) bool {
	command, err := c.runtime.Command(ctx, id)
	if err != nil {
		c.logger.Warn("Excluding container after failed classification",
			zap.Error(ClassificationError{ContainerID: id, Cause: err}))
		return false
	}

	return containsToken(command, c.marker)
}

// containsToken tests exact token equality. A token that merely contains
// or extends the marker (php-fpm-worker, /usr/sbin/php-fpm) does not
// classify.
func containsToken(command []string, marker string) bool {
	for _, token := range command {
		if token == marker {
			return true
		}
	}
	return false
}
