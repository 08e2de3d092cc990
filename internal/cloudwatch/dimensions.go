package cloudwatch

import (
	"strings"

	"github.com/humanmade/php-fpm-queue-monitor/internal/security"
	"github.com/humanmade/php-fpm-queue-monitor/internal/types"
	"go.uber.org/zap"
)

// ParseDimensions converts raw "key=value" strings into metric
// dimensions. The first '=' splits key from value, so values may contain
// further '=' characters. Entries without '=' or failing validation are
// logged and dropped; they never abort startup.
func ParseDimensions(raw []string, logger *zap.Logger) []types.Dimension {
	if len(raw) == 0 {
		return nil
	}

	dims := make([]types.Dimension, 0, len(raw))
	for _, entry := range raw {
		name, value, found := strings.Cut(entry, "=")
		if !found {
			logger.Warn("Dropping dimension without key=value form",
				zap.String("dimension", entry))
			continue
		}

		if err := security.ValidateDimension(name, value); err != nil {
			logger.Warn("Dropping invalid dimension",
				zap.String("dimension", entry),
				zap.Error(err))
			continue
		}

		dims = append(dims, types.Dimension{Name: name, Value: value})
	}

	if len(dims) == 0 {
		return nil
	}
	return dims
}
