// Package cloudwatch emits the aggregated listen-queue measurement to
// Amazon CloudWatch as a single high-resolution metric datum per tick.
package cloudwatch

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cw "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/humanmade/php-fpm-queue-monitor/internal/config"
	"github.com/humanmade/php-fpm-queue-monitor/internal/types"
	"go.uber.org/zap"
)

// highResolutionStorage stores datums at one-second granularity, which
// keeps sub-minute sampling intervals visible in CloudWatch.
const highResolutionStorage = 1

// metricsClient is the slice of the CloudWatch API the emitter uses.
type metricsClient interface {
	PutMetricData(ctx context.Context, params *cw.PutMetricDataInput, optFns ...func(*cw.Options)) (*cw.PutMetricDataOutput, error)
}

// newMetricsClient builds the production client; tests swap it out.
var newMetricsClient = func(cfg aws.Config) metricsClient {
	return cw.NewFromConfig(cfg)
}

// Emitter ships one metric datum per call to CloudWatch.
type Emitter struct {
	client     metricsClient
	namespace  string
	metricName string
	dimensions []cwtypes.Dimension
	logger     *zap.Logger
}

// NewEmitter resolves AWS configuration through the default provider
// chain (environment, shared config, instance role) and prepares the
// datum template. Malformed dimensions are logged and dropped here, not
// at emission time.
func NewEmitter(ctx context.Context, cfg config.CloudWatchConfig, logger *zap.Logger) (*Emitter, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	log := logger.Named("cloudwatch")

	return &Emitter{
		client:     newMetricsClient(awsCfg),
		namespace:  cfg.Namespace,
		metricName: cfg.MetricName,
		dimensions: toSDKDimensions(ParseDimensions(cfg.Dimensions, log)),
		logger:     log,
	}, nil
}

// Emit submits value as one datum. Failures come back as EmissionError;
// the datum is not retried and the measurement is lost.
func (e *Emitter) Emit(ctx context.Context, value int64) error {
	datum := cwtypes.MetricDatum{
		MetricName:        aws.String(e.metricName),
		Value:             aws.Float64(float64(value)),
		Unit:              cwtypes.StandardUnitCount,
		Timestamp:         aws.Time(time.Now().UTC()),
		StorageResolution: aws.Int32(highResolutionStorage),
	}
	if len(e.dimensions) > 0 {
		datum.Dimensions = e.dimensions
	}

	_, err := e.client.PutMetricData(ctx, &cw.PutMetricDataInput{
		Namespace:  aws.String(e.namespace),
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return EmissionError{
			Namespace:  e.namespace,
			MetricName: e.metricName,
			Cause:      err,
		}
	}

	e.logger.Debug("Metric datum submitted",
		zap.String("namespace", e.namespace),
		zap.String("metric_name", e.metricName),
		zap.Int64("value", value))

	return nil
}

func toSDKDimensions(dims []types.Dimension) []cwtypes.Dimension {
	if len(dims) == 0 {
		return nil
	}

	out := make([]cwtypes.Dimension, 0, len(dims))
	for _, d := range dims {
		out = append(out, cwtypes.Dimension{
			Name:  aws.String(d.Name),
			Value: aws.String(d.Value),
		})
	}
	return out
}

// EmissionError reports a failed CloudWatch submission. The reporting
// loop logs it and keeps ticking.
type EmissionError struct {
	Namespace  string
	MetricName string
	Cause      error
}

func (e EmissionError) Error() string {
	return fmt.Sprintf("metric emission failed for %s/%s: %v", e.Namespace, e.MetricName, e.Cause)
}

func (e EmissionError) Unwrap() error {
	return e.Cause
}
