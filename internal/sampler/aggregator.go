// Package sampler implements the per-tick sampling pipeline: enumerate
// running containers, classify each one against the workload marker, and
// measure the listen queue of every match.
//
// The pipeline's failure-isolation contract: one container's
// classification or sampling failure is contained at that container's
// boundary and contributes zero to the aggregate. Only a failed
// enumeration aborts a tick, and nothing here is ever fatal to the
// process.
package sampler

import (
	"context"
	"time"

	"github.com/humanmade/php-fpm-queue-monitor/internal/docker"
	"github.com/humanmade/php-fpm-queue-monitor/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// containerOutcome records how one container concluded within a tick.
type containerOutcome int

const (
	outcomeSkipped containerOutcome = iota
	outcomeSampled
	outcomeFailed
)

// containerSlot is one container's private accumulator slot. Slots are
// written concurrently (each goroutine owns exactly one index) and
// reduced after all workers finish.
type containerSlot struct {
	queue   int64
	outcome containerOutcome
}

// Aggregator drives one full sampling tick across all running
// containers.
type Aggregator struct {
	runtime        docker.ContainerRuntime
	classifier     *Classifier
	sampler        *QueueSampler
	maxConcurrency int
	logger         *zap.Logger
}

// NewAggregator wires the tick pipeline. maxConcurrency bounds parallel
// per-container work; values below one sample sequentially.
func NewAggregator(runtime docker.ContainerRuntime, classifier *Classifier, sampler *QueueSampler, maxConcurrency int, logger *zap.Logger) *Aggregator {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	return &Aggregator{
		runtime:        runtime,
		classifier:     classifier,
		sampler:        sampler,
		maxConcurrency: maxConcurrency,
		logger:         logger.Named("aggregator"),
	}
}

// Sample runs one tick and returns the aggregated measurement. The
// aggregate is commutative over container order. A DiscoveryError means
// the tick produced no measurement at all.
func (a *Aggregator) Sample(ctx context.Context) (types.AggregateSample, error) {
	start := time.Now()

	ids, err := a.runtime.ListContainers(ctx)
	if err != nil {
		return types.AggregateSample{}, DiscoveryError{Cause: err}
	}

	slots := make([]containerSlot, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.maxConcurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			slots[i] = a.sampleOne(gctx, id)
			return nil
		})
	}
	// Workers contain their own failures and never return errors.
	_ = g.Wait()

	sample := types.AggregateSample{
		Discovered: len(ids),
		Timestamp:  start,
	}
	for _, slot := range slots {
		switch slot.outcome {
		case outcomeSampled:
			sample.Matched++
			sample.Sampled++
			sample.Queue += slot.queue
		case outcomeFailed:
			sample.Matched++
			sample.Failed++
		}
	}
	sample.Duration = time.Since(start)

	return sample, nil
}

// sampleOne runs classify-then-measure for a single container and maps
// any failure to a zero contribution.
func (a *Aggregator) sampleOne(ctx context.Context, id string) containerSlot {
	if !a.classifier.Matches(ctx, id) {
		return containerSlot{outcome: outcomeSkipped}
	}

	queue, err := a.sampler.Sample(ctx, id)
	if err != nil {
		a.logger.Warn("Container contributes zero after failed sampling",
			zap.Error(err))
		return containerSlot{outcome: outcomeFailed}
	}

	return containerSlot{queue: queue, outcome: outcomeSampled}
}
