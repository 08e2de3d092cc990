package sampler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/humanmade/php-fpm-queue-monitor/internal/docker"
	"github.com/humanmade/php-fpm-queue-monitor/internal/sockets"
	"go.uber.org/zap/zaptest"
)

func newTestAggregator(t *testing.T, runtime *docker.MockRuntime, inspector *sockets.MockInspector, concurrency int) *Aggregator {
	t.Helper()
	logger := zaptest.NewLogger(t)
	classifier := NewClassifier(runtime, "php-fpm", logger)
	sampler := NewQueueSampler(runtime, inspector, testSocketPath, logger)
	return NewAggregator(runtime, classifier, sampler, concurrency, logger)
}

func TestAggregatorScenario(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	inspector := sockets.NewMockInspector()

	// c1 and c3 host the workload, c2 does not; c3's pool socket is not
	// in its listing yet.
	runtime.AddContainer("c1", []string{"php-fpm", "--nodaemonize"}, 101)
	runtime.AddContainer("c2", []string{"nginx"}, 102)
	runtime.AddContainer("c3", []string{"php-fpm"}, 103)
	inspector.SetListing(101, listingWithQueue(5))
	inspector.SetListing(103, "u_str LISTEN 0 128 /run/systemd/private 18134 * 0\n")

	agg := newTestAggregator(t, runtime, inspector, 4)

	sample, err := agg.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}

	if sample.Queue != 5 {
		t.Errorf("Queue = %d, expected 5", sample.Queue)
	}
	if sample.Discovered != 3 {
		t.Errorf("Discovered = %d, expected 3", sample.Discovered)
	}
	if sample.Matched != 2 {
		t.Errorf("Matched = %d, expected 2", sample.Matched)
	}
	if sample.Sampled != 2 {
		t.Errorf("Sampled = %d, expected 2", sample.Sampled)
	}
	if sample.Failed != 0 {
		t.Errorf("Failed = %d, expected 0", sample.Failed)
	}
}

func TestAggregatorEmptyEnumeration(t *testing.T) {
	ctx := context.Background()
	agg := newTestAggregator(t, docker.NewMockRuntime(), sockets.NewMockInspector(), 4)

	sample, err := agg.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if sample.Queue != 0 || sample.Discovered != 0 || sample.Matched != 0 {
		t.Errorf("Sample() = %+v, expected empty aggregate", sample)
	}
}

func TestAggregatorDiscoveryFailureAbortsTick(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	runtime.FailList(fmt.Errorf("daemon unreachable"))

	agg := newTestAggregator(t, runtime, sockets.NewMockInspector(), 4)

	_, err := agg.Sample(ctx)
	var discoveryErr DiscoveryError
	if !errors.As(err, &discoveryErr) {
		t.Fatalf("Sample() error = %v, expected DiscoveryError", err)
	}
}

func TestAggregatorIsolation(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	inspector := sockets.NewMockInspector()

	// Five healthy workload containers and one whose PID lookup fails.
	var expected int64
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("healthy-%d", i)
		pid := 200 + i
		runtime.AddContainer(id, []string{"php-fpm"}, pid)
		inspector.SetListing(pid, listingWithQueue(int64(i+1)))
		expected += int64(i + 1)
	}
	runtime.AddContainer("broken", []string{"php-fpm"}, 299)
	runtime.FailPID("broken", fmt.Errorf("container restarting"))

	agg := newTestAggregator(t, runtime, inspector, 4)

	sample, err := agg.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if sample.Queue != expected {
		t.Errorf("Queue = %d, expected %d from the healthy containers", sample.Queue, expected)
	}
	if sample.Failed != 1 {
		t.Errorf("Failed = %d, expected 1", sample.Failed)
	}
	if sample.Sampled != 5 {
		t.Errorf("Sampled = %d, expected 5", sample.Sampled)
	}
}

func TestAggregatorCommutativity(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	inspector := sockets.NewMockInspector()

	ids := []string{"c1", "c2", "c3", "c4"}
	for i, id := range ids {
		pid := 300 + i
		runtime.AddContainer(id, []string{"php-fpm"}, pid)
		inspector.SetListing(pid, listingWithQueue(int64(10*(i+1))))
	}

	agg := newTestAggregator(t, runtime, inspector, 1)

	forward, err := agg.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}

	runtime.SetContainers("c4", "c3", "c2", "c1")
	reversed, err := agg.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample() after reorder error = %v", err)
	}

	if forward.Queue != reversed.Queue {
		t.Errorf("Queue changed under reordering: %d vs %d", forward.Queue, reversed.Queue)
	}
	if forward.Sampled != reversed.Sampled {
		t.Errorf("Sampled changed under reordering: %d vs %d", forward.Sampled, reversed.Sampled)
	}
}

func TestAggregatorZeroState(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	inspector := sockets.NewMockInspector()

	for i := 0; i < 3; i++ {
		pid := 400 + i
		runtime.AddContainer(fmt.Sprintf("idle-%d", i), []string{"php-fpm"}, pid)
		inspector.SetListing(pid, listingWithQueue(0))
	}

	agg := newTestAggregator(t, runtime, inspector, 4)

	sample, err := agg.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if sample.Queue != 0 {
		t.Errorf("Queue = %d, expected 0", sample.Queue)
	}
	if sample.Sampled != 3 {
		t.Errorf("Sampled = %d, expected 3", sample.Sampled)
	}
}

func TestAggregatorBoundedConcurrency(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	inspector := sockets.NewMockInspector()

	var expected int64
	for i := 0; i < 16; i++ {
		pid := 500 + i
		runtime.AddContainer(fmt.Sprintf("c-%02d", i), []string{"php-fpm"}, pid)
		inspector.SetListing(pid, listingWithQueue(int64(i)))
		expected += int64(i)
	}

	agg := newTestAggregator(t, runtime, inspector, 2)

	sample, err := agg.Sample(ctx)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if sample.Queue != expected {
		t.Errorf("Queue = %d, expected %d", sample.Queue, expected)
	}
	if sample.Sampled != 16 {
		t.Errorf("Sampled = %d, expected 16", sample.Sampled)
	}
}
