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

const testSocketPath = "/var/run/php-fpm/www.socket"

func listingWithQueue(queue int64) string {
	return fmt.Sprintf("u_str LISTEN 0 128 /run/systemd/private 18134 * 0\n"+
		"u_str LISTEN %d 511 %s 49947 * 0\n", queue, testSocketPath)
}

func TestQueueSamplerMeasuresDepth(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	runtime.AddContainer("c1", []string{"php-fpm"}, 4242)

	inspector := sockets.NewMockInspector()
	inspector.SetListing(4242, listingWithQueue(7))

	sampler := NewQueueSampler(runtime, inspector, testSocketPath, zaptest.NewLogger(t))

	queue, err := sampler.Sample(ctx, "c1")
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if queue != 7 {
		t.Errorf("Sample() = %d, expected 7", queue)
	}
}

func TestQueueSamplerNoMatchingSocket(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	runtime.AddContainer("c1", []string{"php-fpm"}, 4242)

	inspector := sockets.NewMockInspector()
	inspector.SetListing(4242, "u_str LISTEN 0 128 /run/systemd/private 18134 * 0\n")

	sampler := NewQueueSampler(runtime, inspector, testSocketPath, zaptest.NewLogger(t))

	queue, err := sampler.Sample(ctx, "c1")
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if queue != 0 {
		t.Errorf("Sample() = %d, expected 0 when the pool socket is absent", queue)
	}
}

func TestQueueSamplerUnparseableDepth(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	runtime.AddContainer("c1", []string{"php-fpm"}, 4242)

	inspector := sockets.NewMockInspector()
	inspector.SetListing(4242, fmt.Sprintf("u_str LISTEN ??? 511 %s 49947 * 0\n", testSocketPath))

	sampler := NewQueueSampler(runtime, inspector, testSocketPath, zaptest.NewLogger(t))

	queue, err := sampler.Sample(ctx, "c1")
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if queue != 0 {
		t.Errorf("Sample() = %d, expected 0 for unparseable depth", queue)
	}
}

func TestQueueSamplerProcessLookupFailure(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	runtime.AddContainer("c1", []string{"php-fpm"}, 4242)
	runtime.FailPID("c1", fmt.Errorf("container restarting"))

	sampler := NewQueueSampler(runtime, sockets.NewMockInspector(), testSocketPath, zaptest.NewLogger(t))

	queue, err := sampler.Sample(ctx, "c1")
	if queue != 0 {
		t.Errorf("Sample() = %d, expected 0", queue)
	}

	var lookupErr ProcessLookupError
	if !errors.As(err, &lookupErr) {
		t.Fatalf("Sample() error = %v, expected ProcessLookupError", err)
	}
	if lookupErr.ContainerID != "c1" {
		t.Errorf("ProcessLookupError.ContainerID = %q", lookupErr.ContainerID)
	}
}

func TestQueueSamplerListingFailure(t *testing.T) {
	ctx := context.Background()
	runtime := docker.NewMockRuntime()
	runtime.AddContainer("c1", []string{"php-fpm"}, 4242)

	inspector := sockets.NewMockInspector()
	inspector.Fail(4242, fmt.Errorf("nsenter: permission denied"))

	sampler := NewQueueSampler(runtime, inspector, testSocketPath, zaptest.NewLogger(t))

	queue, err := sampler.Sample(ctx, "c1")
	if queue != 0 {
		t.Errorf("Sample() = %d, expected 0", queue)
	}

	var listingErr SocketListingError
	if !errors.As(err, &listingErr) {
		t.Fatalf("Sample() error = %v, expected SocketListingError", err)
	}
	if listingErr.PID != 4242 {
		t.Errorf("SocketListingError.PID = %d, expected 4242", listingErr.PID)
	}
}
