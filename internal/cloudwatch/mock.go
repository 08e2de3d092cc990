package cloudwatch

import (
	"context"
	"sync"
)

// MockSink is an in-memory MetricsSink for tests.
type MockSink struct {
	mu sync.RWMutex

	calls   int
	emitted []int64
	emitErr error
}

// NewMockSink creates an empty mock sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// FailEmit makes every Emit return the given error.
func (m *MockSink) FailEmit(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emitErr = err
}

// Emitted returns the values accepted so far.
func (m *MockSink) Emitted() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]int64(nil), m.emitted...)
}

// Calls reports how many times Emit was invoked, failures included.
func (m *MockSink) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// Emit implements MetricsSink.
func (m *MockSink) Emit(ctx context.Context, value int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.emitErr != nil {
		return EmissionError{Namespace: "mock", MetricName: "mock", Cause: m.emitErr}
	}

	m.emitted = append(m.emitted, value)
	return nil
}
