package sockets

import (
	"context"
	"fmt"
	"sync"
)

// MockInspector is a configurable in-memory Inspector for tests.
type MockInspector struct {
	mu       sync.RWMutex
	listings map[int]string
	errs     map[int]error
	calls    int
}

// NewMockInspector creates an empty mock inspector.
func NewMockInspector() *MockInspector {
	return &MockInspector{
		listings: make(map[int]string),
		errs:     make(map[int]error),
	}
}

// SetListing registers the raw listing returned for a PID.
func (m *MockInspector) SetListing(pid int, listing string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listings[pid] = listing
}

// Fail makes ListeningSockets fail for one PID.
func (m *MockInspector) Fail(pid int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[pid] = err
}

// Calls reports how many times ListeningSockets was invoked.
func (m *MockInspector) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

// ListeningSockets implements Inspector.
func (m *MockInspector) ListeningSockets(ctx context.Context, pid int) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.errs[pid]; ok {
		return "", err
	}

	listing, ok := m.listings[pid]
	if !ok {
		return "", fmt.Errorf("no namespace for pid %d", pid)
	}

	return listing, nil
}
