package docker

import (
	"context"
	"fmt"
	"sync"
)

// MockRuntime is a configurable in-memory ContainerRuntime for tests.
type MockRuntime struct {
	mu sync.RWMutex

	containers []string
	commands   map[string][]string
	pids       map[string]int

	listErr    error
	commandErr map[string]error
	pidErr     map[string]error

	listCalls int
}

// NewMockRuntime creates an empty mock runtime.
func NewMockRuntime() *MockRuntime {
	return &MockRuntime{
		commands:   make(map[string][]string),
		pids:       make(map[string]int),
		commandErr: make(map[string]error),
		pidErr:     make(map[string]error),
	}
}

// AddContainer registers a running container with its launch command and
// main PID.
func (m *MockRuntime) AddContainer(id string, command []string, pid int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.containers = append(m.containers, id)
	m.commands[id] = command
	m.pids[id] = pid
}

// SetContainers replaces the container listing wholesale.
func (m *MockRuntime) SetContainers(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers = append([]string(nil), ids...)
}

// FailList makes ListContainers return the given error.
func (m *MockRuntime) FailList(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listErr = err
}

// FailCommand makes Command fail for one container.
func (m *MockRuntime) FailCommand(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commandErr[id] = err
}

// FailPID makes MainPID fail for one container.
func (m *MockRuntime) FailPID(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pidErr[id] = err
}

// ListCalls reports how many times ListContainers was invoked.
func (m *MockRuntime) ListCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listCalls
}

// ListContainers implements ContainerRuntime.
func (m *MockRuntime) ListContainers(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	m.listCalls++
	err := m.listErr
	ids := append([]string(nil), m.containers...)
	m.mu.Unlock()

	if err != nil {
		return nil, &RuntimeError{Op: "ps", Err: err}
	}
	return ids, nil
}

// Command implements ContainerRuntime.
func (m *MockRuntime) Command(ctx context.Context, id string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.commandErr[id]; ok {
		return nil, &RuntimeError{Op: "inspect", ContainerID: id, Err: err}
	}

	cmd, ok := m.commands[id]
	if !ok {
		return nil, &RuntimeError{Op: "inspect", ContainerID: id, Err: fmt.Errorf("no such container")}
	}

	return append([]string(nil), cmd...), nil
}

// MainPID implements ContainerRuntime.
func (m *MockRuntime) MainPID(ctx context.Context, id string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.pidErr[id]; ok {
		return 0, &RuntimeError{Op: "inspect", ContainerID: id, Err: err}
	}

	pid, ok := m.pids[id]
	if !ok {
		return 0, &RuntimeError{Op: "inspect", ContainerID: id, Err: fmt.Errorf("no such container")}
	}

	return pid, nil
}
