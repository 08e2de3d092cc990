// Package resilience guards the emission path with a circuit breaker so
// a flapping metrics backend costs one fast-failed call per tick instead
// of a blocking API timeout.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig contains configuration for circuit breaker behavior
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures required to
	// open the circuit
	FailureThreshold int `yaml:"failure_threshold" json:"failure_threshold"`

	// RecoveryTimeout is how long to wait before attempting recovery
	RecoveryTimeout time.Duration `yaml:"recovery_timeout" json:"recovery_timeout"`

	// SuccessThreshold is the number of successes required in half-open
	// state to close the circuit
	SuccessThreshold int `yaml:"success_threshold" json:"success_threshold"`
}

// DefaultCircuitBreakerConfig provides defaults tuned for a sink called
// once per sampling tick.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 2,
	}
}

// CircuitBreakerStats provides metrics about circuit breaker operation
type CircuitBreakerStats struct {
	State            CircuitState `json:"state"`
	FailureCount     int64        `json:"failure_count"`
	SuccessCount     int64        `json:"success_count"`
	RequestCount     int64        `json:"request_count"`
	LastFailureTime  time.Time    `json:"last_failure_time,omitempty"`
	LastSuccessTime  time.Time    `json:"last_success_time,omitempty"`
	StateChangedTime time.Time    `json:"state_changed_time"`
	NextRetryTime    time.Time    `json:"next_retry_time,omitempty"`
	IsOpen           bool         `json:"is_open"`
}

// CircuitBreaker implements a three-state breaker: closed passes calls
// through, open fails them fast, half-open lets a single probe through to
// test recovery.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger *zap.Logger
	name   string

	mu               sync.RWMutex
	state            CircuitState
	failureCount     int64
	successCount     int64
	requestCount     int64
	lastFailureTime  time.Time
	lastSuccessTime  time.Time
	stateChangedTime time.Time
	nextRetryTime    time.Time
	probing          bool
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration
func NewCircuitBreaker(name string, config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		config:           config,
		logger:           logger.Named("circuit-breaker").With(zap.String("name", name)),
		name:             name,
		state:            StateClosed,
		stateChangedTime: time.Now(),
	}
}

// Execute runs fn under circuit breaker protection. When the circuit is
// open it returns a CircuitBreakerError without invoking fn; callers
// treat that like any other sink failure. fn's own error is returned
// unwrapped so the caller keeps its taxonomy.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.beforeRequest(); err != nil {
		return err
	}

	start := time.Now()
	if err := fn(ctx); err != nil {
		cb.recordFailure(err, time.Since(start))
		return err
	}

	cb.recordSuccess(time.Since(start))
	return nil
}

// beforeRequest decides whether a call may proceed, transitioning an
// expired open circuit to half-open.
func (cb *CircuitBreaker) beforeRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Now().After(cb.nextRetryTime) {
			cb.setState(StateHalfOpen)
			cb.probing = true
			return nil
		}
		return &CircuitBreakerError{
			Name:   cb.name,
			State:  cb.state,
			Reason: "circuit breaker is open",
		}

	case StateHalfOpen:
		if cb.probing {
			return &CircuitBreakerError{
				Name:   cb.name,
				State:  cb.state,
				Reason: "recovery probe already in flight",
			}
		}
		cb.probing = true
		return nil
	}

	return &CircuitBreakerError{
		Name:   cb.name,
		State:  cb.state,
		Reason: "unknown circuit state",
	}
}

// recordFailure records a failure and potentially opens the circuit
func (cb *CircuitBreaker) recordFailure(err error, duration time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.requestCount++
	cb.lastFailureTime = time.Now()
	cb.probing = false

	cb.logger.Warn("Circuit breaker recorded failure",
		zap.Error(err),
		zap.Duration("duration", duration),
		zap.Int64("failure_count", cb.failureCount))

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= int64(cb.config.FailureThreshold) {
			cb.setState(StateOpen)
		}
	case StateHalfOpen:
		// Any failure in half-open immediately reopens the circuit.
		cb.setState(StateOpen)
	}
}

// recordSuccess records a success and potentially closes the circuit
func (cb *CircuitBreaker) recordSuccess(duration time.Duration) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.successCount++
	cb.requestCount++
	cb.lastSuccessTime = time.Now()
	cb.probing = false

	cb.logger.Debug("Circuit breaker recorded success",
		zap.Duration("duration", duration),
		zap.Int64("success_count", cb.successCount))

	switch cb.state {
	case StateClosed:
		cb.failureCount = 0
	case StateHalfOpen:
		if cb.successCount >= int64(cb.config.SuccessThreshold) {
			cb.setState(StateClosed)
		}
	}
}

// setState changes state and resets the counters that belong to the new
// state. Callers hold cb.mu.
func (cb *CircuitBreaker) setState(newState CircuitState) {
	oldState := cb.state
	cb.state = newState
	cb.stateChangedTime = time.Now()

	switch newState {
	case StateClosed:
		cb.failureCount = 0
		cb.successCount = 0
	case StateOpen:
		cb.nextRetryTime = time.Now().Add(cb.config.RecoveryTimeout)
		cb.successCount = 0
	case StateHalfOpen:
		cb.successCount = 0
	}

	cb.logger.Info("Circuit breaker state changed",
		zap.String("old_state", oldState.String()),
		zap.String("new_state", newState.String()),
		zap.Time("next_retry", cb.nextRetryTime))
}

// GetState returns the current circuit state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns a snapshot of breaker counters for status reporting
func (cb *CircuitBreaker) GetStats() CircuitBreakerStats {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	return CircuitBreakerStats{
		State:            cb.state,
		FailureCount:     cb.failureCount,
		SuccessCount:     cb.successCount,
		RequestCount:     cb.requestCount,
		LastFailureTime:  cb.lastFailureTime,
		LastSuccessTime:  cb.lastSuccessTime,
		StateChangedTime: cb.stateChangedTime,
		NextRetryTime:    cb.nextRetryTime,
		IsOpen:           cb.state == StateOpen,
	}
}

// Reset forces the breaker back to closed with cleared counters
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.setState(StateClosed)
	cb.requestCount = 0
	cb.probing = false
}

// CircuitBreakerError is returned when the circuit rejects a call
type CircuitBreakerError struct {
	Name   string
	State  CircuitState
	Reason string
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker %s rejected call (%s): %s", e.Name, e.State, e.Reason)
}

// IsCircuitBreakerError reports whether err is a circuit rejection rather
// than a failure of the protected call itself.
func IsCircuitBreakerError(err error) bool {
	var cbErr *CircuitBreakerError
	return errors.As(err, &cbErr)
}
