package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func newTestBreaker(t *testing.T, cfg CircuitBreakerConfig) *CircuitBreaker {
	t.Helper()
	return NewCircuitBreaker("test", cfg, zaptest.NewLogger(t))
}

func failN(t *testing.T, cb *CircuitBreaker, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		err := cb.Execute(context.Background(), func(context.Context) error {
			return errors.New("backend down")
		})
		if err == nil {
			t.Fatal("expected failure to propagate")
		}
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	})

	failN(t, cb, 2)
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state after 2 failures = %v, want closed", got)
	}

	failN(t, cb, 1)
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state after 3 failures = %v, want open", got)
	}
}

func TestCircuitBreakerFailsFastWhenOpen(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	})

	failN(t, cb, 1)

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	if err == nil {
		t.Fatal("expected rejection from open circuit")
	}
	if !IsCircuitBreakerError(err) {
		t.Errorf("error type = %T, want CircuitBreakerError", err)
	}
	if called {
		t.Error("protected call must not run while circuit is open")
	}
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	failN(t, cb, 1)
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state = %v, want open", got)
	}

	time.Sleep(20 * time.Millisecond)

	// First probe transitions the circuit to half-open.
	if err := cb.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("probe after recovery timeout failed: %v", err)
	}
	if got := cb.GetState(); got != StateHalfOpen {
		t.Fatalf("state after first probe = %v, want half-open", got)
	}

	// Second success reaches the threshold and closes the circuit.
	if err := cb.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("second probe failed: %v", err)
	}
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state after success threshold = %v, want closed", got)
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  10 * time.Millisecond,
		SuccessThreshold: 2,
	})

	failN(t, cb, 1)
	time.Sleep(20 * time.Millisecond)

	failN(t, cb, 1)
	if got := cb.GetState(); got != StateOpen {
		t.Fatalf("state after half-open failure = %v, want open", got)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 2,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	})

	failN(t, cb, 1)
	if err := cb.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	failN(t, cb, 1)

	// One failure, one success, one failure: consecutive count never hit 2.
	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state = %v, want closed", got)
	}
}

func TestCircuitBreakerStats(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Minute,
		SuccessThreshold: 1,
	})

	failN(t, cb, 1)

	stats := cb.GetStats()
	if !stats.IsOpen {
		t.Error("expected IsOpen after threshold failure")
	}
	if stats.RequestCount != 1 {
		t.Errorf("RequestCount = %d, want 1", stats.RequestCount)
	}
	if stats.FailureCount != 1 {
		t.Errorf("FailureCount = %d, want 1", stats.FailureCount)
	}
	if stats.NextRetryTime.IsZero() {
		t.Error("expected NextRetryTime to be scheduled")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := newTestBreaker(t, CircuitBreakerConfig{
		FailureThreshold: 1,
		RecoveryTimeout:  time.Hour,
		SuccessThreshold: 1,
	})

	failN(t, cb, 1)
	cb.Reset()

	if got := cb.GetState(); got != StateClosed {
		t.Fatalf("state after reset = %v, want closed", got)
	}
	if err := cb.Execute(context.Background(), func(context.Context) error { return nil }); err != nil {
		t.Errorf("Execute() after reset error = %v", err)
	}
}

func TestIsCircuitBreakerError(t *testing.T) {
	if IsCircuitBreakerError(errors.New("plain")) {
		t.Error("plain error misreported as circuit rejection")
	}
	if !IsCircuitBreakerError(&CircuitBreakerError{Name: "x", State: StateOpen, Reason: "open"}) {
		t.Error("CircuitBreakerError not recognized")
	}
}
