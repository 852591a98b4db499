package llm

import (
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 3, ResetAfter: time.Minute})

	for i := 0; i < 2; i++ {
		cb.RecordFailure()
	}
	if ok, _ := cb.Allow(); !ok {
		t.Fatal("breaker must stay closed below threshold")
	}

	cb.RecordFailure()
	if ok, err := cb.Allow(); ok || err == nil {
		t.Fatal("breaker must open at threshold")
	}
}

func TestCircuitBreaker_HalfOpenAfterReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 1, ResetAfter: time.Millisecond})
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	ok, err := cb.Allow()
	if !ok || err != nil {
		t.Fatal("breaker must allow a test request after reset period")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("expected half-open, got %s", cb.State())
	}

	// Second request while the test is in flight is rejected.
	if ok, _ := cb.Allow(); ok {
		t.Fatal("half-open breaker must reject concurrent requests")
	}

	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Fatalf("expected closed after success, got %s", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{Threshold: 2, ResetAfter: time.Millisecond})
	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(5 * time.Millisecond)

	if ok, _ := cb.Allow(); !ok {
		t.Fatal("expected test request to be allowed")
	}
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("expected open after failed recovery test, got %s", cb.State())
	}
}
