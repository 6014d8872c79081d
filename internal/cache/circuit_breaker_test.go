package cache

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(maxFailures int, timeout time.Duration, halfOpenCalls int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(&CircuitBreakerConfig{
		MaxFailures:      maxFailures,
		Timeout:          timeout,
		HalfOpenMaxCalls: halfOpenCalls,
	})
	cb.now = clock.Now
	return cb, clock
}

var errBoom = errors.New("boom")

func TestCircuitBreakerBasicFlow(t *testing.T) {
	cb, _ := newTestBreaker(3, time.Second, 1)

	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected initial state to be Closed, got %v", cb.GetState())
	}

	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected state to remain Closed after success, got %v", cb.GetState())
	}
}

func TestCircuitBreakerFailureTransition(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Second, 1)

	if err := cb.Execute(func() error { return errBoom }); !errors.Is(err, errBoom) {
		t.Errorf("Expected operation error, got %v", err)
	}
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected state to be Closed after first failure, got %v", cb.GetState())
	}

	cb.Execute(func() error { return errBoom })
	if cb.GetState() != CircuitBreakerOpen {
		t.Errorf("Expected state to be Open after reaching failure threshold, got %v", cb.GetState())
	}

	err := cb.Execute(func() error {
		t.Error("Operation should not be executed when circuit is open")
		return nil
	})
	if !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Errorf("Expected ErrCircuitBreakerOpen, got %v", err)
	}
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(2, time.Second, 1)

	cb.Execute(func() error { return errBoom })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errBoom })

	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected non-consecutive failures to keep the circuit closed, got %v", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(1, time.Second, 2)

	cb.Execute(func() error { return errBoom })
	clock.Advance(500 * time.Millisecond)
	if err := cb.Execute(func() error { return nil }); !errors.Is(err, ErrCircuitBreakerOpen) {
		t.Fatalf("Expected breaker to stay open before timeout, got %v", err)
	}

	clock.Advance(time.Second)

	executed := false
	if err := cb.Execute(func() error { executed = true; return nil }); err != nil {
		t.Fatalf("Expected trial call to succeed, got %v", err)
	}
	if !executed {
		t.Error("Expected operation to be executed in half-open state")
	}
	if cb.GetState() != CircuitBreakerHalfOpen {
		t.Errorf("Expected HalfOpen after one of two trial calls, got %v", cb.GetState())
	}

	cb.Execute(func() error { return nil })
	if cb.GetState() != CircuitBreakerClosed {
		t.Errorf("Expected Closed after trial calls succeed, got %v", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(3, time.Second, 1)

	for i := 0; i < 3; i++ {
		cb.Execute(func() error { return fmt.Errorf("failure %d", i) })
	}
	clock.Advance(2 * time.Second)

	cb.Execute(func() error { return errBoom })
	if cb.GetState() != CircuitBreakerOpen {
		t.Errorf("Expected a failed trial call to reopen the circuit, got %v", cb.GetState())
	}
}

func TestCircuitBreakerStats(t *testing.T) {
	cb, _ := newTestBreaker(1, 30*time.Second, 1)
	cb.Execute(func() error { return errBoom })

	stats := cb.GetStats()
	if stats["state"] != "open" {
		t.Errorf("Expected state open, got %v", stats["state"])
	}
	if stats["failure_count"] != 1 {
		t.Errorf("Expected failure_count 1, got %v", stats["failure_count"])
	}
	if stats["timeout_seconds"] != 30.0 {
		t.Errorf("Expected timeout_seconds 30, got %v", stats["timeout_seconds"])
	}
}

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(nil)
	if cb.maxFailures != 5 || cb.timeout != 30*time.Second {
		t.Errorf("Unexpected defaults: maxFailures=%d timeout=%v", cb.maxFailures, cb.timeout)
	}

	cb = NewCircuitBreaker(&CircuitBreakerConfig{})
	if cb.maxFailures != 1 || cb.halfOpenMaxCalls != 1 {
		t.Errorf("Expected zero config values to be clamped, got %d/%d", cb.maxFailures, cb.halfOpenMaxCalls)
	}
}

func TestCacheMetrics(t *testing.T) {
	m := NewCacheMetrics()

	if m.HitRate() != 0 {
		t.Errorf("Expected 0 hit rate with no traffic, got %f", m.HitRate())
	}

	m.RecordHit()
	m.RecordHit()
	m.RecordHit()
	m.RecordMiss()
	m.RecordSet()
	m.RecordError()

	snapshot := m.Snapshot()
	if snapshot.Hits != 3 || snapshot.Misses != 1 || snapshot.Sets != 1 || snapshot.Errors != 1 {
		t.Errorf("Unexpected snapshot %+v", snapshot)
	}
	if snapshot.HitRate != 75.0 {
		t.Errorf("Expected hit rate 75, got %f", snapshot.HitRate)
	}

	m.Reset()
	if m.Snapshot().Hits != 0 {
		t.Error("Expected Reset to clear counters")
	}
}
