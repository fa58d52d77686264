package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTest = errors.New("test error")

func TestNewCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "test"})
	if cb.failureLimit != 5 {
		t.Errorf("failureLimit = %d, want 5", cb.failureLimit)
	}
	if cb.cooldown != 30*time.Second {
		t.Errorf("cooldown = %v, want 30s", cb.cooldown)
	}
	if cb.probeLimit != 3 {
		t.Errorf("probeLimit = %d, want 3", cb.probeLimit)
	}
	if cb.State() != StateClosed {
		t.Errorf("initial state = %v, want closed", cb.State())
	}
}

func TestBreaker_ClosedAllowsCalls(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "test", FailureLimit: 3})
	called := false
	err := cb.Do(func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("fn was not called")
	}
}

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		Name:         "test",
		FailureLimit: 3,
		Cooldown:     time.Hour, // stays open for the whole test
	})

	for i := 0; i < 3; i++ {
		_ = cb.Do(func() error { return errTest })
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after 3 failures", cb.State())
	}

	err := cb.Do(func() error { return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{Name: "test", FailureLimit: 3})

	_ = cb.Do(func() error { return errTest })
	_ = cb.Do(func() error { return errTest })
	_ = cb.Do(func() error { return nil })

	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after a success", cb.State())
	}

	_ = cb.Do(func() error { return errTest })
	_ = cb.Do(func() error { return errTest })
	if cb.State() != StateClosed {
		t.Fatal("should still be closed after 2 failures post-reset")
	}
}

func TestBreaker_CancellationDoesNotCount(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		Name:         "test",
		FailureLimit: 2,
		Cooldown:     time.Hour,
	})

	// Many cancelled calls in a row must not trip the breaker.
	for i := 0; i < 10; i++ {
		err := cb.Do(func() error { return context.Canceled })
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after cancellations only", cb.State())
	}

	// A cancellation between real failures must not reset the count either.
	_ = cb.Do(func() error { return errTest })
	_ = cb.Do(func() error { return context.Canceled })
	_ = cb.Do(func() error { return errTest })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after 2 real failures", cb.State())
	}
}

func TestBreaker_CancelledProbeDoesNotBurnBudget(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		Name:         "test",
		FailureLimit: 1,
		Cooldown:     5 * time.Millisecond,
		ProbeLimit:   1,
	})

	_ = cb.Do(func() error { return errTest })
	time.Sleep(10 * time.Millisecond)

	// A cancelled probe leaves the slot free for a real one.
	_ = cb.Do(func() error { return context.Canceled })
	if err := cb.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe after cancellation: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after successful probe", cb.State())
	}
}

func TestBreaker_CooldownLeadsToHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		Name:         "test",
		FailureLimit: 2,
		Cooldown:     10 * time.Millisecond,
		ProbeLimit:   2,
	})

	_ = cb.Do(func() error { return errTest })
	_ = cb.Do(func() error { return errTest })
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}

	time.Sleep(15 * time.Millisecond)
	if cb.State() != StateHalfOpen {
		t.Fatalf("state = %v, want half-open after cooldown", cb.State())
	}
}

func TestBreaker_ProbesCloseBreaker(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		Name:         "test",
		FailureLimit: 2,
		Cooldown:     5 * time.Millisecond,
		ProbeLimit:   2,
	})

	_ = cb.Do(func() error { return errTest })
	_ = cb.Do(func() error { return errTest })
	time.Sleep(10 * time.Millisecond)

	// Two successful probes close the breaker.
	if err := cb.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe 1: %v", err)
	}
	if err := cb.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe 2: %v", err)
	}
	if cb.State() != StateClosed {
		t.Fatalf("state = %v, want closed after successful probes", cb.State())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		Name:         "test",
		FailureLimit: 2,
		Cooldown:     5 * time.Millisecond,
		ProbeLimit:   3,
	})

	_ = cb.Do(func() error { return errTest })
	_ = cb.Do(func() error { return errTest })
	time.Sleep(10 * time.Millisecond)

	_ = cb.Do(func() error { return errTest })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, want open after failed probe", cb.State())
	}
}

func TestBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(BreakerConfig{
		Name:         "test",
		FailureLimit: 1,
		Cooldown:     time.Hour,
	})
	_ = cb.Do(func() error { return errTest })
	if cb.State() != StateOpen {
		t.Fatal("expected open")
	}
	cb.Reset()
	if cb.State() != StateClosed {
		t.Fatal("expected closed after Reset")
	}
	if err := cb.Do(func() error { return nil }); err != nil {
		t.Fatalf("call after reset: %v", err)
	}
}
