package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestBreaker(clock *fakeClock, maxFailures int) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:  maxFailures,
		ResetTimeout: time.Minute,
		Now:          clock.Now,
	})
}

func fail(err error) func(context.Context) error {
	return func(context.Context) error { return err }
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, 3)
	ctx := context.Background()
	down := errors.New("connection refused")

	for i := 0; i < 3; i++ {
		if err := cb.Execute(ctx, fail(down)); !errors.Is(err, down) {
			t.Fatalf("Execute() error = %v, want %v", err, down)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() on open circuit error = %v, want ErrCircuitOpen", err)
	}
	if called {
		t.Error("operation ran while circuit was open")
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, 2)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errors.New("x")))
	_ = cb.Execute(ctx, fail(nil))
	_ = cb.Execute(ctx, fail(errors.New("x")))
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_RejectionsDoNotCount(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, 1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(Permanent(errors.New("rejected"))))
	_ = cb.Execute(ctx, fail(context.Canceled))
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, 1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errors.New("down")))
	clock.Advance(time.Minute)
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want half-open", cb.State())
	}
	if err := cb.Execute(ctx, fail(nil)); err != nil {
		t.Fatalf("probe error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() after successful probe = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	cb := newTestBreaker(clock, 1)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail(errors.New("down")))
	clock.Advance(time.Minute)
	_ = cb.Execute(ctx, fail(errors.New("still down")))
	if cb.State() != StateOpen {
		t.Errorf("State() after failed probe = %v, want open", cb.State())
	}
}

func TestCircuitBreaker_ResetAndTransitions(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		Now:         clock.Now,
		OnStateChange: func(from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), fail(errors.New("down")))
	cb.Reset()

	want := []string{"closed->open", "open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", transitions, want)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d = %s, want %s", i, transitions[i], want[i])
		}
	}
}
