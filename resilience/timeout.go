package resilience

import (
	"context"
	"errors"
	"time"
)

// Timeout bounds a single attempt.
type Timeout struct {
	d time.Duration
}

// NewTimeout creates a Timeout. Non-positive durations default to 30s.
func NewTimeout(d time.Duration) *Timeout {
	if d <= 0 {
		d = 30 * time.Second
	}
	return &Timeout{d: d}
}

// Duration returns the effective limit.
func (t *Timeout) Duration() time.Duration {
	return t.d
}

// Execute runs op with a deadline. When the deadline set here fires, the
// returned error matches both ErrTimeout and context.DeadlineExceeded;
// a deadline inherited from ctx is returned unchanged.
func (t *Timeout) Execute(ctx context.Context, op func(context.Context) error) error {
	tctx, cancel := context.WithTimeoutCause(ctx, t.d, ErrTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(tctx) }()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(context.Cause(tctx), ErrTimeout) {
			return errors.Join(ErrTimeout, err)
		}
		return err
	case <-tctx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Join(ErrTimeout, context.DeadlineExceeded)
	}
}
