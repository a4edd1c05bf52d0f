package retry

import (
	"context"
	"errors"

	"github.com/dogmatiq/linger"
)

// Func is an operation that can be retried.
//
// attempt is the 1-based number of the current attempt.
type Func func(ctx context.Context, attempt uint) error

// permanent is an error that must not be retried.
type permanent struct {
	cause error
}

func (e permanent) Error() string { return e.cause.Error() }
func (e permanent) Unwrap() error { return e.cause }

// Permanent marks err as an error that must not be retried.
//
// Do() returns the unwrapped error immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return permanent{err}
}

// Do calls fn until it succeeds, returns a permanent error, the maximum
// number of attempts is reached, or ctx is canceled.
//
// It returns the number of attempts that were made. If the attempts are
// exhausted, err is the error returned by the final attempt. If ctx is canceled
// while waiting to retry, err is ctx.Err(), so that cancellation is always
// distinguishable from exhaustion.
func Do(ctx context.Context, p Policy, fn Func) (attempts uint, err error) {
	max := p.Attempts()

	for {
		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}

		attempts++
		err = fn(ctx, attempts)

		if err == nil {
			return attempts, nil
		}

		var perm permanent
		if errors.As(err, &perm) {
			return attempts, perm.cause
		}

		if ctx.Err() != nil {
			return attempts, ctx.Err()
		}

		if attempts >= max {
			return attempts, err
		}

		if err := linger.Sleep(ctx, p.Delay(err, attempts)); err != nil {
			return attempts, err
		}
	}
}
