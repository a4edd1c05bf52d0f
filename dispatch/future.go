package dispatch

import (
	"context"
)

// Future is the eventual outcome of a non-durable send.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{
		done: make(chan struct{}),
	}
}

// Done returns a channel that is closed when the send has completed.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Err returns the outcome of the send.
//
// It returns nil if the send succeeded, or has not yet completed.
func (f *Future) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Wait blocks until the send has completed and returns its outcome.
//
// If ctx is canceled first, it returns ctx.Err(). The send itself is not
// affected.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.done:
		return f.err
	}
}

// resolve completes the future with the given outcome.
func (f *Future) resolve(err error) {
	f.err = err
	close(f.done)
}
