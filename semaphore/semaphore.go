package semaphore

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Semaphore bounds the number of delivery attempts that are in progress at
// once, across all destinations.
//
// The zero value places no bound on the number of attempts. A Semaphore must
// not be copied after its first use.
type Semaphore struct {
	limit int64
	slots *semaphore.Weighted
}

// New returns a semaphore with n attempt slots.
//
// If n is zero or less the semaphore is unbounded.
func New(n int) Semaphore {
	if n <= 0 {
		return Semaphore{}
	}

	return Semaphore{
		limit: int64(n),
		slots: semaphore.NewWeighted(int64(n)),
	}
}

// Limit returns the number of attempt slots, or 0 if there is no bound.
func (s *Semaphore) Limit() int {
	return int(s.limit)
}

// Acquire reserves a slot for an attempt, blocking until one is free.
//
// If ctx is already canceled it returns ctx.Err() without reserving a slot,
// even when one is free.
func (s *Semaphore) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.slots == nil {
		return nil
	}

	return s.slots.Acquire(ctx, 1)
}

// Release frees the slot reserved by a prior call to Acquire().
func (s *Semaphore) Release() {
	if s.slots != nil {
		s.slots.Release(1)
	}
}
