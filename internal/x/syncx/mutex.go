package syncx

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// maxReaders is the maximum number of concurrent read-locks on an RWMutex.
const maxReaders = 1 << 30

// RWMutex is a context-aware read/write mutex.
//
// A blocked call to Lock() prevents any subsequent call to RLock() from
// succeeding until the write-lock has been acquired and released.
type RWMutex struct {
	once sync.Once
	sem  *semaphore.Weighted
}

// Lock acquires an exclusive lock on the mutex.
//
// It blocks until the mutex is acquired, or ctx is canceled.
func (m *RWMutex) Lock(ctx context.Context) error {
	return m.acquire(ctx, maxReaders)
}

// Unlock releases the exclusive lock on the mutex.
//
// It panics if the mutex is not write-locked.
func (m *RWMutex) Unlock() {
	m.weighted().Release(maxReaders)
}

// RLock acquires a shared lock on the mutex.
//
// It blocks until the mutex is acquired, or ctx is canceled.
func (m *RWMutex) RLock(ctx context.Context) error {
	return m.acquire(ctx, 1)
}

// RUnlock releases a shared lock on the mutex.
//
// It panics if the mutex is not read-locked.
func (m *RWMutex) RUnlock() {
	m.weighted().Release(1)
}

func (m *RWMutex) acquire(ctx context.Context, n int64) error {
	// Weighted.Acquire() succeeds without checking ctx if the semaphore is
	// available.
	if err := ctx.Err(); err != nil {
		return err
	}

	return m.weighted().Acquire(ctx, n)
}

func (m *RWMutex) weighted() *semaphore.Weighted {
	m.once.Do(func() {
		m.sem = semaphore.NewWeighted(maxReaders)
	})

	return m.sem
}
