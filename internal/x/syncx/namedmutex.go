package syncx

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// UnlockFunc is a function used to unlock a previously locked mutex.
type UnlockFunc func()

// MutexNamespace is a set of context-aware mutexes identified by name.
//
// The zero-value is ready to use. A name occupies memory only while its mutex
// is locked, or a Lock() call for it is pending.
type MutexNamespace struct {
	m     sync.Mutex
	locks map[string]*namedLock
}

type namedLock struct {
	sem  *semaphore.Weighted
	refs int // pending or successful Lock() calls, guarded by MutexNamespace.m
}

// Lock acquires an exclusive lock on the mutex with the given name.
//
// It blocks until the mutex is acquired, or ctx is canceled. The returned
// function unlocks the mutex, calls after the first have no effect.
func (ns *MutexNamespace) Lock(ctx context.Context, n string) (UnlockFunc, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := ns.ref(n)

	if err := l.sem.Acquire(ctx, 1); err != nil {
		ns.unref(n, l)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.sem.Release(1)
			ns.unref(n, l)
		})
	}, nil
}

// ref returns the lock with the given name, creating it if necessary, and
// increments its reference count.
func (ns *MutexNamespace) ref(n string) *namedLock {
	ns.m.Lock()
	defer ns.m.Unlock()

	if ns.locks == nil {
		ns.locks = map[string]*namedLock{}
	}

	l, ok := ns.locks[n]
	if !ok {
		l = &namedLock{sem: semaphore.NewWeighted(1)}
		ns.locks[n] = l
	}

	l.refs++

	return l
}

// unref decrements the reference count of l, and forgets it once it is
// unused.
func (ns *MutexNamespace) unref(n string, l *namedLock) {
	ns.m.Lock()
	defer ns.m.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(ns.locks, n)
	}
}
