// Package shareddb manages a database handle that is shared by the data-stores
// of several accounts.
package shareddb

import "sync"

// Handle is a database that is opened when the first data-store is acquired
// and closed when the last one is released.
//
// The zero-value is ready to use.
type Handle[DB any] struct {
	m     sync.Mutex
	db    DB
	refs  int
	close func(DB) error
}

// Acquire returns the database for use by a single data-store.
//
// If the database is not in use, it is opened by calling open. close is
// retained to be called once every data-store has been released.
//
// claim is called with the database to lay claim to the data-store's account.
// If it fails the error is returned, and the database is closed if no other
// data-store is using it. claim is called while the handle's mutex is held.
func (h *Handle[DB]) Acquire(
	open func() (DB, error),
	close func(DB) error,
	claim func(DB) error,
) (DB, error) {
	h.m.Lock()
	defer h.m.Unlock()

	var zero DB

	if h.refs == 0 {
		db, err := open()
		if err != nil {
			return zero, err
		}

		h.db = db
		h.close = close
	}

	if err := claim(h.db); err != nil {
		if h.refs == 0 {
			h.close(h.db) // nolint:errcheck
			h.db = zero
			h.close = nil
		}

		return zero, err
	}

	h.refs++

	return h.db, nil
}

// Release releases a database previously returned by Acquire().
//
// unclaim is called with the database to give up the data-store's claim on its
// account. The database is closed if no other data-store is using it. The
// first error from unclaim or closing the database is returned.
func (h *Handle[DB]) Release(unclaim func(DB) error) error {
	h.m.Lock()
	defer h.m.Unlock()

	if h.refs == 0 {
		panic("database released more times than it was acquired")
	}

	err := unclaim(h.db)

	h.refs--
	if h.refs > 0 {
		return err
	}

	var zero DB
	db, close := h.db, h.close
	h.db, h.close = zero, nil

	if cerr := close(db); err == nil {
		err = cerr
	}

	return err
}
