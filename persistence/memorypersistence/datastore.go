package memorypersistence

import (
	"context"
	"sync/atomic"

	"github.com/dogmatiq/courier/persistence"
)

// dataStore is an implementation of persistence.DataStore for the in-memory
// persistence provider.
type dataStore struct {
	db     *database
	closed uint32 // atomic
}

// newDataStore returns a new data-store.
func newDataStore(db *database) *dataStore {
	return &dataStore{
		db: db,
	}
}

// Persist commits a batch of operations atomically.
//
// If any one of the operations causes an optimistic concurrency conflict
// the entire batch is aborted and a ConflictError is returned.
func (ds *dataStore) Persist(
	ctx context.Context,
	b persistence.Batch,
) error {
	b.MustValidate()

	if err := ds.checkOpen(); err != nil {
		return err
	}

	ds.db.Lock()
	defer ds.db.Unlock()

	// Validate the entire batch before applying any of it, so that a failure
	// leaves the database untouched.
	if err := b.AcceptVisitor(ctx, &validator{ds.db}); err != nil {
		return err
	}

	return b.AcceptVisitor(ctx, &committer{ds.db})
}

// Close closes the data store.
//
// Closing a data-store causes any future calls to Persist() to return
// ErrDataStoreClosed.
func (ds *dataStore) Close() error {
	if !atomic.CompareAndSwapUint32(&ds.closed, 0, 1) {
		return persistence.ErrDataStoreClosed
	}

	ds.db.Close()

	return nil
}

// checkOpen returns an error if the data-store is closed.
func (ds *dataStore) checkOpen() error {
	if atomic.LoadUint32(&ds.closed) != 0 {
		return persistence.ErrDataStoreClosed
	}

	return nil
}

// validator is an implementation of persistence.OperationVisitor that
// validates operations against the current state of the database.
type validator struct {
	db *database
}

// committer is an implementation of persistence.OperationVisitor that
// applies operations to the database.
//
// It is expected that the operations have already been validated using
// validator.
type committer struct {
	db *database
}
