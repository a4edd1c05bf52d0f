package boltpersistence

import (
	"context"
	"sync"

	"github.com/dogmatiq/courier/internal/x/bboltx"
	"github.com/dogmatiq/courier/internal/x/cborx"
	"github.com/dogmatiq/courier/persistence"
	"go.etcd.io/bbolt"
)

// dataStore is an implementation of persistence.DataStore for BoltDB.
type dataStore struct {
	db         *bbolt.DB
	accountKey []byte

	m       sync.RWMutex
	release func(string) error
}

// Persist commits a batch of operations atomically.
//
// If any one of the operations causes an optimistic concurrency conflict
// the entire batch is aborted and a ConflictError is returned.
func (ds *dataStore) Persist(
	ctx context.Context,
	b persistence.Batch,
) (err error) {
	b.MustValidate()

	defer bboltx.Recover(&err)

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	bboltx.Update(
		ds.db,
		func(tx *bbolt.Tx) {
			c := &committer{
				root: bboltx.CreateBucketIfNotExists(tx, ds.accountKey),
			}
			bboltx.Must(b.AcceptVisitor(ctx, c))
		},
	)

	return nil
}

// Close closes the data store.
//
// Closing a data-store causes any future calls to Persist() to return
// ErrDataStoreClosed.
//
// In general use it is expected that all pending calls to Persist() will
// have finished before a data-store is closed. Close() may block until any
// in-flight calls to Persist() return, or may prevent any such calls from
// succeeding.
func (ds *dataStore) Close() error {
	ds.m.Lock()
	defer ds.m.Unlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	r := ds.release
	ds.db = nil
	ds.release = nil

	return r(string(ds.accountKey))
}

// view executes fn within a read-only transaction, passing it the account's
// root bucket.
//
// fn is not called if the root bucket does not exist yet.
func (ds *dataStore) view(fn func(root *bbolt.Bucket)) (err error) {
	defer bboltx.Recover(&err)

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	bboltx.View(
		ds.db,
		func(tx *bbolt.Tx) {
			if root, ok := bboltx.TryBucket(tx, ds.accountKey); ok {
				fn(root)
			}
		},
	)

	return nil
}

// committer is an implementation of persitence.OperationVisitor that
// applies operations to the database.
type committer struct {
	root *bbolt.Bucket
}

// marshal returns the binary representation of v.
func marshal(v any) []byte {
	data, err := cborx.Marshal(v)
	bboltx.Must(err)
	return data
}

// unmarshal decodes data into v.
func unmarshal(data []byte, v any) {
	bboltx.Must(cborx.Unmarshal(data, v))
}
