package sqlpersistence

import (
	"context"
	"database/sql"
	"sync"

	"github.com/dogmatiq/courier/internal/x/cborx"
	"github.com/dogmatiq/courier/internal/x/sqlx"
	"github.com/dogmatiq/courier/persistence"
)

// dataStore is an implementation of persistence.DataStore for SQL databases.
type dataStore struct {
	db         *sql.DB
	accountKey string

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

	defer sqlx.Recover(&err)

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	sqlx.Transact(ctx, ds.db, func(tx *sql.Tx) {
		c := &committer{
			tx:         tx,
			accountKey: ds.accountKey,
		}
		sqlx.Must(b.AcceptVisitor(ctx, c))
	})

	return nil
}

// Close closes the data store.
//
// Closing a data-store causes any future calls to Persist() to return
// ErrDataStoreClosed.
func (ds *dataStore) Close() error {
	ds.m.Lock()
	defer ds.m.Unlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	r := ds.release
	ds.release = nil

	return r(ds.accountKey)
}

// query executes fn with the underlying database, recovering from any panic
// raised by the sqlx helpers.
func (ds *dataStore) query(fn func(db *sql.DB)) (err error) {
	defer sqlx.Recover(&err)

	ds.m.RLock()
	defer ds.m.RUnlock()

	if ds.release == nil {
		return persistence.ErrDataStoreClosed
	}

	fn(ds.db)

	return nil
}

// committer is an implementation of persitence.OperationVisitor that
// applies operations to the database within a transaction.
type committer struct {
	tx         *sql.Tx
	accountKey string
}

// marshal returns the binary representation of v.
func marshal(v any) []byte {
	data, err := cborx.Marshal(v)
	sqlx.Must(err)
	return data
}

// unmarshal decodes data into v.
func unmarshal(data []byte, v any) {
	sqlx.Must(cborx.Unmarshal(data, v))
}
