package boltpersistence

import (
	"context"
	"os"

	"github.com/dogmatiq/courier/internal/x/bboltx"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/persistence/internal/shareddb"
	"go.etcd.io/bbolt"
)

// Provider is an implementation of persistence.Provider that uses an existing
// open BoltDB database.
//
// The database is never closed by the provider.
type Provider struct {
	accounts

	// DB is the BoltDB database to use.
	DB *bbolt.DB
}

// Open returns the data-store for the account identified by k.
//
// It returns ErrDataStoreLocked if the account's data-store is already open.
func (p *Provider) Open(_ context.Context, k string) (persistence.DataStore, error) {
	return p.open(
		k,
		func() (*bbolt.DB, error) { return p.DB, nil },
		func(*bbolt.DB) error { return nil },
	)
}

// FileProvider is an implementation of persistence.Provider that opens (or
// creates) a BoltDB database file.
//
// The file is opened when the first data-store is opened, and closed when the
// last one is closed.
type FileProvider struct {
	accounts

	// Path is the path of the database file.
	Path string

	// Mode is the file mode used if the file is created.
	// If it is zero, 0600 is used.
	Mode os.FileMode

	// Options is the BoltDB options for the database.
	// If it is nil, bbolt.DefaultOptions is used.
	Options *bbolt.Options
}

// Open returns the data-store for the account identified by k.
//
// It returns ErrDataStoreLocked if the account's data-store is already open.
// If the file is locked by another process, it blocks until the file is
// unlocked or the deadline of ctx is reached.
func (p *FileProvider) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	return p.open(
		k,
		func() (*bbolt.DB, error) {
			return bboltx.Open(ctx, p.Path, p.Mode, p.Options)
		},
		(*bbolt.DB).Close,
	)
}

// accounts tracks which accounts have an open data-store. It is embedded by
// both provider types.
type accounts struct {
	handle shareddb.Handle[*bbolt.DB]
	locked map[string]struct{} // guarded by the handle's mutex
}

func (a *accounts) open(
	k string,
	open func() (*bbolt.DB, error),
	close func(*bbolt.DB) error,
) (persistence.DataStore, error) {
	db, err := a.handle.Acquire(
		open,
		close,
		func(*bbolt.DB) error {
			if _, ok := a.locked[k]; ok {
				return persistence.ErrDataStoreLocked
			}

			if a.locked == nil {
				a.locked = map[string]struct{}{}
			}
			a.locked[k] = struct{}{}

			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	return &dataStore{
		db:         db,
		accountKey: []byte(k),
		release:    a.release,
	}, nil
}

func (a *accounts) release(k string) error {
	return a.handle.Release(
		func(*bbolt.DB) error {
			delete(a.locked, k)
			return nil
		},
	)
}
