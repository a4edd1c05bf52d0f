package sqlpersistence

import (
	"context"
	"database/sql"
	"runtime"
	"time"

	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/persistence/internal/shareddb"
)

var (
	// DefaultMaxIdleConns is the default maximum number of idle connections
	// allowed in the database pool.
	DefaultMaxIdleConns = runtime.GOMAXPROCS(0)

	// DefaultMaxOpenConns is the default maximum number of open connections
	// allowed in the database pool.
	DefaultMaxOpenConns = DefaultMaxIdleConns * 10

	// DefaultMaxConnLifetime is the default maximum lifetime of database
	// connections.
	DefaultMaxConnLifetime = 10 * time.Minute
)

// Provider is an implementation of persistence.Provider that uses an existing
// database pool.
//
// The schema must already exist, see CreateSchema(). The pool is never closed
// by the provider.
type Provider struct {
	handle shareddb.Handle[*sql.DB]

	// DB is the SQL database to use.
	DB *sql.DB
}

// Open returns the data-store for the account identified by k.
//
// It returns ErrDataStoreLocked if the account's data-store is already open,
// by this process or any other that shares the database.
func (p *Provider) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	return open(
		ctx,
		&p.handle,
		k,
		func() (*sql.DB, error) { return p.DB, nil },
		func(*sql.DB) error { return nil },
	)
}

// DSNProvider is an implementation of persistence.Provider that opens a
// database pool from a data-source name.
//
// The pool is opened, and the schema created if necessary, when the first
// data-store is opened. It is closed when the last one is closed.
type DSNProvider struct {
	handle shareddb.Handle[*sql.DB]

	// DriverName is the driver name to be passed to sql.Open().
	DriverName string

	// DSN is the data-source name to be passed to sql.Open().
	DSN string

	// MaxIdleConns is the maximum number of idle connections in the pool.
	// If it is zero, DefaultMaxIdleConns is used.
	MaxIdleConns int

	// MaxOpenConns is the maximum number of open connections in the pool.
	// If it is zero, DefaultMaxOpenConns is used.
	MaxOpenConns int

	// MaxConnLifetime is the maximum lifetime of a connection.
	// If it is zero, DefaultMaxConnLifetime is used.
	MaxConnLifetime time.Duration
}

// Open returns the data-store for the account identified by k.
//
// It returns ErrDataStoreLocked if the account's data-store is already open,
// by this process or any other that shares the database.
func (p *DSNProvider) Open(ctx context.Context, k string) (persistence.DataStore, error) {
	return open(
		ctx,
		&p.handle,
		k,
		func() (*sql.DB, error) { return p.openDB(ctx) },
		(*sql.DB).Close,
	)
}

// openDB opens the pool, applies the connection limits and creates the schema.
func (p *DSNProvider) openDB(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open(p.DriverName, p.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(orDefault(p.MaxIdleConns, DefaultMaxIdleConns))
	db.SetMaxOpenConns(orDefault(p.MaxOpenConns, DefaultMaxOpenConns))
	db.SetConnMaxLifetime(orDefault(p.MaxConnLifetime, DefaultMaxConnLifetime))

	if err := CreateSchema(ctx, db); err != nil {
		db.Close() // nolint:errcheck
		return nil, err
	}

	return db, nil
}

// open acquires the database from h and claims the account_lock row for k.
func open(
	ctx context.Context,
	h *shareddb.Handle[*sql.DB],
	k string,
	openDB func() (*sql.DB, error),
	closeDB func(*sql.DB) error,
) (persistence.DataStore, error) {
	db, err := h.Acquire(
		openDB,
		closeDB,
		func(db *sql.DB) error {
			ok, err := acquireLock(ctx, db, k)
			if err != nil {
				return err
			}
			if !ok {
				return persistence.ErrDataStoreLocked
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}

	return &dataStore{
		db:         db,
		accountKey: k,
		release: func(k string) error {
			return h.Release(func(db *sql.DB) error {
				return releaseLock(context.Background(), db, k)
			})
		},
	}, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
