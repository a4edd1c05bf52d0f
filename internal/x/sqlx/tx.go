package sqlx

import (
	"context"
	"database/sql"
)

// DB is the subset of the methods of *sql.DB and *sql.Tx used by this
// package.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

var (
	_ DB = (*sql.DB)(nil)
	_ DB = (*sql.Tx)(nil)
)

// Transact calls fn within a transaction on db.
//
// The transaction is committed if fn returns, and rolled back if it panics.
func Transact(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx)) {
	tx, err := db.BeginTx(ctx, nil)
	Must(err)
	defer tx.Rollback() // nolint:errcheck

	fn(tx)

	Must(tx.Commit())
}
