package sqlx

import (
	"context"
	"database/sql"
	"fmt"
)

// Exec executes a statement on the given DB.
func Exec(
	ctx context.Context,
	db DB,
	query string,
	args ...interface{},
) sql.Result {
	res, err := db.ExecContext(ctx, query, args...)
	Must(err)
	return res
}

// UpdateRow executes an update statement on the given DB.
//
// It panics if the update does not affect exactly one row. Note that MySQL
// requires an actual change to occur to consider the row updated.
func UpdateRow(
	ctx context.Context,
	db DB,
	query string,
	args ...interface{},
) {
	res, err := db.ExecContext(ctx, query, args...)
	Must(err)

	n, err := res.RowsAffected()
	Must(err)

	if n != 1 {
		Must(fmt.Errorf("%d rows updated", n))
	}
}

// TryExecRow executes a statement on the given DB.
//
// It returns true if the statement affected exactly one row, or false if it
// affected none. It panics if more than one row is affected.
func TryExecRow(
	ctx context.Context,
	db DB,
	query string,
	args ...interface{},
) bool {
	res, err := db.ExecContext(ctx, query, args...)
	Must(err)

	n, err := res.RowsAffected()
	Must(err)

	switch n {
	case 0:
		return false
	case 1:
		return true
	default:
		Must(fmt.Errorf("%d rows affected", n))
		return false
	}
}
