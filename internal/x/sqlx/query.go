package sqlx

import (
	"context"
	"database/sql"
	"errors"
)

// Query executes a query on the given DB.
func Query(
	ctx context.Context,
	db DB,
	query string,
	args ...interface{},
) *sql.Rows {
	rows, err := db.QueryContext(ctx, query, args...)
	Must(err)
	return rows
}

// TryQueryRow executes a query that is expected to return at most one row,
// and scans the result into the given values.
//
// It returns false if the query produces no rows.
func TryQueryRow(
	ctx context.Context,
	db DB,
	query string,
	args []interface{},
	values ...interface{},
) bool {
	row := db.QueryRowContext(ctx, query, args...)

	err := row.Scan(values...)
	if errors.Is(err, sql.ErrNoRows) {
		return false
	}

	Must(err)

	return true
}
