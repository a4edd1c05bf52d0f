package sqlpersistence

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/courier/internal/x/sqlx"
)

// acquireLock acquires an exclusive lock on an account's data.
//
// It returns false if the lock is already held.
func acquireLock(
	ctx context.Context,
	db *sql.DB,
	k string,
) (_ bool, err error) {
	defer sqlx.Recover(&err)

	return sqlx.TryExecRow(
		ctx,
		db,
		`INSERT INTO account_lock (
			account_key
		) VALUES (
			$1
		) ON CONFLICT (account_key) DO NOTHING`,
		k,
	), nil
}

// releaseLock releases a lock previously acquired by acquireLock().
func releaseLock(
	ctx context.Context,
	db *sql.DB,
	k string,
) (err error) {
	defer sqlx.Recover(&err)

	sqlx.Exec(
		ctx,
		db,
		`DELETE FROM account_lock
		WHERE account_key = $1`,
		k,
	)

	return nil
}
