package sqlpersistence

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/courier/internal/x/sqlx"
)

// CreateSchema creates the schema elements necessary to use the given database.
//
// It does not return an error if the schema already exists.
func CreateSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	sqlx.Transact(ctx, db, func(tx *sql.Tx) {
		for _, q := range schema {
			sqlx.Exec(ctx, tx, q)
		}
	})

	return nil
}

// schema is the set of statements that create the tables. Each account's rows
// are keyed by account_key.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS account_lock (
		account_key TEXT NOT NULL PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS delivery_job (
		account_key TEXT NOT NULL,
		id          TEXT NOT NULL,
		revision    INTEGER NOT NULL,
		created_at  INTEGER NOT NULL,
		data        BLOB NOT NULL,

		PRIMARY KEY (account_key, id)
	)`,
	`CREATE TABLE IF NOT EXISTS attachment (
		account_key TEXT NOT NULL,
		id          TEXT NOT NULL,
		uploaded    INTEGER NOT NULL,
		data        BLOB NOT NULL,

		PRIMARY KEY (account_key, id)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation (
		account_key TEXT NOT NULL,
		id          TEXT NOT NULL,
		data        BLOB NOT NULL,

		PRIMARY KEY (account_key, id)
	)`,
	`CREATE TABLE IF NOT EXISTS open_group (
		account_key     TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		data            BLOB NOT NULL,

		PRIMARY KEY (account_key, conversation_id)
	)`,
	`CREATE TABLE IF NOT EXISTS message_status (
		account_key     TEXT NOT NULL,
		message_id      TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		data            BLOB NOT NULL,

		PRIMARY KEY (account_key, message_id)
	)`,
	`CREATE TABLE IF NOT EXISTS poll_cursor (
		account_key     TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		last_message_id INTEGER NOT NULL,

		PRIMARY KEY (account_key, conversation_id)
	)`,
}

// DropSchema drops the schema elements necessary to use the given database.
//
// It does not return an error if the schema does not exist.
func DropSchema(ctx context.Context, db *sql.DB) (err error) {
	defer sqlx.Recover(&err)

	for _, t := range []string{
		"account_lock",
		"delivery_job",
		"attachment",
		"conversation",
		"open_group",
		"message_status",
		"poll_cursor",
	} {
		sqlx.Exec(ctx, db, `DROP TABLE IF EXISTS `+t)
	}

	return nil
}
