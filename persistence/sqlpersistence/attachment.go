package sqlpersistence

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/courier/internal/x/sqlx"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
)

// LoadAttachment loads the attachment with the given ID.
func (ds *dataStore) LoadAttachment(
	ctx context.Context,
	id string,
) (a message.Attachment, ok bool, err error) {
	err = ds.query(func(db *sql.DB) {
		a, ok = loadAttachment(ctx, db, ds.accountKey, id)
	})

	return a, ok, err
}

// VisitSaveAttachment applies the changes in a "SaveAttachment" operation to
// the database.
func (c *committer) VisitSaveAttachment(
	ctx context.Context,
	op persistence.SaveAttachment,
) error {
	a := op.Attachment
	a.State = message.Pending
	a.Server = ""
	a.Reference = ""

	if sqlx.TryExecRow(
		ctx,
		c.tx,
		`INSERT INTO attachment (
			account_key,
			id,
			uploaded,
			data
		) VALUES (
			$1, $2, 0, $3
		) ON CONFLICT (account_key, id) DO UPDATE SET
			data = excluded.data
		WHERE attachment.uploaded = 0`,
		c.accountKey,
		a.ID,
		marshal(a),
	) {
		return nil
	}

	return persistence.ConflictError{
		Cause: op,
	}
}

// VisitMarkAttachmentUploaded applies the changes in a
// "MarkAttachmentUploaded" operation to the database.
func (c *committer) VisitMarkAttachmentUploaded(
	ctx context.Context,
	op persistence.MarkAttachmentUploaded,
) error {
	a, ok := loadAttachment(ctx, c.tx, c.accountKey, op.AttachmentID)
	if !ok {
		return persistence.NotFoundError{
			Cause: op,
		}
	}

	if a.IsUploaded() {
		return nil
	}

	a.State = message.Uploaded
	a.Server = op.Server
	a.Reference = op.Reference

	sqlx.UpdateRow(
		ctx,
		c.tx,
		`UPDATE attachment SET
			uploaded = 1,
			data = $1
		WHERE account_key = $2
		AND id = $3`,
		marshal(a),
		c.accountKey,
		a.ID,
	)

	return nil
}

// loadAttachment loads the attachment with the given ID.
func loadAttachment(
	ctx context.Context,
	db sqlx.DB,
	k, id string,
) (message.Attachment, bool) {
	var (
		a    message.Attachment
		data []byte
	)

	if !sqlx.TryQueryRow(
		ctx,
		db,
		`SELECT
			data
		FROM attachment
		WHERE account_key = $1
		AND id = $2`,
		[]interface{}{k, id},
		&data,
	) {
		return a, false
	}

	unmarshal(data, &a)

	return a, true
}
