package boltpersistence

import (
	"context"

	"github.com/dogmatiq/courier/internal/x/bboltx"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"go.etcd.io/bbolt"
)

// attachmentBucketKey is the key for the bucket that contains attachments.
//
// The keys are attachment IDs. The values are message.Attachment values
// encoded as CBOR.
var attachmentBucketKey = []byte("attachments")

// LoadAttachment loads the attachment with the given ID.
func (ds *dataStore) LoadAttachment(
	_ context.Context,
	id string,
) (a message.Attachment, ok bool, err error) {
	err = ds.view(func(root *bbolt.Bucket) {
		a, ok = loadAttachment(root, id)
	})

	return a, ok, err
}

// VisitSaveAttachment applies the changes in a "SaveAttachment" operation to
// the database.
func (c *committer) VisitSaveAttachment(
	_ context.Context,
	op persistence.SaveAttachment,
) error {
	if old, ok := loadAttachment(c.root, op.Attachment.ID); ok && old.IsUploaded() {
		return persistence.ConflictError{
			Cause: op,
		}
	}

	a := op.Attachment
	a.State = message.Pending
	a.Server = ""
	a.Reference = ""

	bboltx.PutPath(
		c.root,
		marshal(a),
		attachmentBucketKey,
		[]byte(a.ID),
	)

	return nil
}

// VisitMarkAttachmentUploaded applies the changes in a
// "MarkAttachmentUploaded" operation to the database.
func (c *committer) VisitMarkAttachmentUploaded(
	_ context.Context,
	op persistence.MarkAttachmentUploaded,
) error {
	a, ok := loadAttachment(c.root, op.AttachmentID)
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

	bboltx.PutPath(
		c.root,
		marshal(a),
		attachmentBucketKey,
		[]byte(a.ID),
	)

	return nil
}

// loadAttachment loads the attachment with the given ID.
func loadAttachment(root *bbolt.Bucket, id string) (message.Attachment, bool) {
	data := bboltx.GetPath(root, attachmentBucketKey, []byte(id))
	if data == nil {
		return message.Attachment{}, false
	}

	var a message.Attachment
	unmarshal(data, &a)

	return a, true
}
