package memorypersistence

import (
	"context"

	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
)

// LoadAttachment loads the attachment with the given ID.
func (ds *dataStore) LoadAttachment(
	_ context.Context,
	id string,
) (message.Attachment, bool, error) {
	if err := ds.checkOpen(); err != nil {
		return message.Attachment{}, false, err
	}

	ds.db.RLock()
	defer ds.db.RUnlock()

	a, ok := ds.db.attachment.attachments[id]
	return cloneAttachment(a), ok, nil
}

// VisitSaveAttachment returns an error if a "SaveAttachment" operation can not
// be applied to the database.
func (v *validator) VisitSaveAttachment(
	_ context.Context,
	op persistence.SaveAttachment,
) error {
	if a, ok := v.db.attachment.attachments[op.Attachment.ID]; ok && a.IsUploaded() {
		return persistence.ConflictError{
			Cause: op,
		}
	}

	return nil
}

// VisitMarkAttachmentUploaded returns an error if a "MarkAttachmentUploaded"
// operation can not be applied to the database.
func (v *validator) VisitMarkAttachmentUploaded(
	_ context.Context,
	op persistence.MarkAttachmentUploaded,
) error {
	if _, ok := v.db.attachment.attachments[op.AttachmentID]; ok {
		return nil
	}

	return persistence.NotFoundError{
		Cause: op,
	}
}

// VisitSaveAttachment applies the changes in a "SaveAttachment" operation to
// the database.
func (c *committer) VisitSaveAttachment(
	_ context.Context,
	op persistence.SaveAttachment,
) error {
	a := cloneAttachment(op.Attachment)
	a.State = message.Pending
	a.Server = ""
	a.Reference = ""

	if c.db.attachment.attachments == nil {
		c.db.attachment.attachments = map[string]message.Attachment{}
	}

	c.db.attachment.attachments[a.ID] = a

	return nil
}

// VisitMarkAttachmentUploaded applies the changes in a
// "MarkAttachmentUploaded" operation to the database.
func (c *committer) VisitMarkAttachmentUploaded(
	_ context.Context,
	op persistence.MarkAttachmentUploaded,
) error {
	a := c.db.attachment.attachments[op.AttachmentID]

	if !a.IsUploaded() {
		a.State = message.Uploaded
		a.Server = op.Server
		a.Reference = op.Reference
		c.db.attachment.attachments[a.ID] = a
	}

	return nil
}

// attachmentDatabase contains attachment related data.
type attachmentDatabase struct {
	attachments map[string]message.Attachment
}

// cloneAttachment returns a deep copy of a.
func cloneAttachment(a message.Attachment) message.Attachment {
	a.Data = append([]byte(nil), a.Data...)
	return a
}
