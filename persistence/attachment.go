package persistence

import (
	"context"

	"github.com/dogmatiq/courier/message"
)

// AttachmentRepository is an interface for reading persisted attachments.
type AttachmentRepository interface {
	// LoadAttachment loads the attachment with the given ID.
	//
	// ok is false if the attachment does not exist.
	LoadAttachment(ctx context.Context, id string) (a message.Attachment, ok bool, err error)
}

// SaveAttachment is a persistence operation that creates or replaces a pending
// attachment.
//
// If the attachment has already been uploaded a ConflictError occurs, as
// uploaded attachments can not be modified.
type SaveAttachment struct {
	Attachment message.Attachment
}

// AcceptVisitor calls v.VisitSaveAttachment().
func (op SaveAttachment) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitSaveAttachment(ctx, op)
}

func (op SaveAttachment) entityKey() entityKey {
	return entityKey{"attachment", op.Attachment.ID}
}

// MarkAttachmentUploaded is a persistence operation that records the
// successful upload of an attachment.
//
// If the attachment does not exist a NotFoundError occurs. If it has already
// been uploaded the operation has no effect and the existing reference is
// retained.
type MarkAttachmentUploaded struct {
	AttachmentID string
	Server       string
	Reference    message.Reference
}

// AcceptVisitor calls v.VisitMarkAttachmentUploaded().
func (op MarkAttachmentUploaded) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitMarkAttachmentUploaded(ctx, op)
}

func (op MarkAttachmentUploaded) entityKey() entityKey {
	return entityKey{"attachment", op.AttachmentID}
}
