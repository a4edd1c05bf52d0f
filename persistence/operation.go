package persistence

import (
	"context"
)

// Operation is a persistence operation that can be performed as part of an
// atomic batch.
type Operation interface {
	// AcceptVisitor calls the appropriate visit method on the given visitor.
	AcceptVisitor(context.Context, OperationVisitor) error

	// entityKey returns the key that identifies the entity that the
	// operation modifies.
	entityKey() entityKey
}

// OperationVisitor visits persistence operations.
type OperationVisitor interface {
	VisitSaveJob(context.Context, SaveJob) error
	VisitRemoveJob(context.Context, RemoveJob) error
	VisitSaveAttachment(context.Context, SaveAttachment) error
	VisitMarkAttachmentUploaded(context.Context, MarkAttachmentUploaded) error
	VisitSaveConversation(context.Context, SaveConversation) error
	VisitRemoveConversation(context.Context, RemoveConversation) error
	VisitRemoveOpenGroupAssociation(context.Context, RemoveOpenGroupAssociation) error
	VisitClearConversationState(context.Context, ClearConversationState) error
	VisitSaveMessageStatus(context.Context, SaveMessageStatus) error
	VisitSavePollCursor(context.Context, SavePollCursor) error
}

// entityKey identifies the entity affected by an operation.
type entityKey struct {
	entityType string
	id         string
}

func (k entityKey) String() string {
	return k.entityType + " " + k.id
}
