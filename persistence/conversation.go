package persistence

import (
	"context"

	"github.com/dogmatiq/courier/message"
)

// ConversationRepository is an interface for reading persisted conversations.
type ConversationRepository interface {
	// LoadConversation loads the conversation with the given ID.
	//
	// The OpenGroup field is populated only if the conversation has an
	// open-group association. ok is false if the conversation does not exist.
	LoadConversation(ctx context.Context, id string) (c message.Conversation, ok bool, err error)

	// LoadOpenGroups loads all conversations that have an open-group
	// association, ordered by conversation ID.
	//
	// Associations that refer to a conversation that no longer exists are
	// ignored.
	LoadOpenGroups(ctx context.Context) ([]message.Conversation, error)
}

// SaveConversation is a persistence operation that creates or updates a
// conversation.
//
// If Conversation.OpenGroup is non-nil the conversation's open-group
// association is also saved.
type SaveConversation struct {
	Conversation message.Conversation
}

// AcceptVisitor calls v.VisitSaveConversation().
func (op SaveConversation) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitSaveConversation(ctx, op)
}

func (op SaveConversation) entityKey() entityKey {
	return entityKey{"conversation", op.Conversation.ID}
}

// RemoveConversation is a persistence operation that removes a conversation.
//
// The conversation's open-group association and its cached state are not
// removed. They are cleaned up by RemoveOpenGroupAssociation and
// ClearConversationState operations.
type RemoveConversation struct {
	ConversationID string
}

// AcceptVisitor calls v.VisitRemoveConversation().
func (op RemoveConversation) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitRemoveConversation(ctx, op)
}

func (op RemoveConversation) entityKey() entityKey {
	return entityKey{"conversation", op.ConversationID}
}

// RemoveOpenGroupAssociation is a persistence operation that removes the
// association between a conversation and an open group.
//
// It has no effect if there is no such association.
type RemoveOpenGroupAssociation struct {
	ConversationID string
}

// AcceptVisitor calls v.VisitRemoveOpenGroupAssociation().
func (op RemoveOpenGroupAssociation) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitRemoveOpenGroupAssociation(ctx, op)
}

func (op RemoveOpenGroupAssociation) entityKey() entityKey {
	return entityKey{"open-group", op.ConversationID}
}

// ClearConversationState is a persistence operation that removes all cached
// per-conversation state, namely the poll cursor and the delivery status of
// the conversation's messages.
type ClearConversationState struct {
	ConversationID string
}

// AcceptVisitor calls v.VisitClearConversationState().
func (op ClearConversationState) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitClearConversationState(ctx, op)
}

func (op ClearConversationState) entityKey() entityKey {
	return entityKey{"conversation-state", op.ConversationID}
}
