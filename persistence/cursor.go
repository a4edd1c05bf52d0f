package persistence

import (
	"context"
)

// PollCursorRepository is an interface for reading open-group poll cursors.
type PollCursorRepository interface {
	// LoadPollCursor returns the ID of the last server message seen by the
	// poller for the given conversation.
	//
	// It returns zero if no messages have been seen.
	LoadPollCursor(ctx context.Context, conversationID string) (uint64, error)
}

// SavePollCursor is a persistence operation that records the ID of the last
// server message seen by an open-group poller.
type SavePollCursor struct {
	ConversationID string
	LastMessageID  uint64
}

// AcceptVisitor calls v.VisitSavePollCursor().
func (op SavePollCursor) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitSavePollCursor(ctx, op)
}

func (op SavePollCursor) entityKey() entityKey {
	return entityKey{"conversation-state", op.ConversationID}
}
