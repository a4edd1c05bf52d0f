package message

import (
	"context"
	"fmt"
)

// ConversationResolutionError is returned when the destination of a message
// can not be computed from its conversation.
//
// It is never retried, as retrying cannot produce a different outcome until the
// conversation itself changes.
type ConversationResolutionError struct {
	ConversationID string
	Reason         string
}

func (e ConversationResolutionError) Error() string {
	return fmt.Sprintf(
		"unable to resolve the destination of conversation '%s': %s",
		e.ConversationID,
		e.Reason,
	)
}

// ConversationDeletedError is the cause of a delivery that was abandoned
// because its conversation was deleted before the message was sent.
//
// It wraps context.Canceled.
type ConversationDeletedError struct {
	ConversationID string
}

func (e ConversationDeletedError) Error() string {
	return fmt.Sprintf(
		"conversation '%s' was deleted before the message was sent",
		e.ConversationID,
	)
}

func (e ConversationDeletedError) Unwrap() error {
	return context.Canceled
}
