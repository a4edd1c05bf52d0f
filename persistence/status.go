package persistence

import (
	"context"
	"time"
)

// DeliveryState is an enumeration of the observable states of an outgoing
// message.
type DeliveryState string

const (
	// Sending is the state of a message that is awaiting delivery.
	Sending DeliveryState = "sending"

	// Sent is the state of a message that has been delivered.
	Sent DeliveryState = "sent"

	// Failed is the state of a message that could not be delivered.
	Failed DeliveryState = "failed"
)

// MessageStatus is the observable delivery status of an outgoing message.
type MessageStatus struct {
	MessageID      string
	ConversationID string
	State          DeliveryState
	LastError      string
	UpdatedAt      time.Time
}

// MessageStatusRepository is an interface for reading message statuses.
type MessageStatusRepository interface {
	// LoadMessageStatus loads the status of the message with the given ID.
	//
	// ok is false if the message has no recorded status.
	LoadMessageStatus(ctx context.Context, messageID string) (s MessageStatus, ok bool, err error)
}

// SaveMessageStatus is a persistence operation that creates or updates the
// status of a message.
type SaveMessageStatus struct {
	Status MessageStatus
}

// AcceptVisitor calls v.VisitSaveMessageStatus().
func (op SaveMessageStatus) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitSaveMessageStatus(ctx, op)
}

func (op SaveMessageStatus) entityKey() entityKey {
	return entityKey{"message-status", op.Status.MessageID}
}
