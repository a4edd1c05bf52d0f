package notification

import (
	"time"
)

// EventType is an enumeration of the kinds of conversation event.
type EventType string

const (
	// ConversationAdded indicates that a conversation has been created.
	ConversationAdded EventType = "conversation-added"

	// ConversationChanged indicates that a conversation's state, such as its
	// membership or open-group association, has changed.
	ConversationChanged EventType = "conversation-changed"

	// ConversationDeleted indicates that a conversation has been removed.
	ConversationDeleted EventType = "conversation-deleted"
)

// Event is a notification about a change to a conversation.
type Event struct {
	// Seq is the hub-assigned sequence number of the event. It is 1 for the
	// first event published to a hub.
	Seq uint64

	// Type is the kind of change that occurred.
	Type EventType

	// ConversationID is the ID of the affected conversation.
	ConversationID string

	// PublishedAt is the time at which the event was published.
	PublishedAt time.Time
}
