package message

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Message is an outgoing message.
type Message struct {
	// ID is the unique identifier of the message.
	ID string

	// ConversationID is the ID of the conversation that the message is sent
	// to. It is empty until the message is stamped.
	ConversationID string

	// AttachmentIDs is the ordered list of attachments that accompany the
	// message.
	AttachmentIDs []string

	// Payload is the delivery-mode-independent content of the message.
	Payload []byte

	// SentAt is the time at which the message was created by the sender.
	SentAt time.Time
}

// New returns a new message with a random ID.
func New(payload []byte) Message {
	return Message{
		ID:      uuid.NewString(),
		Payload: payload,
		SentAt:  time.Now(),
	}
}

// IsStamped returns true if the message has been associated with a
// conversation.
func (m Message) IsStamped() bool {
	return m.ConversationID != ""
}

// Stamp returns a copy of m associated with the given conversation.
//
// It panics if the conversation ID is empty, or if m has already been stamped
// with a different conversation.
func (m Message) Stamp(conversationID string) Message {
	m, err := m.TryStamp(conversationID)
	if err != nil {
		panic(err.Error())
	}

	return m
}

// TryStamp returns a copy of m associated with the given conversation.
//
// It returns a ConversationResolutionError if the conversation ID is empty, or
// if m has already been stamped with a different conversation.
func (m Message) TryStamp(conversationID string) (Message, error) {
	if conversationID == "" {
		return m, ConversationResolutionError{
			Reason: "conversation ID must not be empty",
		}
	}

	if m.ConversationID != "" && m.ConversationID != conversationID {
		return m, ConversationResolutionError{
			ConversationID: conversationID,
			Reason: fmt.Sprintf(
				"message '%s' is already stamped with conversation '%s'",
				m.ID,
				m.ConversationID,
			),
		}
	}

	m.ConversationID = conversationID
	m.AttachmentIDs = append([]string(nil), m.AttachmentIDs...)

	return m, nil
}

// WithAttachments returns a copy of m with the given attachment IDs appended.
//
// IDs that are already associated with m are not duplicated.
func (m Message) WithAttachments(ids ...string) Message {
	result := append([]string(nil), m.AttachmentIDs...)

next:
	for _, id := range ids {
		for _, x := range result {
			if x == id {
				continue next
			}
		}

		result = append(result, id)
	}

	m.AttachmentIDs = result

	return m
}
