package message

// Kind is an enumeration of the kinds of conversation.
type Kind string

const (
	// ContactKind is a one-to-one conversation with a single contact.
	ContactKind Kind = "contact"

	// ClosedGroupKind is a conversation with a fixed set of members, each of
	// whom receives their own copy of every message.
	ClosedGroupKind Kind = "closed-group"

	// OpenGroupKind is a conversation hosted on an open-group server. Messages
	// are sent to the server, and received by polling it.
	OpenGroupKind Kind = "open-group"
)

// Conversation is a snapshot of a conversation's state, as known to the local
// store.
type Conversation struct {
	// ID is the unique identifier of the conversation.
	ID string

	// Kind is the kind of conversation.
	Kind Kind

	// Recipient is the public key of the other party in a contact
	// conversation.
	Recipient string

	// Members is the set of public keys of the members of a closed group.
	Members []string

	// OpenGroup describes the open group that hosts an open-group
	// conversation.
	OpenGroup *OpenGroup
}

// IsOpenGroup returns true if c is an open-group conversation.
func (c Conversation) IsOpenGroup() bool {
	return c.Kind == OpenGroupKind && c.OpenGroup != nil
}

// OpenGroup describes a channel on an open-group server.
type OpenGroup struct {
	// Server is the URL of the open-group server.
	Server string

	// Channel is the server-specific channel number.
	Channel uint64

	// DisplayName is the human-readable name of the channel.
	DisplayName string
}
