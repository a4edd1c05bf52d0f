package message

import (
	"fmt"
	"strings"
)

// Destination describes where a message is delivered to.
//
// It is a tagged variant. The Kind field determines which of the other fields
// are meaningful. Use ContactDestination(), ClosedGroupDestination() or
// OpenGroupDestination() to construct a destination.
type Destination struct {
	Kind Kind

	// PublicKey is the recipient of a contact destination.
	PublicKey string

	// GroupID and Members describe a closed-group destination.
	GroupID string
	Members []string

	// Server and Channel describe an open-group destination.
	Server  string
	Channel uint64
}

// ContactDestination returns a destination that delivers to a single contact.
func ContactDestination(pk string) Destination {
	return Destination{
		Kind:      ContactKind,
		PublicKey: pk,
	}
}

// ClosedGroupDestination returns a destination that delivers to each member of
// a closed group.
func ClosedGroupDestination(id string, members []string) Destination {
	return Destination{
		Kind:    ClosedGroupKind,
		GroupID: id,
		Members: append([]string(nil), members...),
	}
}

// OpenGroupDestination returns a destination that delivers to a channel on an
// open-group server.
func OpenGroupDestination(server string, channel uint64) Destination {
	return Destination{
		Kind:    OpenGroupKind,
		Server:  server,
		Channel: channel,
	}
}

// Key returns a string that uniquely identifies the destination. It is used to
// order deliveries to the same destination.
func (d Destination) Key() string {
	switch d.Kind {
	case ContactKind:
		return "contact:" + d.PublicKey
	case ClosedGroupKind:
		return "closed-group:" + d.GroupID
	case OpenGroupKind:
		return fmt.Sprintf("open-group:%s/%d", d.Server, d.Channel)
	default:
		return "unknown:" + string(d.Kind)
	}
}

func (d Destination) String() string {
	switch d.Kind {
	case ClosedGroupKind:
		return fmt.Sprintf(
			"closed-group:%s [%s]",
			d.GroupID,
			strings.Join(d.Members, ", "),
		)
	default:
		return d.Key()
	}
}

// ResolveDestination computes the destination of a message sent to the given
// conversation.
//
// self is the public key of the local user. It is never included in the
// members of a closed-group destination.
func ResolveDestination(c Conversation, self string) (Destination, error) {
	switch c.Kind {
	case ContactKind:
		if c.Recipient == "" {
			return Destination{}, ConversationResolutionError{
				ConversationID: c.ID,
				Reason:         "contact conversation has no recipient",
			}
		}

		return ContactDestination(c.Recipient), nil

	case ClosedGroupKind:
		members := make([]string, 0, len(c.Members))
		seen := map[string]struct{}{}

		for _, m := range c.Members {
			if m == self || m == "" {
				continue
			}

			if _, ok := seen[m]; ok {
				continue
			}

			seen[m] = struct{}{}
			members = append(members, m)
		}

		if len(members) == 0 {
			return Destination{}, ConversationResolutionError{
				ConversationID: c.ID,
				Reason:         "closed group has no members other than the sender",
			}
		}

		return ClosedGroupDestination(c.ID, members), nil

	case OpenGroupKind:
		if c.OpenGroup == nil || c.OpenGroup.Server == "" {
			return Destination{}, ConversationResolutionError{
				ConversationID: c.ID,
				Reason:         "open-group conversation has no server",
			}
		}

		return OpenGroupDestination(c.OpenGroup.Server, c.OpenGroup.Channel), nil

	default:
		return Destination{}, ConversationResolutionError{
			ConversationID: c.ID,
			Reason:         fmt.Sprintf("unrecognized conversation kind '%s'", c.Kind),
		}
	}
}
