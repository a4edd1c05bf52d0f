package message_test

import (
	"github.com/dogmatiq/courier/message"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func ResolveDestination()", func() {
	When("the conversation is with a contact", func() {
		It("returns a contact destination", func() {
			d, err := message.ResolveDestination(
				message.Conversation{
					ID:        "<conversation>",
					Kind:      message.ContactKind,
					Recipient: "<contact>",
				},
				"<self>",
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(d).To(Equal(message.ContactDestination("<contact>")))
		})

		It("returns an error if there is no recipient", func() {
			_, err := message.ResolveDestination(
				message.Conversation{
					ID:   "<conversation>",
					Kind: message.ContactKind,
				},
				"<self>",
			)
			Expect(err).To(MatchError(message.ConversationResolutionError{
				ConversationID: "<conversation>",
				Reason:         "contact conversation has no recipient",
			}))
		})
	})

	When("the conversation is a closed group", func() {
		It("returns the members other than the sender", func() {
			d, err := message.ResolveDestination(
				message.Conversation{
					ID:      "<group>",
					Kind:    message.ClosedGroupKind,
					Members: []string{"<a>", "<self>", "<b>", "<a>"},
				},
				"<self>",
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(d).To(Equal(message.ClosedGroupDestination("<group>", []string{"<a>", "<b>"})))
		})

		It("returns an error if the sender is the only member", func() {
			_, err := message.ResolveDestination(
				message.Conversation{
					ID:      "<group>",
					Kind:    message.ClosedGroupKind,
					Members: []string{"<self>"},
				},
				"<self>",
			)

			var target message.ConversationResolutionError
			Expect(err).To(BeAssignableToTypeOf(target))
		})
	})

	When("the conversation is an open group", func() {
		It("returns an open-group destination", func() {
			d, err := message.ResolveDestination(
				message.Conversation{
					ID:   "<conversation>",
					Kind: message.OpenGroupKind,
					OpenGroup: &message.OpenGroup{
						Server:  "https://chat.example.org",
						Channel: 1,
					},
				},
				"<self>",
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(d).To(Equal(message.OpenGroupDestination("https://chat.example.org", 1)))
		})

		It("returns an error if there is no server", func() {
			_, err := message.ResolveDestination(
				message.Conversation{
					ID:   "<conversation>",
					Kind: message.OpenGroupKind,
				},
				"<self>",
			)
			Expect(err).To(HaveOccurred())
		})
	})

	It("returns an error if the kind is not recognized", func() {
		_, err := message.ResolveDestination(
			message.Conversation{
				ID:   "<conversation>",
				Kind: "<unknown>",
			},
			"<self>",
		)
		Expect(err).To(MatchError(
			"unable to resolve the destination of conversation '<conversation>': unrecognized conversation kind '<unknown>'",
		))
	})
})

var _ = Describe("type Destination", func() {
	Describe("func Key()", func() {
		It("is distinct for each kind of destination", func() {
			Expect(message.ContactDestination("x").Key()).To(Equal("contact:x"))
			Expect(message.ClosedGroupDestination("x", nil).Key()).To(Equal("closed-group:x"))
			Expect(message.OpenGroupDestination("x", 2).Key()).To(Equal("open-group:x/2"))
		})
	})
})
