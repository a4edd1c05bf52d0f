package providertest

import (
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/jmalloc/gomegax"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareConversationTests(tc *testContext) {
	ginkgo.Describe("type ConversationRepository (interface)", func() {
		var (
			dataStore      persistence.DataStore
			tearDown       func()
			contact        message.Conversation
			group0, group1 message.Conversation
		)

		ginkgo.BeforeEach(func() {
			dataStore, tearDown = tc.setupDataStore()

			contact = message.Conversation{
				ID:        "<contact>",
				Kind:      message.ContactKind,
				Recipient: "<public-key>",
			}

			group0 = message.Conversation{
				ID:   "<open-group-0>",
				Kind: message.OpenGroupKind,
				OpenGroup: &message.OpenGroup{
					Server:      "https://chat.example.org",
					Channel:     1,
					DisplayName: "<name-0>",
				},
			}

			group1 = message.Conversation{
				ID:   "<open-group-1>",
				Kind: message.OpenGroupKind,
				OpenGroup: &message.OpenGroup{
					Server:      "https://chat.example.org",
					Channel:     2,
					DisplayName: "<name-1>",
				},
			}
		})

		ginkgo.AfterEach(func() {
			tearDown()
		})

		ginkgo.Describe("func LoadConversation()", func() {
			ginkgo.It("returns false if the conversation does not exist", func() {
				_, ok, err := dataStore.LoadConversation(tc.Context, "<unknown>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})

			ginkgo.It("returns the conversation including its open-group association", func() {
				persist(
					tc.Context,
					dataStore,
					persistence.SaveConversation{Conversation: contact},
					persistence.SaveConversation{Conversation: group0},
				)

				c, ok, err := dataStore.LoadConversation(tc.Context, contact.ID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(c).To(gomegax.EqualX(contact))

				c, ok, err = dataStore.LoadConversation(tc.Context, group0.ID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(c).To(gomegax.EqualX(group0))
			})

			ginkgo.It("returns false after the conversation is removed", func() {
				persist(tc.Context, dataStore, persistence.SaveConversation{Conversation: contact})
				persist(tc.Context, dataStore, persistence.RemoveConversation{ConversationID: contact.ID})

				_, ok, err := dataStore.LoadConversation(tc.Context, contact.ID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})
		})

		ginkgo.Describe("func LoadOpenGroups()", func() {
			ginkgo.BeforeEach(func() {
				persist(
					tc.Context,
					dataStore,
					persistence.SaveConversation{Conversation: group1},
					persistence.SaveConversation{Conversation: contact},
					persistence.SaveConversation{Conversation: group0},
				)
			})

			ginkgo.It("returns only open-group conversations, ordered by ID", func() {
				groups, err := dataStore.LoadOpenGroups(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(groups).To(gomegax.EqualX([]message.Conversation{group0, group1}))
			})

			ginkgo.It("excludes conversations whose association has been removed", func() {
				persist(tc.Context, dataStore, persistence.RemoveOpenGroupAssociation{ConversationID: group0.ID})

				groups, err := dataStore.LoadOpenGroups(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(groups).To(gomegax.EqualX([]message.Conversation{group1}))
			})

			ginkgo.It("excludes associations that refer to a removed conversation", func() {
				persist(tc.Context, dataStore, persistence.RemoveConversation{ConversationID: group1.ID})

				groups, err := dataStore.LoadOpenGroups(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(groups).To(gomegax.EqualX([]message.Conversation{group0}))
			})
		})
	})
}
