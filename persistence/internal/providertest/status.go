package providertest

import (
	"time"

	"github.com/dogmatiq/courier/persistence"
	"github.com/jmalloc/gomegax"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareStatusTests(tc *testContext) {
	ginkgo.Describe("type MessageStatusRepository (interface)", func() {
		var (
			dataStore persistence.DataStore
			tearDown  func()
			status    persistence.MessageStatus
		)

		ginkgo.BeforeEach(func() {
			dataStore, tearDown = tc.setupDataStore()

			status = persistence.MessageStatus{
				MessageID:      "<message>",
				ConversationID: "<conversation>",
				State:          persistence.Failed,
				LastError:      "<error>",
				UpdatedAt:      time.Now().UTC().Truncate(time.Millisecond),
			}
		})

		ginkgo.AfterEach(func() {
			tearDown()
		})

		ginkgo.It("returns false if the message has no status", func() {
			_, ok, err := dataStore.LoadMessageStatus(tc.Context, "<unknown>")
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("returns the most recently saved status", func() {
			persist(tc.Context, dataStore, persistence.SaveMessageStatus{
				Status: persistence.MessageStatus{
					MessageID:      status.MessageID,
					ConversationID: status.ConversationID,
					State:          persistence.Sending,
				},
			})
			persist(tc.Context, dataStore, persistence.SaveMessageStatus{Status: status})

			s, ok, err := dataStore.LoadMessageStatus(tc.Context, status.MessageID)
			gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())
			gomega.Expect(s).To(gomegax.EqualX(status))
		})

		ginkgo.Describe("type ClearConversationState", func() {
			ginkgo.It("removes the statuses and poll cursor of the conversation only", func() {
				other := status
				other.MessageID = "<other-message>"
				other.ConversationID = "<other-conversation>"

				persist(
					tc.Context,
					dataStore,
					persistence.SaveMessageStatus{Status: status},
					persistence.SaveMessageStatus{Status: other},
					persistence.SavePollCursor{ConversationID: status.ConversationID, LastMessageID: 10},
					persistence.SavePollCursor{ConversationID: other.ConversationID, LastMessageID: 20},
				)

				persist(tc.Context, dataStore, persistence.ClearConversationState{
					ConversationID: status.ConversationID,
				})

				_, ok, err := dataStore.LoadMessageStatus(tc.Context, status.MessageID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())

				n, err := dataStore.LoadPollCursor(tc.Context, status.ConversationID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(n).To(gomega.BeZero())

				_, ok, err = dataStore.LoadMessageStatus(tc.Context, other.MessageID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())

				n, err = dataStore.LoadPollCursor(tc.Context, other.ConversationID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(n).To(gomega.BeNumerically("==", 20))
			})
		})
	})
}
