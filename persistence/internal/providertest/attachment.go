package providertest

import (
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/jmalloc/gomegax"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareAttachmentTests(tc *testContext) {
	ginkgo.Describe("type AttachmentRepository (interface)", func() {
		var (
			dataStore  persistence.DataStore
			tearDown   func()
			attachment message.Attachment
		)

		ginkgo.BeforeEach(func() {
			dataStore, tearDown = tc.setupDataStore()

			attachment = message.Attachment{
				ID:          "<attachment>",
				MessageID:   "<message>",
				ContentType: "text/plain",
				Data:        []byte("<data>"),
				State:       message.Pending,
			}
		})

		ginkgo.AfterEach(func() {
			tearDown()
		})

		ginkgo.Describe("func LoadAttachment()", func() {
			ginkgo.It("returns false if the attachment does not exist", func() {
				_, ok, err := dataStore.LoadAttachment(tc.Context, "<unknown>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeFalse())
			})

			ginkgo.It("returns a pending attachment", func() {
				persist(tc.Context, dataStore, persistence.SaveAttachment{Attachment: attachment})

				a, ok, err := dataStore.LoadAttachment(tc.Context, attachment.ID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(ok).To(gomega.BeTrue())
				gomega.Expect(a).To(gomegax.EqualX(attachment))
			})
		})

		ginkgo.Describe("type SaveAttachment", func() {
			ginkgo.It("always saves the attachment as pending", func() {
				attachment.State = message.Uploaded
				attachment.Reference = "<reference>"
				persist(tc.Context, dataStore, persistence.SaveAttachment{Attachment: attachment})

				a, _, err := dataStore.LoadAttachment(tc.Context, attachment.ID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(a.State).To(gomega.Equal(message.Pending))
				gomega.Expect(a.Reference).To(gomega.BeEmpty())
			})

			ginkgo.It("returns a conflict error if the attachment is already uploaded", func() {
				persist(tc.Context, dataStore, persistence.SaveAttachment{Attachment: attachment})
				persist(tc.Context, dataStore, persistence.MarkAttachmentUploaded{
					AttachmentID: attachment.ID,
					Server:       "<server>",
					Reference:    "<reference>",
				})

				op := persistence.SaveAttachment{Attachment: attachment}
				err := dataStore.Persist(tc.Context, persistence.Batch{op})
				gomega.Expect(err).To(gomega.BeAssignableToTypeOf(persistence.ConflictError{}))
			})
		})

		ginkgo.Describe("type MarkAttachmentUploaded", func() {
			ginkgo.It("marks the attachment as uploaded", func() {
				persist(tc.Context, dataStore, persistence.SaveAttachment{Attachment: attachment})
				persist(tc.Context, dataStore, persistence.MarkAttachmentUploaded{
					AttachmentID: attachment.ID,
					Server:       "<server>",
					Reference:    "<reference>",
				})

				a, _, err := dataStore.LoadAttachment(tc.Context, attachment.ID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(a.IsUploaded()).To(gomega.BeTrue())
				gomega.Expect(a.Server).To(gomega.Equal("<server>"))
				gomega.Expect(a.Reference).To(gomega.Equal(message.Reference("<reference>")))
			})

			ginkgo.It("keeps the existing reference if the attachment is already uploaded", func() {
				persist(tc.Context, dataStore, persistence.SaveAttachment{Attachment: attachment})
				persist(tc.Context, dataStore, persistence.MarkAttachmentUploaded{
					AttachmentID: attachment.ID,
					Server:       "<server>",
					Reference:    "<reference>",
				})
				persist(tc.Context, dataStore, persistence.MarkAttachmentUploaded{
					AttachmentID: attachment.ID,
					Server:       "<other-server>",
					Reference:    "<other-reference>",
				})

				a, _, err := dataStore.LoadAttachment(tc.Context, attachment.ID)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(a.Server).To(gomega.Equal("<server>"))
				gomega.Expect(a.Reference).To(gomega.Equal(message.Reference("<reference>")))
			})

			ginkgo.It("returns a not-found error if the attachment does not exist", func() {
				op := persistence.MarkAttachmentUploaded{
					AttachmentID: "<unknown>",
					Reference:    "<reference>",
				}
				err := dataStore.Persist(tc.Context, persistence.Batch{op})
				gomega.Expect(err).To(gomega.Equal(persistence.NotFoundError{Cause: op}))
			})
		})
	})
}
