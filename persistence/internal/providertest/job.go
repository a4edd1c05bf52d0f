package providertest

import (
	"time"

	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/jmalloc/gomegax"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareJobTests(tc *testContext) {
	ginkgo.Describe("type JobRepository (interface)", func() {
		var (
			dataStore  persistence.DataStore
			tearDown   func()
			now        time.Time
			job0, job1 persistence.Job
		)

		ginkgo.BeforeEach(func() {
			dataStore, tearDown = tc.setupDataStore()

			now = time.Now().UTC().Truncate(time.Millisecond)

			job0 = persistence.Job{
				ID: "<job-0>",
				Message: message.Message{
					ID:             "<message-0>",
					ConversationID: "<conversation>",
					AttachmentIDs:  []string{"<attachment>"},
					Payload:        []byte("<payload-0>"),
					SentAt:         now,
				},
				Destination:   message.ContactDestination("<contact>"),
				NextAttemptAt: now,
				CreatedAt:     now.Add(1 * time.Second),
			}

			job1 = persistence.Job{
				ID: "<job-1>",
				Message: message.Message{
					ID:             "<message-1>",
					ConversationID: "<group>",
					Payload:        []byte("<payload-1>"),
					SentAt:         now,
				},
				Destination:   message.ClosedGroupDestination("<group>", []string{"<a>", "<b>"}),
				NextAttemptAt: now,
				CreatedAt:     now,
			}
		})

		ginkgo.AfterEach(func() {
			tearDown()
		})

		ginkgo.Describe("func LoadJobs()", func() {
			ginkgo.It("returns an empty slice if there are no jobs", func() {
				jobs, err := dataStore.LoadJobs(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(jobs).To(gomega.BeEmpty())
			})

			ginkgo.It("returns jobs in order of creation", func() {
				persist(
					tc.Context,
					dataStore,
					persistence.SaveJob{Job: job0},
					persistence.SaveJob{Job: job1},
				)

				job0.Revision++
				job1.Revision++

				jobs, err := dataStore.LoadJobs(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(jobs).To(gomegax.EqualX([]persistence.Job{job1, job0}))
			})

			ginkgo.It("does not return removed jobs", func() {
				persist(tc.Context, dataStore, persistence.SaveJob{Job: job0})
				job0.Revision++
				persist(tc.Context, dataStore, persistence.RemoveJob{Job: job0})

				jobs, err := dataStore.LoadJobs(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(jobs).To(gomega.BeEmpty())
			})
		})

		ginkgo.Describe("type SaveJob", func() {
			ginkgo.It("updates an existing job", func() {
				persist(tc.Context, dataStore, persistence.SaveJob{Job: job0})
				job0.Revision++

				job0.FailureCount = 3
				job0.LastError = "<error>"
				persist(tc.Context, dataStore, persistence.SaveJob{Job: job0})
				job0.Revision++

				jobs, err := dataStore.LoadJobs(tc.Context)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(jobs).To(gomegax.EqualX([]persistence.Job{job0}))
			})

			ginkgo.It("returns a conflict error if the revision is stale", func() {
				persist(tc.Context, dataStore, persistence.SaveJob{Job: job0})

				op := persistence.SaveJob{Job: job0}
				err := dataStore.Persist(tc.Context, persistence.Batch{op})
				gomega.Expect(err).To(gomegax.EqualX(persistence.ConflictError{Cause: op}))
			})
		})

		ginkgo.Describe("type RemoveJob", func() {
			ginkgo.It("returns a conflict error if the job does not exist", func() {
				op := persistence.RemoveJob{Job: job0}
				err := dataStore.Persist(tc.Context, persistence.Batch{op})
				gomega.Expect(err).To(gomegax.EqualX(persistence.ConflictError{Cause: op}))
			})
		})
	})
}
