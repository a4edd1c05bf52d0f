package providertest

import (
	"github.com/dogmatiq/courier/persistence"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

func declareProviderTests(tc *testContext) {
	ginkgo.Describe("type Provider (interface)", func() {
		var (
			provider persistence.Provider
			close    func()
		)

		ginkgo.BeforeEach(func() {
			provider, close = tc.Out.NewProvider()
		})

		ginkgo.AfterEach(func() {
			close()
		})

		ginkgo.Describe("func Open()", func() {
			ginkgo.It("returns different instances for different accounts", func() {
				ds1, err := provider.Open(tc.Context, "<account-1>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer ds1.Close()

				ds2, err := provider.Open(tc.Context, "<account-2>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer ds2.Close()

				gomega.Expect(ds1).ToNot(gomega.BeIdenticalTo(ds2))
			})

			ginkgo.It("returns an error if the data-store is already open", func() {
				ds, err := provider.Open(tc.Context, accountKey)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				defer ds.Close()

				_, err = provider.Open(tc.Context, accountKey)
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreLocked))
			})

			ginkgo.It("allows re-opening after the data-store is closed", func() {
				ds, err := provider.Open(tc.Context, accountKey)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = ds.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				ds, err = provider.Open(tc.Context, accountKey)
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				ds.Close()
			})
		})
	})
}

func declareDataStoreTests(tc *testContext) {
	ginkgo.Describe("type DataStore (interface)", func() {
		var (
			dataStore persistence.DataStore
			tearDown  func()
		)

		ginkgo.BeforeEach(func() {
			dataStore, tearDown = tc.setupDataStore()
		})

		ginkgo.AfterEach(func() {
			tearDown()
		})

		ginkgo.Describe("func Persist()", func() {
			ginkgo.It("returns an error if the data-store is closed", func() {
				dataStore.Close()

				err := dataStore.Persist(tc.Context, persistence.Batch{
					persistence.SavePollCursor{
						ConversationID: "<conversation>",
						LastMessageID:  1,
					},
				})
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreClosed))
			})

			ginkgo.It("does not apply any operations if one of them fails", func() {
				err := dataStore.Persist(tc.Context, persistence.Batch{
					persistence.SavePollCursor{
						ConversationID: "<conversation>",
						LastMessageID:  1,
					},
					persistence.RemoveJob{
						Job: persistence.Job{ID: "<job>", Revision: 1},
					},
				})
				gomega.Expect(err).To(gomega.BeAssignableToTypeOf(persistence.ConflictError{}))

				n, err := dataStore.LoadPollCursor(tc.Context, "<conversation>")
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())
				gomega.Expect(n).To(gomega.BeZero())
			})

			ginkgo.It("panics if the batch contains multiple operations for the same entity", func() {
				gomega.Expect(func() {
					dataStore.Persist(tc.Context, persistence.Batch{
						persistence.SavePollCursor{ConversationID: "<conversation>"},
						persistence.ClearConversationState{ConversationID: "<conversation>"},
					})
				}).To(gomega.Panic())
			})
		})

		ginkgo.Describe("func Close()", func() {
			ginkgo.It("returns an error if the data-store is already closed", func() {
				err := dataStore.Close()
				gomega.Expect(err).ShouldNot(gomega.HaveOccurred())

				err = dataStore.Close()
				gomega.Expect(err).To(gomega.Equal(persistence.ErrDataStoreClosed))
			})
		})
	})
}
