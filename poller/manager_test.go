package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/dogmatiq/courier/fixtures"
	"github.com/dogmatiq/courier/internal/metrics"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/notification"
	"github.com/dogmatiq/courier/persistence"
	. "github.com/dogmatiq/courier/poller"
	"github.com/dogmatiq/linger/backoff"
	. "github.com/jmalloc/gomegax"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// lookupStub is a test implementation of the Lookup interface.
type lookupStub struct {
	calls int32
	err   error
}

func (l *lookupStub) DisplayName(_ context.Context, server string, channel uint64) (string, error) {
	atomic.AddInt32(&l.calls, 1)
	return "<looked-up name>", l.err
}

// openGroup returns an open-group conversation for the given channel.
func openGroup(channel uint64) message.Conversation {
	const server = "https://open.example.org"

	return message.Conversation{
		ID:   message.OpenGroupDestination(server, channel).Key(),
		Kind: message.OpenGroupKind,
		OpenGroup: &message.OpenGroup{
			Server:      server,
			Channel:     channel,
			DisplayName: "<name>",
		},
	}
}

var _ = Describe("type Manager", func() {
	var (
		ctx       context.Context
		cancel    context.CancelFunc
		dataStore *DataStoreStub
		fetcher   *FetcherStub
		lookup    *lookupStub
		hub       *notification.Hub
		mx        *metrics.Metrics
		manager   *Manager

		pm    sync.Mutex
		polls map[uint64]int

		group1, group2 message.Conversation
	)

	save := func(ops ...persistence.Operation) {
		err := dataStore.Persist(ctx, ops)
		Expect(err).ShouldNot(HaveOccurred())
	}

	pollCount := func(channel uint64) func() int {
		return func() int {
			pm.Lock()
			defer pm.Unlock()
			return polls[channel]
		}
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)

		dataStore = NewDataStoreStub()
		lookup = &lookupStub{}
		hub = &notification.Hub{}
		mx = metrics.New()
		polls = map[uint64]int{}

		fetcher = &FetcherStub{
			PollFunc: func(_ context.Context, g message.OpenGroup, _ uint64) ([]Post, error) {
				pm.Lock()
				defer pm.Unlock()
				polls[g.Channel]++
				return nil, nil
			},
		}

		group1 = openGroup(1)
		group2 = openGroup(2)

		save(
			persistence.SaveConversation{Conversation: group1},
			persistence.SaveConversation{Conversation: group2},
		)

		manager = &Manager{
			DataStore:       dataStore,
			Fetcher:         fetcher,
			Sink:            &SinkStub{},
			Lookup:          lookup,
			Hub:             hub,
			Interval:        time.Millisecond,
			BackoffStrategy: backoff.Constant(time.Millisecond),
			Metrics:         mx,
		}
	})

	AfterEach(func() {
		manager.StopPollers()
		hub.Close()
		cancel()
	})

	Describe("func StartPollersIfNeeded()", func() {
		It("starts a poller for each open-group conversation", func() {
			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling(group1.ID)).To(BeTrue())
			Expect(manager.IsPolling(group2.ID)).To(BeTrue())

			Eventually(pollCount(1)).Should(BeNumerically(">", 0))
			Eventually(pollCount(2)).Should(BeNumerically(">", 0))
		})

		It("does not start pollers for conversations without an open-group association", func() {
			save(persistence.SaveConversation{
				Conversation: message.Conversation{
					ID:        "<contact>",
					Kind:      message.ContactKind,
					Recipient: "<public-key>",
				},
			})

			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling("<contact>")).To(BeFalse())
		})

		It("starts exactly one poller per conversation when called concurrently", func() {
			var g sync.WaitGroup

			for i := 0; i < 10; i++ {
				g.Add(1)
				go func() {
					defer GinkgoRecover()
					defer g.Done()

					err := manager.StartPollersIfNeeded(ctx)
					Expect(err).ShouldNot(HaveOccurred())
				}()
			}

			g.Wait()

			Eventually(func() float64 {
				return testutil.ToFloat64(mx.ActivePollers)
			}).Should(BeNumerically("==", 2))

			Consistently(func() float64 {
				return testutil.ToFloat64(mx.ActivePollers)
			}, 50*time.Millisecond).Should(BeNumerically("==", 2))
		})

		It("returns an error if the open groups can not be loaded", func() {
			dataStore.LoadOpenGroupsFunc = func(context.Context) ([]message.Conversation, error) {
				return nil, errors.New("<error>")
			}

			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).To(MatchError("<error>"))
		})
	})

	Describe("func StopPollers()", func() {
		It("stops all pollers", func() {
			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(pollCount(1)).Should(BeNumerically(">", 0))

			manager.StopPollers()

			Expect(manager.IsPolling(group1.ID)).To(BeFalse())
			Expect(manager.IsPolling(group2.ID)).To(BeFalse())

			n := pollCount(1)()
			Consistently(pollCount(1), 50*time.Millisecond).Should(Equal(n))
		})

		It("does not start pollers for conversations discovered after it is called", func() {
			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			manager.StopPollers()

			group3 := openGroup(3)
			save(persistence.SaveConversation{Conversation: group3})

			err = manager.Refresh(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling(group3.ID)).To(BeFalse())
		})
	})

	Describe("func Refresh()", func() {
		It("starts pollers for new conversations while active", func() {
			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			group3 := openGroup(3)
			save(persistence.SaveConversation{Conversation: group3})

			err = manager.Refresh(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling(group3.ID)).To(BeTrue())
			Eventually(pollCount(3)).Should(BeNumerically(">", 0))
		})

		It("does not start pollers while inactive", func() {
			err := manager.Refresh(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling(group1.ID)).To(BeFalse())

			_, ok := manager.OpenGroup(group1.OpenGroup.Server, 1)
			Expect(ok).To(BeTrue())
		})

		It("stops pollers for conversations that no longer exist", func() {
			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			save(persistence.RemoveConversation{ConversationID: group1.ID})

			err = manager.Refresh(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling(group1.ID)).To(BeFalse())
			Expect(manager.IsPolling(group2.ID)).To(BeTrue())

			_, ok := manager.OpenGroup(group1.OpenGroup.Server, 1)
			Expect(ok).To(BeFalse())
		})
	})

	Describe("func HandleConversationDeleted()", func() {
		BeforeEach(func() {
			save(persistence.SavePollCursor{
				ConversationID: group1.ID,
				LastMessageID:  100,
			})

			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("stops polling the conversation", func() {
			err := manager.HandleConversationDeleted(ctx, group1.ID)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling(group1.ID)).To(BeFalse())
			Expect(manager.IsPolling(group2.ID)).To(BeTrue())

			n := pollCount(1)()
			Consistently(pollCount(1), 50*time.Millisecond).Should(Equal(n))
		})

		It("clears the conversation's cached state", func() {
			err := manager.HandleConversationDeleted(ctx, group1.ID)
			Expect(err).ShouldNot(HaveOccurred())

			cursor, err := dataStore.LoadPollCursor(ctx, group1.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(cursor).To(BeZero())
		})

		It("removes the open-group association", func() {
			err := manager.HandleConversationDeleted(ctx, group1.ID)
			Expect(err).ShouldNot(HaveOccurred())

			groups, err := dataStore.LoadOpenGroups(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(groups).To(HaveLen(1))
			Expect(groups[0].ID).To(Equal(group2.ID))
		})

		It("does not recreate the poller when pollers are started again", func() {
			err := manager.HandleConversationDeleted(ctx, group1.ID)
			Expect(err).ShouldNot(HaveOccurred())

			err = manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling(group1.ID)).To(BeFalse())
		})

		It("only removes the association for conversations that are not open groups", func() {
			var batches []persistence.Batch
			dataStore.PersistFunc = func(ctx context.Context, b persistence.Batch) error {
				batches = append(batches, b)
				return dataStore.DataStore.Persist(ctx, b)
			}

			err := manager.HandleConversationDeleted(ctx, "<contact>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(batches).To(ConsistOf(
				Equal(persistence.Batch{
					persistence.RemoveOpenGroupAssociation{ConversationID: "<contact>"},
				}),
			))
		})

		It("returns an error if the data-store can not be updated", func() {
			dataStore.PersistFunc = func(context.Context, persistence.Batch) error {
				return errors.New("<error>")
			}

			err := manager.HandleConversationDeleted(ctx, group1.ID)
			Expect(err).To(MatchError("<error>"))
		})
	})

	Describe("func DeleteConversation()", func() {
		It("removes the conversation, its association and its state in one batch", func() {
			var batches []persistence.Batch
			dataStore.PersistFunc = func(ctx context.Context, b persistence.Batch) error {
				batches = append(batches, b)
				return dataStore.DataStore.Persist(ctx, b)
			}

			err := manager.DeleteConversation(ctx, group1.ID)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(batches).To(ConsistOf(
				Equal(persistence.Batch{
					persistence.RemoveConversation{ConversationID: group1.ID},
					persistence.RemoveOpenGroupAssociation{ConversationID: group1.ID},
					persistence.ClearConversationState{ConversationID: group1.ID},
				}),
			))
		})

		It("clears the state of an open group that the manager has not yet discovered", func() {
			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			group3 := openGroup(3)
			save(
				persistence.SaveConversation{Conversation: group3},
				persistence.SavePollCursor{
					ConversationID: group3.ID,
					LastMessageID:  100,
				},
				persistence.SaveMessageStatus{
					Status: persistence.MessageStatus{
						MessageID:      "<message>",
						ConversationID: group3.ID,
						State:          persistence.Sent,
					},
				},
			)

			err = manager.DeleteConversation(ctx, group3.ID)
			Expect(err).ShouldNot(HaveOccurred())

			cursor, err := dataStore.LoadPollCursor(ctx, group3.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(cursor).To(BeZero())

			_, ok, err := dataStore.LoadMessageStatus(ctx, "<message>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())

			_, ok, err = dataStore.LoadConversation(ctx, group3.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("stops polling the conversation before its state is cleared", func() {
			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(pollCount(1)).Should(BeNumerically(">", 0))

			err = manager.DeleteConversation(ctx, group1.ID)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling(group1.ID)).To(BeFalse())
			Expect(manager.IsPolling(group2.ID)).To(BeTrue())

			n := pollCount(1)()
			Consistently(pollCount(1), 50*time.Millisecond).Should(Equal(n))
		})

		It("does not clear the state of conversations that are not open groups", func() {
			contact := message.Conversation{
				ID:        "<contact>",
				Kind:      message.ContactKind,
				Recipient: "<recipient>",
			}
			save(persistence.SaveConversation{Conversation: contact})

			var batches []persistence.Batch
			dataStore.PersistFunc = func(ctx context.Context, b persistence.Batch) error {
				batches = append(batches, b)
				return dataStore.DataStore.Persist(ctx, b)
			}

			err := manager.DeleteConversation(ctx, contact.ID)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(batches).To(ConsistOf(
				Equal(persistence.Batch{
					persistence.RemoveConversation{ConversationID: contact.ID},
					persistence.RemoveOpenGroupAssociation{ConversationID: contact.ID},
				}),
			))
		})
	})

	Describe("func AddOpenGroup()", func() {
		It("returns the existing conversation if the open group is already known", func() {
			c, err := manager.AddOpenGroup(ctx, group1.OpenGroup.Server, 1, "")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c).To(EqualX(group1))
			Expect(atomic.LoadInt32(&lookup.calls)).To(BeZero())
		})

		It("looks up the display name of a new open group", func() {
			c, err := manager.AddOpenGroup(ctx, "https://other.example.org", 7, "")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.OpenGroup.DisplayName).To(Equal("<looked-up name>"))
		})

		It("uses the given display name", func() {
			c, err := manager.AddOpenGroup(ctx, "https://other.example.org", 7, "<given name>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.OpenGroup.DisplayName).To(Equal("<given name>"))
			Expect(atomic.LoadInt32(&lookup.calls)).To(BeZero())
		})

		It("persists the conversation", func() {
			c, err := manager.AddOpenGroup(ctx, "https://other.example.org", 7, "<given name>")
			Expect(err).ShouldNot(HaveOccurred())

			x, ok, err := dataStore.LoadConversation(ctx, c.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(x).To(EqualX(c))
		})

		It("starts polling the new open group if the manager is active", func() {
			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			c, err := manager.AddOpenGroup(ctx, "https://other.example.org", 7, "<given name>")
			Expect(err).ShouldNot(HaveOccurred())

			Expect(manager.IsPolling(c.ID)).To(BeTrue())
			Eventually(pollCount(7)).Should(BeNumerically(">", 0))
		})

		It("publishes a notification", func() {
			events, unsub := hub.Subscribe()
			defer unsub()

			c, err := manager.AddOpenGroup(ctx, "https://other.example.org", 7, "<given name>")
			Expect(err).ShouldNot(HaveOccurred())

			var e notification.Event
			Expect(events).To(Receive(&e))
			Expect(e.Type).To(Equal(notification.ConversationAdded))
			Expect(e.ConversationID).To(Equal(c.ID))
		})

		It("returns an error if the display name can not be looked up", func() {
			lookup.err = errors.New("<error>")

			_, err := manager.AddOpenGroup(ctx, "https://other.example.org", 7, "")
			Expect(err).To(MatchError(
				"unable to query display name of https://other.example.org/7: <error>",
			))
		})
	})

	Describe("func Run()", func() {
		var (
			result chan error
			loads  int32
		)

		BeforeEach(func() {
			loads = 0
			dataStore.LoadOpenGroupsFunc = func(ctx context.Context) ([]message.Conversation, error) {
				atomic.AddInt32(&loads, 1)
				return dataStore.DataStore.LoadOpenGroups(ctx)
			}

			err := manager.StartPollersIfNeeded(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			result = make(chan error, 1)

			runCtx, cancelRun := context.WithCancel(ctx)
			DeferCleanup(cancelRun)

			go func() {
				result <- manager.Run(runCtx)
			}()

			// Run() subscribes to the hub before its initial refresh.
			Eventually(func() int32 {
				return atomic.LoadInt32(&loads)
			}).Should(BeNumerically(">=", 2))
		})

		It("starts polling conversations that are added", func() {
			group3 := openGroup(3)
			save(persistence.SaveConversation{Conversation: group3})

			_, err := hub.Publish(ctx, notification.ConversationAdded, group3.ID)
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(func() bool {
				return manager.IsPolling(group3.ID)
			}).Should(BeTrue())
		})

		It("stops polling conversations that are deleted", func() {
			_, err := hub.Publish(ctx, notification.ConversationDeleted, group1.ID)
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(func() bool {
				return manager.IsPolling(group1.ID)
			}).Should(BeFalse())
		})

		It("stops all pollers when the context is canceled", func() {
			cancel()

			Eventually(result).Should(Receive(Equal(context.Canceled)))

			Expect(manager.IsPolling(group1.ID)).To(BeFalse())
			Expect(manager.IsPolling(group2.ID)).To(BeFalse())
		})
	})
})
