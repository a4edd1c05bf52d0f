package courier_test

import (
	"context"
	"errors"
	"time"

	. "github.com/dogmatiq/courier"
	. "github.com/dogmatiq/courier/fixtures"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/notification"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/persistence/memorypersistence"
	"github.com/dogmatiq/courier/poller"
	"github.com/dogmatiq/linger/backoff"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
)

var _ = Describe("type Engine", func() {
	var (
		ctx        context.Context
		cancel     context.CancelFunc
		provider   *memorypersistence.Provider
		transport  *TransportStub
		fileServer *FileServerStub
		fetcher    *FetcherStub
		sink       *SinkStub
		engine     *Engine
		result     chan error

		contact = message.Conversation{
			ID:        "<conversation>",
			Kind:      message.ContactKind,
			Recipient: "<public-key>",
		}
	)

	run := func() {
		result = make(chan error, 1)
		go func() {
			result <- engine.Run(ctx)
		}()
	}

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)

		provider = &memorypersistence.Provider{}
		transport = &TransportStub{}
		fileServer = &FileServerStub{}
		sink = &SinkStub{}
		fetcher = &FetcherStub{
			PollFunc: func(_ context.Context, _ message.OpenGroup, since uint64) ([]poller.Post, error) {
				if since == 0 {
					return []poller.Post{{ID: 1, Sender: "<alice>"}}, nil
				}
				return nil, nil
			},
		}

		var err error
		engine, err = Open(
			ctx,
			WithAccountKey("<account-key>"),
			WithPersistence(provider),
			WithTransport(transport),
			WithFileServer(fileServer, "https://files.example.org"),
			WithOpenGroups(fetcher, sink, nil),
			WithPollInterval(time.Millisecond),
			WithDeliveryBackoff(backoff.Constant(time.Millisecond)),
		)
		Expect(err).ShouldNot(HaveOccurred())

		err = engine.SaveConversation(ctx, contact)
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		cancel()

		if result != nil {
			Eventually(result).Should(Receive())
			result = nil
		}

		engine.Close()
	})

	Describe("func Open()", func() {
		It("returns an error if the data-store is already open", func() {
			_, err := Open(
				ctx,
				WithAccountKey("<account-key>"),
				WithPersistence(provider),
				WithTransport(transport),
				WithFileServer(fileServer, "https://files.example.org"),
			)
			Expect(err).To(Equal(persistence.ErrDataStoreLocked))
		})

		It("registers the metrics", func() {
			reg := prometheus.NewRegistry()

			e, err := Open(
				ctx,
				WithAccountKey("<other-account-key>"),
				WithPersistence(provider),
				WithTransport(transport),
				WithFileServer(fileServer, "https://files.example.org"),
				WithMetrics(reg),
			)
			Expect(err).ShouldNot(HaveOccurred())
			defer e.Close()

			families, err := reg.Gather()
			Expect(err).ShouldNot(HaveOccurred())
			Expect(families).NotTo(BeEmpty())
		})

		It("panics if the required options are omitted", func() {
			Expect(func() {
				Open(ctx, WithPersistence(provider))
			}).To(PanicWith("no account key configured, see courier.WithAccountKey()"))

			Expect(func() {
				Open(ctx, WithAccountKey("<account-key>"))
			}).To(PanicWith("no transport configured, see courier.WithTransport()"))

			Expect(func() {
				Open(ctx, WithAccountKey("<account-key>"), WithTransport(transport))
			}).To(PanicWith("no file server configured, see courier.WithFileServer()"))
		})
	})

	Describe("func Send()", func() {
		It("delivers the message when the engine is running", func() {
			m := message.New([]byte("<payload>"))

			err := engine.Send(ctx, m, contact.ID)
			Expect(err).ShouldNot(HaveOccurred())

			run()

			Eventually(func() int {
				return len(transport.Sent())
			}).Should(Equal(1))

			Eventually(func() persistence.DeliveryState {
				s, _, _ := engine.MessageStatus(ctx, m.ID)
				return s.State
			}).Should(Equal(persistence.Sent))
		})

		It("retries failed deliveries", func() {
			failures := 2
			transport.SendFunc = func(context.Context, message.Message, message.Destination) error {
				if failures > 0 {
					failures--
					return errors.New("<error>")
				}
				return nil
			}

			run()

			err := engine.Send(ctx, message.New(nil), contact.ID)
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(func() int {
				return len(transport.Sent())
			}).Should(Equal(1))
		})
	})

	Describe("func SendNonDurably()", func() {
		It("resolves the future once the message is sent", func() {
			f := engine.SendNonDurably(ctx, message.New(nil), contact.ID)

			err := f.Wait(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(transport.Sent()).To(HaveLen(1))
		})
	})

	Describe("func AddOpenGroup()", func() {
		It("polls the open group while the engine is running", func() {
			run()

			c, err := engine.AddOpenGroup(ctx, "https://open.example.org", 1, "<name>")
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(func() []poller.Post {
				return sink.Posts(c.ID)
			}).Should(HaveLen(1))
		})
	})

	Describe("func SaveConversation()", func() {
		It("publishes a notification when a conversation is changed", func() {
			events, unsub := engine.Notifications().Subscribe()
			defer unsub()

			changed := contact
			changed.Recipient = "<carol>"

			err := engine.SaveConversation(ctx, changed)
			Expect(err).ShouldNot(HaveOccurred())

			var e notification.Event
			Expect(events).To(Receive(&e))
			Expect(e.Type).To(Equal(notification.ConversationChanged))
			Expect(e.ConversationID).To(Equal(contact.ID))
		})

		It("does not publish a notification if the conversation is unchanged", func() {
			events, unsub := engine.Notifications().Subscribe()
			defer unsub()

			err := engine.SaveConversation(ctx, contact)
			Expect(err).ShouldNot(HaveOccurred())

			Consistently(events, 20*time.Millisecond).ShouldNot(Receive())
		})
	})

	Describe("func DeleteConversation()", func() {
		var openGroup message.Conversation

		BeforeEach(func() {
			openGroup = message.Conversation{
				ID:   "<open-group>",
				Kind: message.OpenGroupKind,
				OpenGroup: &message.OpenGroup{
					Server:  "https://open.example.org",
					Channel: 2,
				},
			}
		})

		// runEngine opens and runs an engine for a different account, without
		// open-group polling.
		runEngine := func() *Engine {
			e, err := Open(
				ctx,
				WithAccountKey("<other-account-key>"),
				WithPersistence(provider),
				WithTransport(transport),
				WithFileServer(fileServer, "https://files.example.org"),
			)
			Expect(err).ShouldNot(HaveOccurred())

			runCtx, stop := context.WithCancel(ctx)
			done := make(chan struct{})
			go func() {
				defer close(done)
				e.Run(runCtx)
			}()

			DeferCleanup(func() {
				stop()
				<-done
				e.Close()
			})

			return e
		}

		// blockSends makes the transport block until the send is canceled,
		// signaling each attempt on the returned channel.
		blockSends := func() <-chan struct{} {
			attempts := make(chan struct{}, 100)
			transport.SendFunc = func(ctx context.Context, _ message.Message, _ message.Destination) error {
				attempts <- struct{}{}
				<-ctx.Done()
				return ctx.Err()
			}
			return attempts
		}

		It("clears the state of an open group that is deleted straight after it is saved", func() {
			run()

			err := engine.SaveConversation(ctx, openGroup)
			Expect(err).ShouldNot(HaveOccurred())

			m := message.New(nil)
			err = engine.SendNonDurably(ctx, m, openGroup.ID).Wait(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = engine.DeleteConversation(ctx, openGroup.ID)
			Expect(err).ShouldNot(HaveOccurred())

			_, ok, err := engine.MessageStatus(ctx, m.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("clears the state of an open group when open groups are not polled", func() {
			e := runEngine()

			err := e.SaveConversation(ctx, openGroup)
			Expect(err).ShouldNot(HaveOccurred())

			m := message.New(nil)
			err = e.SendNonDurably(ctx, m, openGroup.ID).Wait(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			err = e.DeleteConversation(ctx, openGroup.ID)
			Expect(err).ShouldNot(HaveOccurred())

			_, ok, err := e.MessageStatus(ctx, m.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeFalse())

			c, err := e.AddOpenGroup(ctx, openGroup.OpenGroup.Server, openGroup.OpenGroup.Channel, "<name>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.ID).NotTo(Equal(openGroup.ID))
		})

		It("abandons durable deliveries that are in progress", func() {
			attempts := blockSends()
			run()

			m := message.New(nil)
			err := engine.Send(ctx, m, contact.ID)
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(attempts).Should(Receive())

			err = engine.DeleteConversation(ctx, contact.ID)
			Expect(err).ShouldNot(HaveOccurred())

			s, ok, err := engine.MessageStatus(ctx, m.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(s.State).To(Equal(persistence.Failed))
			Expect(s.LastError).To(Equal(
				message.ConversationDeletedError{ConversationID: contact.ID}.Error(),
			))

			Consistently(attempts, 50*time.Millisecond).ShouldNot(Receive())
		})

		It("abandons non-durable sends that are in progress", func() {
			attempts := blockSends()

			m := message.New(nil)
			f := engine.SendNonDurably(ctx, m, contact.ID)

			Eventually(attempts).Should(Receive())

			err := engine.DeleteConversation(ctx, contact.ID)
			Expect(err).ShouldNot(HaveOccurred())

			err = f.Wait(ctx)
			Expect(err).To(Equal(message.ConversationDeletedError{ConversationID: contact.ID}))

			s, ok, err := engine.MessageStatus(ctx, m.ID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(s.State).To(Equal(persistence.Failed))
		})

		It("publishes a notification", func() {
			events, unsub := engine.Notifications().Subscribe()
			defer unsub()

			err := engine.DeleteConversation(ctx, contact.ID)
			Expect(err).ShouldNot(HaveOccurred())

			var e notification.Event
			Expect(events).To(Receive(&e))
			Expect(e.Type).To(Equal(notification.ConversationDeleted))
			Expect(e.ConversationID).To(Equal(contact.ID))
		})
	})

	Describe("func Run()", func() {
		It("returns the context error when the context is canceled", func() {
			run()
			cancel()

			Eventually(result).Should(Receive(Equal(context.Canceled)))
		})
	})

	Describe("func Close()", func() {
		It("closes the data-store", func() {
			err := engine.Close()
			Expect(err).ShouldNot(HaveOccurred())

			_, _, err = engine.MessageStatus(ctx, "<message>")
			Expect(err).To(Equal(persistence.ErrDataStoreClosed))
		})
	})
})
