package notification_test

import (
	"context"
	"time"

	. "github.com/dogmatiq/courier/notification"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Hub", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		hub    *Hub
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		hub = &Hub{}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Publish()", func() {
		It("delivers the event to every subscriber", func() {
			ch1, unsub1 := hub.Subscribe()
			defer unsub1()

			ch2, unsub2 := hub.Subscribe()
			defer unsub2()

			e, err := hub.Publish(ctx, ConversationAdded, "<conversation>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(e.Seq).To(BeEquivalentTo(1))
			Expect(e.Type).To(Equal(ConversationAdded))
			Expect(e.ConversationID).To(Equal("<conversation>"))

			Expect(ch1).To(Receive(Equal(e)))
			Expect(ch2).To(Receive(Equal(e)))
		})

		It("does not deliver events published before subscribing", func() {
			_, err := hub.Publish(ctx, ConversationAdded, "<conversation>")
			Expect(err).ShouldNot(HaveOccurred())

			ch, unsub := hub.Subscribe()
			defer unsub()

			Expect(ch).NotTo(Receive())
		})

		It("assigns increasing sequence numbers", func() {
			ch, unsub := hub.Subscribe()
			defer unsub()

			hub.Publish(ctx, ConversationAdded, "<conversation>")
			hub.Publish(ctx, ConversationDeleted, "<conversation>")

			var e Event
			Expect(ch).To(Receive(&e))
			Expect(e.Seq).To(BeEquivalentTo(1))
			Expect(ch).To(Receive(&e))
			Expect(e.Seq).To(BeEquivalentTo(2))
			Expect(e.Type).To(Equal(ConversationDeleted))
		})

		It("blocks while a subscriber's buffer is full", func() {
			hub.BufferSize = 1

			_, unsub := hub.Subscribe()
			defer unsub()

			_, err := hub.Publish(ctx, ConversationAdded, "<conversation>")
			Expect(err).ShouldNot(HaveOccurred())

			ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
			defer cancel()

			_, err = hub.Publish(ctx, ConversationChanged, "<conversation>")
			Expect(err).To(Equal(context.DeadlineExceeded))
		})

		It("returns an error if the hub is closed", func() {
			hub.Close()

			_, err := hub.Publish(ctx, ConversationAdded, "<conversation>")
			Expect(err).To(Equal(ErrHubClosed))
		})
	})

	Describe("func Subscribe()", func() {
		It("stops delivering events after unsubscribing", func() {
			ch, unsub := hub.Subscribe()
			unsub()
			unsub()

			_, err := hub.Publish(ctx, ConversationAdded, "<conversation>")
			Expect(err).ShouldNot(HaveOccurred())
			Expect(ch).NotTo(Receive())
		})

		It("does not block a publisher when unsubscribing", func() {
			hub.BufferSize = 1

			_, unsub := hub.Subscribe()

			_, err := hub.Publish(ctx, ConversationAdded, "<conversation>")
			Expect(err).ShouldNot(HaveOccurred())

			result := make(chan error, 1)
			go func() {
				_, err := hub.Publish(ctx, ConversationChanged, "<conversation>")
				result <- err
			}()

			Consistently(result, 10*time.Millisecond).ShouldNot(Receive())
			unsub()
			Eventually(result).Should(Receive(BeNil()))
		})

		It("returns a channel that never receives events if the hub is closed", func() {
			hub.Close()

			ch, unsub := hub.Subscribe()
			defer unsub()

			Expect(ch).NotTo(Receive())
		})
	})

	Describe("func Close()", func() {
		It("unsubscribes all subscribers", func() {
			hub.BufferSize = 1

			_, unsub := hub.Subscribe()
			defer unsub()

			_, err := hub.Publish(ctx, ConversationAdded, "<conversation>")
			Expect(err).ShouldNot(HaveOccurred())

			err = hub.Close()
			Expect(err).ShouldNot(HaveOccurred())

			_, err = hub.Publish(ctx, ConversationChanged, "<conversation>")
			Expect(err).To(Equal(ErrHubClosed))
		})

		It("returns an error if the hub is already closed", func() {
			hub.Close()
			Expect(hub.Close()).To(Equal(ErrHubClosed))
		})
	})
})
