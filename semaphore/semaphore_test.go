package semaphore_test

import (
	"context"
	"time"

	. "github.com/dogmatiq/courier/semaphore"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Semaphore", func() {
	When("the semaphore is unbounded", func() {
		var sem Semaphore

		Describe("func Limit()", func() {
			It("returns zero", func() {
				Expect(sem.Limit()).To(Equal(0))

				unbounded := New(0)
				Expect(unbounded.Limit()).To(Equal(0))
			})
		})

		Describe("func Acquire()", func() {
			It("does not block", func() {
				for i := 0; i < 10; i++ {
					err := sem.Acquire(context.Background())
					Expect(err).ShouldNot(HaveOccurred())
				}
			})

			It("returns an error if the context is canceled", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()

				err := sem.Acquire(ctx)
				Expect(err).To(Equal(context.Canceled))
			})
		})
	})

	When("the semaphore is bounded", func() {
		var sem Semaphore

		BeforeEach(func() {
			sem = New(1)
		})

		Describe("func Limit()", func() {
			It("returns the limit", func() {
				Expect(sem.Limit()).To(Equal(1))
			})
		})

		Describe("func Acquire()", func() {
			It("blocks once the limit has been reached", func() {
				ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
				defer cancel()

				err := sem.Acquire(ctx)
				Expect(err).ShouldNot(HaveOccurred())
				defer sem.Release()

				err = sem.Acquire(ctx)
				Expect(err).To(Equal(context.DeadlineExceeded))
			})

			It("returns an error if the context is canceled while a slot is free", func() {
				ctx, cancel := context.WithCancel(context.Background())
				cancel()

				err := sem.Acquire(ctx)
				Expect(err).To(Equal(context.Canceled))

				err = sem.Acquire(context.Background())
				Expect(err).ShouldNot(HaveOccurred())
				sem.Release()
			})

			It("unblocks when the semaphore is released", func() {
				ctx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()

				err := sem.Acquire(ctx)
				Expect(err).ShouldNot(HaveOccurred())

				go func() {
					time.Sleep(5 * time.Millisecond)
					sem.Release()
				}()

				err = sem.Acquire(ctx)
				Expect(err).ShouldNot(HaveOccurred())
				sem.Release()
			})
		})
	})
})
