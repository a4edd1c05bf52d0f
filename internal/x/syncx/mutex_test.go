package syncx_test

import (
	"context"
	"time"

	. "github.com/dogmatiq/courier/internal/x/syncx"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type RWMutex", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		mutex  *RWMutex
	)

	BeforeEach(func() {
		ctx, cancel = context.WithTimeout(context.Background(), 50*time.Millisecond)
		mutex = &RWMutex{}
	})

	AfterEach(func() {
		cancel()
	})

	Describe("func Lock()", func() {
		It("blocks while write-locked", func() {
			Expect(mutex.Lock(ctx)).To(Succeed())
			Expect(mutex.Lock(ctx)).To(Equal(context.DeadlineExceeded))
		})

		It("blocks while read-locked", func() {
			Expect(mutex.RLock(ctx)).To(Succeed())
			Expect(mutex.Lock(ctx)).To(Equal(context.DeadlineExceeded))
		})

		It("returns an error if the context is already canceled", func() {
			cancel()
			Expect(mutex.Lock(ctx)).To(Equal(context.Canceled))
		})

		It("prevents subsequent read-locks while it is blocked", func() {
			Expect(mutex.RLock(ctx)).To(Succeed())

			go func() {
				defer GinkgoRecover()
				Expect(mutex.Lock(ctx)).To(Equal(context.DeadlineExceeded))
			}()

			Consistently(func() bool {
				c, cancel := context.WithTimeout(ctx, time.Millisecond)
				defer cancel()

				if err := mutex.RLock(c); err != nil {
					return false
				}

				mutex.RUnlock()
				return true
			}, 20*time.Millisecond).Should(BeFalse())
		})
	})

	Describe("func Unlock()", func() {
		It("unblocks a pending call to Lock()", func() {
			Expect(mutex.Lock(ctx)).To(Succeed())

			go func() {
				time.Sleep(5 * time.Millisecond)
				mutex.Unlock()
			}()

			Expect(mutex.Lock(ctx)).To(Succeed())
		})

		It("unblocks all pending calls to RLock()", func() {
			Expect(mutex.Lock(ctx)).To(Succeed())

			errs := make(chan error, 3)
			for i := 0; i < cap(errs); i++ {
				go func() {
					errs <- mutex.RLock(ctx)
				}()
			}

			time.Sleep(5 * time.Millisecond)
			mutex.Unlock()

			for i := 0; i < cap(errs); i++ {
				Eventually(errs).Should(Receive(BeNil()))
			}
		})

		It("panics if the mutex is not write-locked", func() {
			Expect(func() {
				mutex.Unlock()
			}).To(Panic())
		})
	})

	Describe("func RLock()", func() {
		It("does not block while read-locked", func() {
			Expect(mutex.RLock(ctx)).To(Succeed())
			Expect(mutex.RLock(ctx)).To(Succeed())
		})

		It("blocks while write-locked", func() {
			Expect(mutex.Lock(ctx)).To(Succeed())
			Expect(mutex.RLock(ctx)).To(Equal(context.DeadlineExceeded))
		})

		It("returns an error if the context is already canceled", func() {
			cancel()
			Expect(mutex.RLock(ctx)).To(Equal(context.Canceled))
		})
	})

	Describe("func RUnlock()", func() {
		It("unblocks a pending call to Lock() once all read-locks are released", func() {
			Expect(mutex.RLock(ctx)).To(Succeed())
			Expect(mutex.RLock(ctx)).To(Succeed())

			locked := make(chan error, 1)
			go func() {
				locked <- mutex.Lock(ctx)
			}()

			mutex.RUnlock()
			Consistently(locked, 10*time.Millisecond).ShouldNot(Receive())

			mutex.RUnlock()
			Eventually(locked).Should(Receive(BeNil()))
		})

		It("panics if the mutex is not read-locked", func() {
			Expect(func() {
				mutex.RUnlock()
			}).To(Panic())
		})
	})
})
