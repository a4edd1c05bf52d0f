package pqueue_test

import (
	. "github.com/dogmatiq/courier/internal/x/containerx/pqueue"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type task struct {
	name string
	due  int
}

func (t *task) Less(v *task) bool {
	return t.due < v.due
}

var _ = Describe("type Queue", func() {
	var (
		early, middle, late *task
		queue               *Queue[*task]
	)

	BeforeEach(func() {
		early = &task{"<early>", 10}
		middle = &task{"<middle>", 20}
		late = &task{"<late>", 30}

		queue = &Queue[*task]{}
	})

	// drain pops every element from the queue, in order.
	drain := func() []*task {
		var tasks []*task
		for {
			t, ok := queue.Pop()
			if !ok {
				return tasks
			}
			tasks = append(tasks, t)
		}
	}

	Describe("func Push()", func() {
		It("reports whether the element is at the front of the queue", func() {
			Expect(queue.Push(middle)).To(BeTrue())
			Expect(queue.Push(late)).To(BeFalse())
			Expect(queue.Push(early)).To(BeTrue())
			Expect(queue.Len()).To(Equal(3))
		})
	})

	Describe("func Peek()", func() {
		It("returns the front element without removing it", func() {
			queue.Push(late)
			queue.Push(early)

			t, ok := queue.Peek()
			Expect(ok).To(BeTrue())
			Expect(t).To(BeIdenticalTo(early))
			Expect(queue.Len()).To(Equal(2))
		})

		It("returns false if the queue is empty", func() {
			_, ok := queue.Peek()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("func Pop()", func() {
		It("returns elements in priority order", func() {
			queue.Push(middle)
			queue.Push(late)
			queue.Push(early)

			Expect(drain()).To(Equal([]*task{early, middle, late}))
			Expect(queue.Len()).To(Equal(0))
		})

		It("returns false if the queue is empty", func() {
			_, ok := queue.Pop()
			Expect(ok).To(BeFalse())
		})
	})

	Describe("func Remove()", func() {
		It("removes the element from the queue", func() {
			queue.Push(late)
			queue.Push(early)
			queue.Push(middle)

			Expect(queue.Remove(middle)).To(BeTrue())
			Expect(drain()).To(Equal([]*task{early, late}))
		})

		It("returns false if the element is not on the queue", func() {
			queue.Push(late)
			Expect(queue.Remove(early)).To(BeFalse())
		})
	})

	Describe("func Update()", func() {
		It("moves the element to match its new priority", func() {
			queue.Push(late)
			queue.Push(early)
			queue.Push(middle)

			late.due = 0
			Expect(queue.Update(late)).To(BeTrue())
			Expect(drain()).To(Equal([]*task{late, early, middle}))
		})

		It("returns false if the element has already been popped", func() {
			queue.Push(early)
			queue.Pop()

			Expect(queue.Update(early)).To(BeFalse())
		})
	})
})
