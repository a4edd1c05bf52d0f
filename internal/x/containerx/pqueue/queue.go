package pqueue

import "container/heap"

// Elem is the constraint for elements of a Queue.
type Elem[E any] interface {
	comparable

	// Less returns true if this element belongs closer to the front of the
	// queue than e.
	Less(e E) bool
}

// Queue is a priority queue that supports re-prioritizing and removing
// arbitrary elements.
//
// The zero-value is an empty queue.
type Queue[E Elem[E]] struct {
	h elems[E]
}

// Len returns the number of elements on the queue.
func (q *Queue[E]) Len() int {
	return len(q.h.elems)
}

// Push adds e to the queue.
//
// It returns true if e is now at the front of the queue.
func (q *Queue[E]) Push(e E) bool {
	if q.h.index == nil {
		q.h.index = map[E]int{}
	}

	heap.Push(&q.h, e)

	return q.h.index[e] == 0
}

// Peek returns the element at the front of the queue without removing it.
//
// ok is false if the queue is empty.
func (q *Queue[E]) Peek() (e E, ok bool) {
	if len(q.h.elems) == 0 {
		return e, false
	}

	return q.h.elems[0], true
}

// Pop removes the element at the front of the queue and returns it.
//
// ok is false if the queue is empty.
func (q *Queue[E]) Pop() (e E, ok bool) {
	if len(q.h.elems) == 0 {
		return e, false
	}

	return heap.Pop(&q.h).(E), true
}

// Remove removes e from the queue. It returns false if e is not queued.
func (q *Queue[E]) Remove(e E) bool {
	i, ok := q.h.index[e]
	if ok {
		heap.Remove(&q.h, i)
	}

	return ok
}

// Update restores the ordering of the queue after the priority of e changes.
// It returns false if e is not queued.
func (q *Queue[E]) Update(e E) bool {
	i, ok := q.h.index[e]
	if ok {
		heap.Fix(&q.h, i)
	}

	return ok
}

// elems implements heap.Interface, tracking the position of each element.
type elems[E Elem[E]] struct {
	elems []E
	index map[E]int
}

func (h *elems[E]) Len() int           { return len(h.elems) }
func (h *elems[E]) Less(i, j int) bool { return h.elems[i].Less(h.elems[j]) }

func (h *elems[E]) Swap(i, j int) {
	h.elems[i], h.elems[j] = h.elems[j], h.elems[i]
	h.index[h.elems[i]] = i
	h.index[h.elems[j]] = j
}

func (h *elems[E]) Push(v any) {
	e := v.(E)
	h.index[e] = len(h.elems)
	h.elems = append(h.elems, e)
}

func (h *elems[E]) Pop() any {
	n := len(h.elems) - 1
	e := h.elems[n]

	var zero E
	h.elems[n] = zero
	h.elems = h.elems[:n]
	delete(h.index, e)

	return e
}
