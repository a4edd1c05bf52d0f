package notification

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrHubClosed is returned when publishing to a closed hub.
var ErrHubClosed = errors.New("notification hub is closed")

// DefaultBufferSize is the default number of events buffered for each
// subscriber.
const DefaultBufferSize = 128

// Hub is an in-process publish/subscribe channel for conversation events.
//
// Every subscriber receives every event published after it subscribed, in the
// order they were published. Publishing blocks while any subscriber's buffer is
// full, so events are never dropped.
type Hub struct {
	// BufferSize is the number of events buffered for each subscriber. If it
	// is non-positive, DefaultBufferSize is used.
	BufferSize int

	publishM sync.Mutex // serializes calls to Publish()

	m      sync.Mutex
	seq    uint64
	nextID int
	subs   map[int]*subscriber
	closed bool
}

type subscriber struct {
	events chan Event
	done   chan struct{} // closed when unsubscribed
}

// Publish notifies all subscribers of an event of type t for the given
// conversation.
//
// It blocks until every subscriber has accepted the event, or ctx is canceled.
func (h *Hub) Publish(ctx context.Context, t EventType, conversationID string) (Event, error) {
	h.publishM.Lock()
	defer h.publishM.Unlock()

	h.m.Lock()

	if h.closed {
		h.m.Unlock()
		return Event{}, ErrHubClosed
	}

	h.seq++
	e := Event{
		Seq:            h.seq,
		Type:           t,
		ConversationID: conversationID,
		PublishedAt:    time.Now(),
	}

	subs := make([]*subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}

	h.m.Unlock()

	for _, s := range subs {
		select {
		case s.events <- e:
		case <-s.done:
		case <-ctx.Done():
			return e, ctx.Err()
		}
	}

	return e, nil
}

// Subscribe returns a channel that receives all events published from now on.
//
// The returned function must be called to unsubscribe. The channel is never
// closed; no further events are delivered after unsubscribing, or after the
// hub is closed.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.m.Lock()
	defer h.m.Unlock()

	n := h.BufferSize
	if n <= 0 {
		n = DefaultBufferSize
	}

	s := &subscriber{
		events: make(chan Event, n),
		done:   make(chan struct{}),
	}

	if h.closed {
		close(s.done)
		return s.events, func() {}
	}

	if h.subs == nil {
		h.subs = map[int]*subscriber{}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = s

	return s.events, func() {
		h.m.Lock()
		defer h.m.Unlock()

		if _, ok := h.subs[id]; ok {
			close(s.done)
			delete(h.subs, id)
		}
	}
}

// Close closes the hub, unsubscribing all subscribers.
func (h *Hub) Close() error {
	h.m.Lock()
	defer h.m.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	h.closed = true

	for id, s := range h.subs {
		close(s.done)
		delete(h.subs, id)
	}

	return nil
}
