package fixtures

import (
	"context"
	"sync"

	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/transport"
)

// TransportStub is a test implementation of the transport.Transport
// interface.
//
// It records every message that is sent successfully.
type TransportStub struct {
	transport.Transport

	SendFunc func(context.Context, message.Message, message.Destination) error

	m    sync.Mutex
	sent []SentMessage
}

// SentMessage is a message recorded by a TransportStub.
type SentMessage struct {
	Message     message.Message
	Destination message.Destination
}

// Send delivers m to d.
func (t *TransportStub) Send(ctx context.Context, m message.Message, d message.Destination) error {
	var err error

	if t.SendFunc != nil {
		err = t.SendFunc(ctx, m, d)
	} else if t.Transport != nil {
		err = t.Transport.Send(ctx, m, d)
	}

	if err == nil {
		t.m.Lock()
		t.sent = append(t.sent, SentMessage{m, d})
		t.m.Unlock()
	}

	return err
}

// Sent returns the messages that have been sent successfully, in order.
func (t *TransportStub) Sent() []SentMessage {
	t.m.Lock()
	defer t.m.Unlock()

	return append([]SentMessage(nil), t.sent...)
}
