package transport

import (
	"context"

	"github.com/dogmatiq/courier/message"
)

// Transport is the network primitive used to deliver a message to a
// destination.
//
// Implementations should classify their errors using Retryable() or Fatal().
// Unclassified errors are treated as retryable.
type Transport interface {
	// Send delivers m to d.
	Send(ctx context.Context, m message.Message, d message.Destination) error
}

// Func is an adaptor that allows an ordinary function to be used as a
// Transport.
type Func func(ctx context.Context, m message.Message, d message.Destination) error

// Send calls fn(ctx, m, d).
func (fn Func) Send(ctx context.Context, m message.Message, d message.Destination) error {
	return fn(ctx, m, d)
}
