package dispatch

import (
	"fmt"

	"github.com/dogmatiq/courier/message"
)

// TransportFailedError is returned when the transport rejects a message.
type TransportFailedError struct {
	MessageID   string
	Destination message.Destination
	Cause       error
}

func (e TransportFailedError) Error() string {
	return fmt.Sprintf(
		"unable to send message '%s' to %s: %s",
		e.MessageID,
		e.Destination,
		e.Cause,
	)
}

func (e TransportFailedError) Unwrap() error {
	return e.Cause
}

// JobCreationFailedError is returned by a durable send when the delivery job
// could not be persisted.
type JobCreationFailedError struct {
	MessageID string
	Cause     error
}

func (e JobCreationFailedError) Error() string {
	return fmt.Sprintf(
		"unable to create a delivery job for message '%s': %s",
		e.MessageID,
		e.Cause,
	)
}

func (e JobCreationFailedError) Unwrap() error {
	return e.Cause
}
