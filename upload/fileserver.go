package upload

import (
	"context"

	"github.com/dogmatiq/courier/message"
)

// FileServer is an interface for uploading attachment data to a server.
type FileServer interface {
	// Upload uploads data to s and returns the server-issued reference.
	//
	// id is the ID of the attachment being uploaded. Errors marked with
	// transport.Fatal() are not retried.
	Upload(
		ctx context.Context,
		data []byte,
		id string,
		s message.Server,
	) (message.Reference, error)
}
