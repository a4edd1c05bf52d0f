package upload

import (
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/retry"
)

const (
	// FileServerAttempts is the maximum number of attempts made to upload an
	// attachment to a general-purpose file server.
	FileServerAttempts uint = 8

	// OpenGroupAttempts is the maximum number of attempts made to upload an
	// attachment to an open-group server.
	OpenGroupAttempts uint = 24
)

// PolicyFor returns the retry policy to use when uploading to s.
func PolicyFor(s message.Server) retry.Policy {
	p := retry.Policy{
		MaxAttempts: FileServerAttempts,
		Backoff:     retry.DefaultBackoff,
	}

	if s.IsOpenGroup {
		p.MaxAttempts = OpenGroupAttempts
	}

	return p
}
