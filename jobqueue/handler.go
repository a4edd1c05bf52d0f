package jobqueue

import (
	"context"

	"github.com/dogmatiq/courier/persistence"
)

// Handler performs the work described by a delivery job.
type Handler interface {
	// HandleJob makes a single attempt at delivering j.
	//
	// Errors marked with transport.Fatal(), and conversation resolution
	// errors, are never retried.
	HandleJob(ctx context.Context, j persistence.Job) error
}

// Observer is notified when delivery jobs fail terminally.
type Observer interface {
	// JobFailed is called after j has been removed from the queue and its
	// message marked as failed. err is the error from the final attempt.
	JobFailed(j persistence.Job, err error)
}
