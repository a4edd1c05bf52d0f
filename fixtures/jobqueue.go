package fixtures

import (
	"context"
	"sync"

	"github.com/dogmatiq/courier/jobqueue"
	"github.com/dogmatiq/courier/persistence"
)

// JobHandlerStub is a test implementation of the jobqueue.Handler interface.
type JobHandlerStub struct {
	jobqueue.Handler

	HandleJobFunc func(context.Context, persistence.Job) error
}

// HandleJob attempts a delivery job.
func (h *JobHandlerStub) HandleJob(ctx context.Context, j persistence.Job) error {
	if h.HandleJobFunc != nil {
		return h.HandleJobFunc(ctx, j)
	}

	if h.Handler != nil {
		return h.Handler.HandleJob(ctx, j)
	}

	return nil
}

// ObserverStub is a test implementation of the jobqueue.Observer interface.
//
// It records every terminal failure it is notified of.
type ObserverStub struct {
	jobqueue.Observer

	JobFailedFunc func(persistence.Job, error)

	m      sync.Mutex
	failed []FailedJob
}

// FailedJob is a terminal failure recorded by an ObserverStub.
type FailedJob struct {
	Job   persistence.Job
	Cause error
}

// JobFailed is called when a job fails terminally.
func (o *ObserverStub) JobFailed(j persistence.Job, err error) {
	o.m.Lock()
	o.failed = append(o.failed, FailedJob{j, err})
	o.m.Unlock()

	if o.JobFailedFunc != nil {
		o.JobFailedFunc(j, err)
	} else if o.Observer != nil {
		o.Observer.JobFailed(j, err)
	}
}

// Failed returns the terminal failures observed so far, in order.
func (o *ObserverStub) Failed() []FailedJob {
	o.m.Lock()
	defer o.m.Unlock()

	return append([]FailedJob(nil), o.failed...)
}
