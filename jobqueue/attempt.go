package jobqueue

import (
	"context"
	"time"

	"github.com/dogmatiq/courier/internal/mlog"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/transport"
	"github.com/dogmatiq/dodeca/logging"
)

// attempt makes a single attempt at the head job of l, then releases l.
func (q *Queue) attempt(ctx context.Context, l *lane) {
	q.m.Lock()
	j := l.head()
	f := l.flight
	q.m.Unlock()

	mlog.LogAttempt(q.Logger, j)

	err := q.Handler.HandleJob(f.ctx, j)

	if err != nil && ctx.Err() != nil {
		// The queue is stopping. The job remains persisted, and will be
		// attempted again when the queue is next run.
		q.release(l)
		return
	}

	if err == nil {
		q.succeed(ctx, l, j)
	} else if f.ctx.Err() != nil {
		q.abandon(ctx, l, j, context.Cause(f.ctx))
	} else if q.isTerminal(j, err) {
		q.abandon(ctx, l, j, err)
	} else {
		q.retry(ctx, l, j, err)
	}

	q.release(l)
}

// isTerminal returns true if j must not be attempted again after failing with
// err.
func (q *Queue) isTerminal(j persistence.Job, err error) bool {
	max := q.MaxAttempts
	if max == 0 {
		max = DefaultMaxAttempts
	}

	return j.FailureCount+1 >= max || transport.IsFatal(err)
}

// succeed removes j from the queue after it has been delivered.
func (q *Queue) succeed(ctx context.Context, l *lane, j persistence.Job) {
	if err := q.DataStore.Persist(
		ctx,
		persistence.Batch{
			persistence.RemoveJob{
				Job: j,
			},
			persistence.SaveMessageStatus{
				Status: persistence.MessageStatus{
					MessageID:      j.Message.ID,
					ConversationID: j.Message.ConversationID,
					State:          persistence.Sent,
					UpdatedAt:      time.Now(),
				},
			},
		},
	); err != nil {
		// The message has been delivered, but the job remains. It will be
		// delivered again when the job is next attempted.
		q.delay(ctx, l, j, err)
		return
	}

	q.remove(l)

	mlog.LogDelivered(q.Logger, j)
	q.Metrics.JobDelivered()
}

// abandon removes j from the queue after a terminal failure.
func (q *Queue) abandon(ctx context.Context, l *lane, j persistence.Job, cause error) {
	if err := q.DataStore.Persist(
		ctx,
		persistence.Batch{
			persistence.RemoveJob{
				Job: j,
			},
			failedStatus(j, cause, time.Now()),
		},
	); err != nil {
		q.delay(ctx, l, j, err)
		return
	}

	q.remove(l)
	q.failed(j, cause)
}

// failed reports the terminal failure of j, which has already been removed.
func (q *Queue) failed(j persistence.Job, cause error) {
	j.FailureCount++
	j.LastError = cause.Error()

	mlog.LogAbandon(q.Logger, j, cause)
	q.Metrics.JobFailed()

	if q.Observer != nil {
		q.Observer.JobFailed(j, cause)
	}
}

// failedStatus returns an operation that records the message of j as failed.
func failedStatus(j persistence.Job, cause error, now time.Time) persistence.Operation {
	return persistence.SaveMessageStatus{
		Status: persistence.MessageStatus{
			MessageID:      j.Message.ID,
			ConversationID: j.Message.ConversationID,
			State:          persistence.Failed,
			LastError:      cause.Error(),
			UpdatedAt:      now,
		},
	}
}

// retry persists the failure of j and schedules its next attempt.
func (q *Queue) retry(ctx context.Context, l *lane, j persistence.Job, cause error) {
	s := q.BackoffStrategy
	if s == nil {
		s = DefaultBackoff
	}

	d := s(cause, j.FailureCount)

	next := j
	next.FailureCount++
	next.NextAttemptAt = time.Now().Add(d)
	next.LastError = cause.Error()

	if err := q.DataStore.Persist(
		ctx,
		persistence.Batch{
			persistence.SaveJob{
				Job: next,
			},
		},
	); err != nil {
		q.delay(ctx, l, j, err)
		return
	}

	next.Revision++
	q.replace(l, next)

	mlog.LogNack(q.Logger, j, cause, d)
	q.Metrics.JobRetried()
}

// delay postpones the next attempt at j without recording a failure.
//
// It is used when the outcome of an attempt could not be persisted, so that
// the in-memory job continues to match the persisted one.
func (q *Queue) delay(ctx context.Context, l *lane, j persistence.Job, err error) {
	if ctx.Err() != nil {
		return
	}

	s := q.BackoffStrategy
	if s == nil {
		s = DefaultBackoff
	}

	d := s(err, j.FailureCount)

	logging.Log(
		q.Logger,
		"unable to persist the outcome of delivery job %s, next attempt in %s: %s",
		mlog.FormatID(j.ID),
		d,
		err,
	)

	j.NextAttemptAt = time.Now().Add(d)
	q.replace(l, j)
}

// remove discards the head job of l.
func (q *Queue) remove(l *lane) {
	q.m.Lock()
	defer q.m.Unlock()

	delete(q.jobs, l.head().ID)
	l.jobs[0] = persistence.Job{}
	l.jobs = l.jobs[1:]
}

// replace replaces the head job of l with j.
func (q *Queue) replace(l *lane, j persistence.Job) {
	q.m.Lock()
	defer q.m.Unlock()

	l.jobs[0] = j
}
