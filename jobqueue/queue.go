package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/dogmatiq/courier/internal/metrics"
	"github.com/dogmatiq/courier/internal/mlog"
	"github.com/dogmatiq/courier/internal/x/containerx/pqueue"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/semaphore"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxAttempts is the default maximum number of attempts made at a
// single delivery job.
const DefaultMaxAttempts uint = 10

// DefaultBackoff is the default strategy used to delay a job after a failed
// attempt.
var DefaultBackoff backoff.Strategy = backoff.WithTransforms(
	backoff.Exponential(1*time.Second),
	linger.FullJitter,
	linger.Limiter(0, 1*time.Hour),
)

// Queue is a durable queue of delivery jobs.
//
// Jobs for the same destination are attempted one at a time, in the order they
// were created. Jobs for different destinations are attempted concurrently.
type Queue struct {
	// DataStore is the data-store in which the jobs are persisted.
	//
	// It is expected that no jobs are saved to this data-store other than via
	// this queue, or by callers that subsequently call Enqueue().
	DataStore interface {
		persistence.Persister
		persistence.JobRepository
	}

	// Handler performs each attempt at a job.
	Handler Handler

	// Observer, if non-nil, is notified of terminal failures.
	Observer Observer

	// Semaphore limits the number of attempts in progress at once.
	Semaphore semaphore.Semaphore

	// MaxAttempts is the maximum number of attempts made at each job. If it is
	// zero, DefaultMaxAttempts is used.
	MaxAttempts uint

	// BackoffStrategy is the strategy used to delay a job after a failed
	// attempt. If it is nil, DefaultBackoff is used.
	BackoffStrategy backoff.Strategy

	// Metrics is the set of collectors used to record job outcomes.
	Metrics *metrics.Metrics

	// Logger is the target for log messages from the queue.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	m      sync.Mutex
	loaded bool                // true once the persisted jobs are buffered
	jobs   map[string]struct{} // IDs of all buffered jobs
	lanes  map[string]*lane    // key == destination key
	ready  pqueue.Queue[*lane] // idle, non-empty lanes
	wake   chan struct{}
}

// Add persists a new job and adds it to the queue.
//
// j.Revision must be zero. The status of the job's message is recorded as
// persistence.Sending.
func (q *Queue) Add(ctx context.Context, j persistence.Job) error {
	if err := q.DataStore.Persist(
		ctx,
		persistence.Batch{
			persistence.SaveJob{
				Job: j,
			},
			persistence.SaveMessageStatus{
				Status: persistence.MessageStatus{
					MessageID:      j.Message.ID,
					ConversationID: j.Message.ConversationID,
					State:          persistence.Sending,
					UpdatedAt:      time.Now(),
				},
			},
		},
	); err != nil {
		return err
	}

	j.Revision++
	q.Enqueue(j)

	return nil
}

// Enqueue adds jobs that have already been persisted to the queue.
//
// Jobs that are already buffered in memory are ignored.
func (q *Queue) Enqueue(jobs ...persistence.Job) {
	q.m.Lock()
	defer q.m.Unlock()

	n := 0
	for _, j := range jobs {
		if q.push(j) {
			mlog.LogEnqueue(q.Logger, j)
			q.Metrics.JobEnqueued()
			n++
		}
	}

	if n > 0 {
		q.notify()
	}
}

// Len returns the number of jobs buffered in memory, including those that are
// currently being attempted.
func (q *Queue) Len() int {
	q.m.Lock()
	defer q.m.Unlock()

	return len(q.jobs)
}

// Run attempts jobs until ctx is canceled or an error occurs.
//
// It first loads all persisted jobs from the data-store, such that work
// interrupted by a restart is resumed.
func (q *Queue) Run(ctx context.Context) error {
	n, err := q.load(ctx)
	if err != nil {
		return err
	}

	logging.Log(
		q.Logger,
		"resumed %d persisted delivery job(s)",
		n,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return q.schedule(ctx, g)
	})

	return g.Wait()
}

// load buffers the persisted jobs. It returns the number of jobs that were not
// already buffered.
func (q *Queue) load(ctx context.Context) (int, error) {
	q.m.Lock()
	defer q.m.Unlock()

	jobs, err := q.DataStore.LoadJobs(ctx)
	if err != nil {
		return 0, err
	}

	persistence.SortJobs(jobs)

	n := 0
	for _, j := range jobs {
		if q.push(j) {
			n++
		}
	}

	q.loaded = true

	return n, nil
}

// CancelConversation abandons every job for a message in the conversation with
// the given ID.
//
// Each job is removed and its message is recorded as failed with a
// message.ConversationDeletedError. Attempts that are in progress are canceled,
// and CancelConversation waits for their outcome to be recorded. An attempt
// that delivers its message regardless is recorded as sent.
func (q *Queue) CancelConversation(ctx context.Context, conversationID string) error {
	cause := message.ConversationDeletedError{
		ConversationID: conversationID,
	}

	for {
		jobs, inflight, err := q.cancel(ctx, conversationID, cause)
		if err != nil {
			return err
		}

		for _, j := range jobs {
			q.failed(j, cause)
		}

		if len(inflight) == 0 {
			return nil
		}

		// An attempt may finish before it observes the cancelation, in which
		// case its job is rescheduled and must be removed on the next pass.
		for _, done := range inflight {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-done:
			}
		}
	}
}

// cancel removes the idle jobs for the given conversation and cancels the
// attempts in progress. It returns the removed jobs, and channels that are
// closed when each canceled attempt is complete.
func (q *Queue) cancel(
	ctx context.Context,
	conversationID string,
	cause error,
) ([]persistence.Job, []<-chan struct{}, error) {
	q.m.Lock()
	defer q.m.Unlock()

	q.init()

	var (
		jobs     []persistence.Job
		inflight []<-chan struct{}
	)

	if q.loaded {
		for _, l := range q.lanes {
			jobs = append(jobs, l.matching(conversationID)...)
		}
	} else {
		// Until the queue has been run, the buffered jobs may be a subset of
		// those that are persisted.
		persisted, err := q.DataStore.LoadJobs(ctx)
		if err != nil {
			return nil, nil, err
		}

		for _, j := range persisted {
			if j.Message.ConversationID == conversationID {
				jobs = append(jobs, j)
			}
		}
	}

	if len(jobs) != 0 {
		now := time.Now()

		var b persistence.Batch
		for _, j := range jobs {
			b = append(
				b,
				persistence.RemoveJob{
					Job: j,
				},
				failedStatus(j, cause, now),
			)
		}

		if err := q.DataStore.Persist(ctx, b); err != nil {
			return nil, nil, err
		}
	}

	for _, l := range q.lanes {
		q.discard(l, conversationID)

		if l.busy && l.head().Message.ConversationID == conversationID {
			l.flight.cancel(cause)
			inflight = append(inflight, l.flight.done)
		}
	}

	return jobs, inflight, nil
}

// schedule starts an attempt at the head job of each lane as it becomes due.
func (q *Queue) schedule(ctx context.Context, g *errgroup.Group) error {
	for {
		l, delay, ok := q.next(ctx)

		if l != nil {
			if err := q.Semaphore.Acquire(ctx); err != nil {
				q.release(l)
				return err
			}

			g.Go(func() error {
				defer q.Semaphore.Release()
				q.attempt(ctx, l)
				return nil
			})

			continue
		}

		var (
			timer   *time.Timer
			timeout <-chan time.Time
		)

		if ok {
			timer = time.NewTimer(delay)
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
		case <-q.wake:
		case <-timeout:
		}

		if timer != nil {
			timer.Stop()
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// next returns the lane with the earliest due head job, marking it as busy.
//
// If no lane is due yet, l is nil and delay is the time until the earliest
// lane is due. ok is false if there are no idle lanes at all.
func (q *Queue) next(ctx context.Context) (l *lane, delay time.Duration, ok bool) {
	q.m.Lock()
	defer q.m.Unlock()

	q.init()

	l, ok = q.ready.Peek()
	if !ok {
		return nil, 0, false
	}

	delay = l.due(time.Now())

	if delay > 0 {
		return nil, delay, true
	}

	q.ready.Pop()

	fctx, cancel := context.WithCancelCause(ctx)
	l.busy = true
	l.flight = &flight{fctx, cancel, make(chan struct{})}

	return l, 0, true
}

// release marks l as idle, returning it to the ready queue if it still has
// jobs, or discarding it otherwise.
func (q *Queue) release(l *lane) {
	q.m.Lock()
	defer q.m.Unlock()

	l.busy = false

	if f := l.flight; f != nil {
		l.flight = nil
		f.cancel(nil)
		close(f.done)
	}

	if len(l.jobs) == 0 {
		delete(q.lanes, l.key)
	} else {
		q.ready.Push(l)
	}

	q.notify()
}

// push adds j to the lane for its destination.
//
// It returns false if j is already buffered. q.m must be held.
func (q *Queue) push(j persistence.Job) bool {
	q.init()

	if _, ok := q.jobs[j.ID]; ok {
		return false
	}

	q.jobs[j.ID] = struct{}{}

	k := j.Destination.Key()
	l, ok := q.lanes[k]
	if !ok {
		l = &lane{key: k}
		q.lanes[k] = l
	}

	if l.busy {
		l.insert(j)
	} else if len(l.jobs) == 0 {
		l.insert(j)
		q.ready.Push(l)
	} else {
		l.insert(j)
		q.ready.Update(l)
	}

	return true
}

// discard removes the jobs for the given conversation from l, excluding the
// head job of a busy lane. q.m must be held.
func (q *Queue) discard(l *lane, conversationID string) {
	n := 0
	if l.busy {
		n = 1
	}

	kept := l.jobs[:n]
	for _, j := range l.jobs[n:] {
		if j.Message.ConversationID == conversationID {
			delete(q.jobs, j.ID)
		} else {
			kept = append(kept, j)
		}
	}

	if len(kept) == len(l.jobs) {
		return
	}

	if !l.busy && len(kept) == 0 {
		q.ready.Remove(l)
		delete(q.lanes, l.key)
	}

	for i := len(kept); i < len(l.jobs); i++ {
		l.jobs[i] = persistence.Job{}
	}
	l.jobs = kept

	if !l.busy && len(kept) != 0 {
		q.ready.Update(l)
	}
}

// init initializes the queue's internal state. q.m must be held.
func (q *Queue) init() {
	if q.lanes == nil {
		q.jobs = map[string]struct{}{}
		q.lanes = map[string]*lane{}
		q.wake = make(chan struct{}, 1)
	}
}

// notify wakes the scheduler. q.m must be held.
func (q *Queue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
