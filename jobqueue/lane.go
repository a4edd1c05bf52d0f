package jobqueue

import (
	"context"
	"sort"
	"time"

	"github.com/dogmatiq/courier/persistence"
)

// lane is the FIFO sequence of jobs for a single destination.
//
// Only the job at the head of the lane is ever attempted. Lanes are ordered on
// the ready queue by the due time of their head job.
type lane struct {
	key  string
	jobs []persistence.Job

	// busy is true while the head job is being attempted. A busy lane is
	// never on the ready queue.
	busy bool

	// flight is the attempt in progress. It is non-nil only while busy.
	flight *flight
}

// flight is an attempt at the head job of a lane.
type flight struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	// done is closed once the outcome of the attempt has been recorded and the
	// lane released.
	done chan struct{}
}

func (l *lane) Less(v *lane) bool {
	a := l.jobs[0]
	b := v.jobs[0]

	if !a.NextAttemptAt.Equal(b.NextAttemptAt) {
		return a.NextAttemptAt.Before(b.NextAttemptAt)
	}

	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}

	return l.key < v.key
}

// head returns the job at the front of the lane.
func (l *lane) head() persistence.Job {
	return l.jobs[0]
}

// due returns the time until the head job is due.
func (l *lane) due(now time.Time) time.Duration {
	return l.head().NextAttemptAt.Sub(now)
}

// insert adds j to the lane, ordered by creation time.
//
// If the lane is busy the job is never placed ahead of the head job.
func (l *lane) insert(j persistence.Job) {
	min := 0
	if l.busy {
		min = 1
	}

	i := min + sort.Search(
		len(l.jobs)-min,
		func(i int) bool {
			x := l.jobs[min+i]

			if !x.CreatedAt.Equal(j.CreatedAt) {
				return j.CreatedAt.Before(x.CreatedAt)
			}

			return j.ID < x.ID
		},
	)

	l.jobs = append(l.jobs, persistence.Job{})
	copy(l.jobs[i+1:], l.jobs[i:])
	l.jobs[i] = j
}

// matching returns the jobs in the lane that belong to the given conversation,
// excluding the head job of a busy lane.
func (l *lane) matching(conversationID string) []persistence.Job {
	var jobs []persistence.Job

	for i, j := range l.jobs {
		if i == 0 && l.busy {
			continue
		}

		if j.Message.ConversationID == conversationID {
			jobs = append(jobs, j)
		}
	}

	return jobs
}
