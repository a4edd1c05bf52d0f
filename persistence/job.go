package persistence

import (
	"context"
	"sort"
	"time"

	"github.com/dogmatiq/courier/message"
)

// Job is a persisted request to deliver a message to a destination.
type Job struct {
	// ID is the unique identifier of the job.
	ID string

	// Revision is the job's current revision. It is zero if the job has not
	// been persisted.
	Revision uint64

	// Message is the message to deliver.
	Message message.Message

	// Destination is where the message is delivered to. It is resolved when
	// the job is created.
	Destination message.Destination

	// FailureCount is the number of delivery attempts that have failed.
	FailureCount uint

	// NextAttemptAt is the time at which the next delivery attempt is due.
	NextAttemptAt time.Time

	// CreatedAt is the time at which the job was created. Jobs for the same
	// destination are attempted in order of creation.
	CreatedAt time.Time

	// LastError is a description of the most recent failure, if any.
	LastError string
}

// JobRepository is an interface for reading persisted delivery jobs.
type JobRepository interface {
	// LoadJobs loads all persisted jobs.
	//
	// Jobs are ordered by their creation time, then by ID.
	LoadJobs(ctx context.Context) ([]Job, error)
}

// SaveJob is a persistence operation that creates or updates a delivery job.
type SaveJob struct {
	// Job is the job to persist.
	//
	// Job.Revision must be the revision of the job as currently persisted,
	// otherwise an optimistic concurrency conflict occurs and the entire batch
	// of operations is rejected.
	Job Job
}

// AcceptVisitor calls v.VisitSaveJob().
func (op SaveJob) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitSaveJob(ctx, op)
}

func (op SaveJob) entityKey() entityKey {
	return entityKey{"job", op.Job.ID}
}

// RemoveJob is a persistence operation that removes a delivery job.
type RemoveJob struct {
	// Job is the job to remove.
	//
	// Job.Revision must be the revision of the job as currently persisted,
	// otherwise an optimistic concurrency conflict occurs and the entire batch
	// of operations is rejected.
	Job Job
}

// AcceptVisitor calls v.VisitRemoveJob().
func (op RemoveJob) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	return v.VisitRemoveJob(ctx, op)
}

func (op RemoveJob) entityKey() entityKey {
	return entityKey{"job", op.Job.ID}
}

// SortJobs sorts jobs by their creation time, then by ID.
func SortJobs(jobs []Job) {
	sort.Slice(jobs, func(i, j int) bool {
		a, b := jobs[i], jobs[j]

		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}

		return a.ID < b.ID
	})
}
