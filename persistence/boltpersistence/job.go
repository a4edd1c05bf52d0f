package boltpersistence

import (
	"context"

	"github.com/dogmatiq/courier/internal/x/bboltx"
	"github.com/dogmatiq/courier/persistence"
	"go.etcd.io/bbolt"
)

// jobBucketKey is the key for the bucket that contains delivery jobs.
//
// The keys are job IDs. The values are persistence.Job values encoded as CBOR.
var jobBucketKey = []byte("jobs")

// LoadJobs loads all persisted jobs.
//
// Jobs are ordered by their creation time, then by ID.
func (ds *dataStore) LoadJobs(context.Context) ([]persistence.Job, error) {
	var result []persistence.Job

	err := ds.view(func(root *bbolt.Bucket) {
		jobs, ok := bboltx.TryBucket(root, jobBucketKey)
		if !ok {
			return
		}

		bboltx.Must(jobs.ForEach(func(_, v []byte) error {
			var j persistence.Job
			unmarshal(v, &j)
			result = append(result, j)
			return nil
		}))
	})

	persistence.SortJobs(result)

	return result, err
}

// VisitSaveJob applies the changes in a "SaveJob" operation to the database.
func (c *committer) VisitSaveJob(
	_ context.Context,
	op persistence.SaveJob,
) error {
	old, _ := loadJob(c.root, op.Job.ID)

	if op.Job.Revision != old.Revision {
		return persistence.ConflictError{
			Cause: op,
		}
	}

	j := op.Job
	j.Revision++

	bboltx.PutPath(
		c.root,
		marshal(j),
		jobBucketKey,
		[]byte(j.ID),
	)

	return nil
}

// VisitRemoveJob applies the changes in a "RemoveJob" operation to the
// database.
func (c *committer) VisitRemoveJob(
	_ context.Context,
	op persistence.RemoveJob,
) error {
	old, ok := loadJob(c.root, op.Job.ID)

	if !ok || op.Job.Revision != old.Revision {
		return persistence.ConflictError{
			Cause: op,
		}
	}

	bboltx.DeletePath(
		c.root,
		jobBucketKey,
		[]byte(op.Job.ID),
	)

	return nil
}

// loadJob loads the job with the given ID.
func loadJob(root *bbolt.Bucket, id string) (persistence.Job, bool) {
	data := bboltx.GetPath(root, jobBucketKey, []byte(id))
	if data == nil {
		return persistence.Job{}, false
	}

	var j persistence.Job
	unmarshal(data, &j)

	return j, true
}
