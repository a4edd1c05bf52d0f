package memorypersistence

import (
	"context"

	"github.com/dogmatiq/courier/persistence"
)

// LoadJobs loads all persisted jobs.
//
// Jobs are ordered by their creation time, then by ID.
func (ds *dataStore) LoadJobs(context.Context) ([]persistence.Job, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	ds.db.RLock()
	defer ds.db.RUnlock()

	result := make([]persistence.Job, 0, len(ds.db.job.jobs))
	for _, j := range ds.db.job.jobs {
		result = append(result, cloneJob(j))
	}

	persistence.SortJobs(result)

	return result, nil
}

// VisitSaveJob returns an error if a "SaveJob" operation can not be applied to
// the database.
func (v *validator) VisitSaveJob(
	_ context.Context,
	op persistence.SaveJob,
) error {
	if op.Job.Revision == v.db.job.jobs[op.Job.ID].Revision {
		return nil
	}

	return persistence.ConflictError{
		Cause: op,
	}
}

// VisitRemoveJob returns an error if a "RemoveJob" operation can not be
// applied to the database.
func (v *validator) VisitRemoveJob(
	_ context.Context,
	op persistence.RemoveJob,
) error {
	if j, ok := v.db.job.jobs[op.Job.ID]; ok && op.Job.Revision == j.Revision {
		return nil
	}

	return persistence.ConflictError{
		Cause: op,
	}
}

// VisitSaveJob applies the changes in a "SaveJob" operation to the database.
func (c *committer) VisitSaveJob(
	_ context.Context,
	op persistence.SaveJob,
) error {
	j := cloneJob(op.Job)
	j.Revision++

	if c.db.job.jobs == nil {
		c.db.job.jobs = map[string]persistence.Job{}
	}

	c.db.job.jobs[j.ID] = j

	return nil
}

// VisitRemoveJob applies the changes in a "RemoveJob" operation to the
// database.
func (c *committer) VisitRemoveJob(
	_ context.Context,
	op persistence.RemoveJob,
) error {
	delete(c.db.job.jobs, op.Job.ID)
	return nil
}

// jobDatabase contains delivery job related data.
type jobDatabase struct {
	jobs map[string]persistence.Job
}

// cloneJob returns a deep copy of j.
func cloneJob(j persistence.Job) persistence.Job {
	j.Message.AttachmentIDs = append([]string(nil), j.Message.AttachmentIDs...)
	j.Message.Payload = append([]byte(nil), j.Message.Payload...)
	j.Destination.Members = append([]string(nil), j.Destination.Members...)
	return j
}
