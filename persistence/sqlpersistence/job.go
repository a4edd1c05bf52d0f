package sqlpersistence

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/courier/internal/x/sqlx"
	"github.com/dogmatiq/courier/persistence"
)

// LoadJobs loads all persisted jobs.
//
// Jobs are ordered by their creation time, then by ID.
func (ds *dataStore) LoadJobs(ctx context.Context) ([]persistence.Job, error) {
	var result []persistence.Job

	err := ds.query(func(db *sql.DB) {
		rows := sqlx.Query(
			ctx,
			db,
			`SELECT
				revision,
				data
			FROM delivery_job
			WHERE account_key = $1`,
			ds.accountKey,
		)
		defer rows.Close()

		for rows.Next() {
			var (
				rev  uint64
				data []byte
				j    persistence.Job
			)

			sqlx.Must(rows.Scan(&rev, &data))
			unmarshal(data, &j)
			j.Revision = rev

			result = append(result, j)
		}

		sqlx.Must(rows.Err())
	})

	// Ordering is performed in Go rather than by the query so that ties are
	// broken identically by all providers.
	persistence.SortJobs(result)

	return result, err
}

// VisitSaveJob applies the changes in a "SaveJob" operation to the database.
func (c *committer) VisitSaveJob(
	ctx context.Context,
	op persistence.SaveJob,
) error {
	j := op.Job
	j.Revision++

	if op.Job.Revision == 0 {
		if sqlx.TryExecRow(
			ctx,
			c.tx,
			`INSERT INTO delivery_job (
				account_key,
				id,
				revision,
				created_at,
				data
			) VALUES (
				$1, $2, $3, $4, $5
			) ON CONFLICT (account_key, id) DO NOTHING`,
			c.accountKey,
			j.ID,
			j.Revision,
			j.CreatedAt.UnixNano(),
			marshal(j),
		) {
			return nil
		}
	} else if sqlx.TryExecRow(
		ctx,
		c.tx,
		`UPDATE delivery_job SET
			revision = revision + 1,
			data = $1
		WHERE account_key = $2
		AND id = $3
		AND revision = $4`,
		marshal(j),
		c.accountKey,
		j.ID,
		op.Job.Revision,
	) {
		return nil
	}

	return persistence.ConflictError{
		Cause: op,
	}
}

// VisitRemoveJob applies the changes in a "RemoveJob" operation to the
// database.
func (c *committer) VisitRemoveJob(
	ctx context.Context,
	op persistence.RemoveJob,
) error {
	if sqlx.TryExecRow(
		ctx,
		c.tx,
		`DELETE FROM delivery_job
		WHERE account_key = $1
		AND id = $2
		AND revision = $3`,
		c.accountKey,
		op.Job.ID,
		op.Job.Revision,
	) {
		return nil
	}

	return persistence.ConflictError{
		Cause: op,
	}
}
