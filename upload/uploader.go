package upload

import (
	"context"
	"fmt"

	"github.com/dogmatiq/courier/internal/metrics"
	"github.com/dogmatiq/courier/internal/mlog"
	"github.com/dogmatiq/courier/internal/x/syncx"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"github.com/dogmatiq/courier/retry"
	"github.com/dogmatiq/courier/transport"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger/backoff"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Uploader uploads attachments to file servers, retrying failed attempts.
type Uploader struct {
	// DataStore is the data-store that attachments are loaded from, and in
	// which their upload state is recorded.
	DataStore interface {
		persistence.AttachmentRepository
		persistence.Persister
	}

	// FileServer is the server that attachment data is uploaded to.
	FileServer FileServer

	// BackoffStrategy is the strategy used to compute the delay between
	// attempts. If it is nil, retry.DefaultBackoff is used.
	BackoffStrategy backoff.Strategy

	// Limiter, if non-nil, paces upload attempts across all attachments.
	Limiter *rate.Limiter

	// Metrics is the set of collectors used to record upload attempts.
	Metrics *metrics.Metrics

	// Logger is the target for log messages about uploads.
	// If it is nil, logging.DefaultLogger is used.
	Logger logging.Logger

	locks syncx.MutexNamespace
}

// Upload uploads the attachment with the given ID to s.
//
// If the attachment has already been uploaded its existing reference is
// returned without contacting the server. Otherwise the upload is attempted
// up to the ceiling given by PolicyFor(s). If every attempt fails an
// UploadFailedError is returned.
//
// If ctx is canceled, any remaining attempts are abandoned and the returned
// error wraps ctx.Err().
func (u *Uploader) Upload(
	ctx context.Context,
	id string,
	s message.Server,
) (message.Reference, error) {
	unlock, err := u.locks.Lock(ctx, id)
	if err != nil {
		return "", fmt.Errorf("upload of attachment '%s' abandoned: %w", id, err)
	}
	defer unlock()

	a, ok, err := u.DataStore.LoadAttachment(ctx, id)
	if err != nil {
		return "", err
	}

	if !ok {
		return "", fmt.Errorf("attachment '%s' does not exist", id)
	}

	if a.IsUploaded() {
		return a.Reference, nil
	}

	var ref message.Reference

	p := PolicyFor(s)
	if u.BackoffStrategy != nil {
		p.Backoff = u.BackoffStrategy
	}

	n, err := retry.Do(
		ctx,
		p,
		func(ctx context.Context, attempt uint) error {
			if u.Limiter != nil {
				if err := u.Limiter.Wait(ctx); err != nil {
					return err
				}
			}

			var err error
			ref, err = u.FileServer.Upload(ctx, a.Data, a.ID, s)

			u.Metrics.UploadAttempted(s.IsOpenGroup)
			mlog.LogUpload(u.Logger, a.ID, s, attempt, err)

			if transport.IsFatal(err) {
				return retry.Permanent(err)
			}

			return err
		},
	)

	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("upload of attachment '%s' abandoned: %w", id, ctx.Err())
		}

		u.Metrics.UploadFailed(s.IsOpenGroup)

		return "", UploadFailedError{
			AttachmentID: id,
			Attempts:     n,
			Cause:        err,
		}
	}

	if err := u.DataStore.Persist(
		ctx,
		persistence.Batch{
			persistence.MarkAttachmentUploaded{
				AttachmentID: id,
				Server:       s.URL,
				Reference:    ref,
			},
		},
	); err != nil {
		return "", err
	}

	return ref, nil
}

// UploadAll uploads each of the given attachments to s concurrently.
//
// It waits for every upload to finish, successfully or otherwise, before
// returning. If any upload failed, the error from the first failing
// attachment, in the order given by ids, is returned.
func (u *Uploader) UploadAll(
	ctx context.Context,
	ids []string,
	s message.Server,
) error {
	var g errgroup.Group
	results := make([]error, len(ids))

	for i, id := range ids {
		i, id := i, id // capture loop variables

		g.Go(func() error {
			_, results[i] = u.Upload(ctx, id, s)
			return nil
		})
	}

	g.Wait() // uploads never fail the group

	for _, err := range results {
		if err != nil {
			return err
		}
	}

	return nil
}
