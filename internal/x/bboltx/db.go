package bboltx

import (
	"context"
	"os"

	"github.com/dogmatiq/linger"
	"go.etcd.io/bbolt"
)

// Open opens (or creates) the database at the given path.
//
// If mode is zero, 0600 is used. BoltDB waits for a file lock held by another
// process for up to opts.Timeout; that timeout is capped at the deadline of
// ctx, in which case context.DeadlineExceeded is returned when it elapses.
func Open(
	ctx context.Context,
	path string,
	mode os.FileMode,
	opts *bbolt.Options,
) (*bbolt.DB, error) {
	// A non-positive timeout means "wait forever" to BoltDB, so an expired
	// context must be checked explicitly.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if mode == 0 {
		mode = 0600
	}

	opts = withDeadline(ctx, opts)

	db, err := bbolt.Open(path, mode, opts)
	if err == bbolt.ErrTimeout {
		return nil, context.DeadlineExceeded
	}

	return db, err
}

// withDeadline returns a copy of opts with its timeout capped at the time
// remaining until the deadline of ctx, if it has one.
func withDeadline(ctx context.Context, opts *bbolt.Options) *bbolt.Options {
	d, ok := linger.FromContextDeadline(ctx)
	if !ok {
		return opts
	}

	if opts == nil {
		opts = bbolt.DefaultOptions
	} else if opts.Timeout != 0 && opts.Timeout < d {
		return opts
	}

	clone := *opts
	clone.Timeout = d

	return &clone
}
