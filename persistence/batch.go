package persistence

import (
	"context"
	"fmt"
)

// Batch is a set of operations that are committed to the data store atomically
// using a Persister.
type Batch []Operation

// MustValidate panics if the batch contains any operations that operate on the
// same entity.
func (b Batch) MustValidate() {
	for i, x := range b {
		xk := x.entityKey()

		for _, y := range b[i+1:] {
			yk := y.entityKey()

			if xk == yk {
				panic(fmt.Sprintf(
					"batch contains multiple operations for the same entity (%s)",
					xk,
				))
			}
		}
	}
}

// AcceptVisitor visits each operation in the batch.
func (b Batch) AcceptVisitor(ctx context.Context, v OperationVisitor) error {
	for _, op := range b {
		if err := op.AcceptVisitor(ctx, v); err != nil {
			return err
		}
	}

	return nil
}

// A Persister is an interface for committing batches of atomic operations to
// the data store.
type Persister interface {
	// Persist commits a batch of operations atomically.
	//
	// If any one of the operations causes an optimistic concurrency conflict
	// the entire batch is aborted and a ConflictError is returned.
	Persist(context.Context, Batch) error
}

// Unit is a batch of operations paired with actions that are performed only
// after the batch has been committed successfully.
//
// It is not safe for concurrent use.
type Unit struct {
	batch Batch
	after []func()
}

// Add adds operations to the unit's batch.
func (u *Unit) Add(ops ...Operation) {
	u.batch = append(u.batch, ops...)
}

// AfterCommit registers fn to be called once the batch has been committed.
//
// Functions are called in the order they are registered. They are never called
// if the commit fails.
func (u *Unit) AfterCommit(fn func()) {
	u.after = append(u.after, fn)
}

// Batch returns the operations in the unit.
func (u *Unit) Batch() Batch {
	return u.batch
}

// Commit persists the unit's batch then invokes its post-commit actions.
func (u *Unit) Commit(ctx context.Context, p Persister) error {
	if len(u.batch) > 0 {
		if err := p.Persist(ctx, u.batch); err != nil {
			return err
		}
	}

	after := u.after
	u.batch = nil
	u.after = nil

	for _, fn := range after {
		fn()
	}

	return nil
}
