package persistence

import (
	"fmt"
)

// ConflictError is returned by DataStore.Persist() when an operation's
// expected revision does not match the stored revision of its entity. No
// operations in the batch are applied.
type ConflictError struct {
	// Cause is the conflicting operation.
	Cause Operation
}

func (e ConflictError) Error() string {
	return fmt.Sprintf(
		"%T on %s conflicts with its stored revision",
		e.Cause,
		e.Cause.entityKey(),
	)
}

// NotFoundError is returned by DataStore.Persist() when an operation modifies
// an entity that does not exist. No operations in the batch are applied.
type NotFoundError struct {
	// Cause is the operation that refers to the missing entity.
	Cause Operation
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf(
		"%T on %s refers to a record that does not exist",
		e.Cause,
		e.Cause.entityKey(),
	)
}
