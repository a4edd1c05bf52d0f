package persistence

import (
	"context"
	"errors"
)

// ErrDataStoreClosed is returned when performing any persistence operation on a
// closed data-store.
var ErrDataStoreClosed = errors.New("data store is closed")

// ErrDataStoreLocked is returned by Provider.Open() if the data-store has
// already been opened.
var ErrDataStoreLocked = errors.New("data store is locked")

// DataStore is an interface used by the engine to persist and retrieve
// data for a specific account.
type DataStore interface {
	Persister

	JobRepository
	AttachmentRepository
	ConversationRepository
	MessageStatusRepository
	PollCursorRepository

	// Close closes the data store.
	//
	// Closing a data-store causes any future calls to Persist() to return
	// ErrDataStoreClosed.
	//
	// The behavior read operations on a closed data-store is
	// implementation-defined.
	//
	// In general use it is expected that all pending calls to Persist() will
	// have finished before a data-store is closed. Close() may block until any
	// in-flight calls to Persist() return, or may prevent any such calls from
	// succeeding.
	Close() error
}

// Provider is an interface used by the engine to obtain data-stores.
type Provider interface {
	// Open returns a data-store for a specific account.
	//
	// k is a key that identifies the account, typically its public key.
	//
	// Data stores are opened for exclusive use. If another engine instance has
	// already opened this account's data-store, ErrDataStoreLocked is
	// returned.
	Open(ctx context.Context, k string) (DataStore, error)
}
