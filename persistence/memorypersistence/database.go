package memorypersistence

import (
	"sync"
	"sync/atomic"
)

// database encapsulates a single account's data.
type database struct {
	sync.RWMutex

	open          uint32 // atomic
	job           jobDatabase
	attachment    attachmentDatabase
	conversation  conversationDatabase
	messageStatus messageStatusDatabase
	pollCursor    pollCursorDatabase
}

// newDatabase returns a new empty database.
func newDatabase() *database {
	return &database{}
}

// TryOpen attempts to open the database. If the database is already open it
// returns false.
//
// This is used to enforce the requirement that persistence providers only allow
// a single open data-store for each account.
func (db *database) TryOpen() bool {
	return atomic.CompareAndSwapUint32(&db.open, 0, 1)
}

// Close closes an open database.
//
// This allows a new data-store for this account to be opened via the provider.
func (db *database) Close() {
	atomic.CompareAndSwapUint32(&db.open, 1, 0)
}
