package memorypersistence

import (
	"context"

	"github.com/dogmatiq/courier/persistence"
)

// LoadPollCursor returns the ID of the last server message seen by the poller
// for the given conversation.
func (ds *dataStore) LoadPollCursor(
	_ context.Context,
	id string,
) (uint64, error) {
	if err := ds.checkOpen(); err != nil {
		return 0, err
	}

	ds.db.RLock()
	defer ds.db.RUnlock()

	return ds.db.pollCursor.cursors[id], nil
}

// VisitSavePollCursor returns an error if a "SavePollCursor" operation can not
// be applied to the database.
func (v *validator) VisitSavePollCursor(
	context.Context,
	persistence.SavePollCursor,
) error {
	return nil
}

// VisitSavePollCursor applies the changes in a "SavePollCursor" operation to
// the database.
func (c *committer) VisitSavePollCursor(
	_ context.Context,
	op persistence.SavePollCursor,
) error {
	if c.db.pollCursor.cursors == nil {
		c.db.pollCursor.cursors = map[string]uint64{}
	}

	c.db.pollCursor.cursors[op.ConversationID] = op.LastMessageID

	return nil
}

// pollCursorDatabase contains open-group poll cursor related data.
type pollCursorDatabase struct {
	cursors map[string]uint64
}
