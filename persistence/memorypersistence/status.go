package memorypersistence

import (
	"context"

	"github.com/dogmatiq/courier/persistence"
)

// LoadMessageStatus loads the status of the message with the given ID.
func (ds *dataStore) LoadMessageStatus(
	_ context.Context,
	id string,
) (persistence.MessageStatus, bool, error) {
	if err := ds.checkOpen(); err != nil {
		return persistence.MessageStatus{}, false, err
	}

	ds.db.RLock()
	defer ds.db.RUnlock()

	s, ok := ds.db.messageStatus.statuses[id]
	return s, ok, nil
}

// VisitSaveMessageStatus returns an error if a "SaveMessageStatus" operation
// can not be applied to the database.
func (v *validator) VisitSaveMessageStatus(
	context.Context,
	persistence.SaveMessageStatus,
) error {
	return nil
}

// VisitSaveMessageStatus applies the changes in a "SaveMessageStatus"
// operation to the database.
func (c *committer) VisitSaveMessageStatus(
	_ context.Context,
	op persistence.SaveMessageStatus,
) error {
	if c.db.messageStatus.statuses == nil {
		c.db.messageStatus.statuses = map[string]persistence.MessageStatus{}
	}

	c.db.messageStatus.statuses[op.Status.MessageID] = op.Status

	return nil
}

// messageStatusDatabase contains message status related data.
type messageStatusDatabase struct {
	statuses map[string]persistence.MessageStatus
}
