package boltpersistence

import (
	"context"
	"encoding/binary"

	"github.com/dogmatiq/courier/internal/x/bboltx"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
	"go.etcd.io/bbolt"
)

var (
	// conversationBucketKey is the key for the bucket that contains
	// conversations.
	//
	// The keys are conversation IDs. The values are message.Conversation
	// values encoded as CBOR, without their open-group association.
	conversationBucketKey = []byte("conversations")

	// openGroupBucketKey is the key for the bucket that contains open-group
	// associations.
	//
	// The keys are conversation IDs. The values are message.OpenGroup values
	// encoded as CBOR.
	openGroupBucketKey = []byte("open-groups")

	// statusBucketKey is the key for the bucket that contains message
	// statuses.
	//
	// The keys are message IDs. The values are persistence.MessageStatus
	// values encoded as CBOR.
	statusBucketKey = []byte("statuses")

	// cursorBucketKey is the key for the bucket that contains open-group poll
	// cursors.
	//
	// The keys are conversation IDs. The values are 64-bit big-endian message
	// IDs.
	cursorBucketKey = []byte("cursors")
)

// LoadConversation loads the conversation with the given ID.
func (ds *dataStore) LoadConversation(
	_ context.Context,
	id string,
) (c message.Conversation, ok bool, err error) {
	err = ds.view(func(root *bbolt.Bucket) {
		c, ok = loadConversation(root, id)
	})

	return c, ok, err
}

// LoadOpenGroups loads all conversations that have an open-group association,
// ordered by conversation ID.
func (ds *dataStore) LoadOpenGroups(context.Context) ([]message.Conversation, error) {
	var result []message.Conversation

	err := ds.view(func(root *bbolt.Bucket) {
		groups, ok := bboltx.TryBucket(root, openGroupBucketKey)
		if !ok {
			return
		}

		// Bucket keys are iterated in byte-order, which is the required
		// ordering by conversation ID.
		bboltx.Must(groups.ForEach(func(k, _ []byte) error {
			if c, ok := loadConversation(root, string(k)); ok {
				result = append(result, c)
			}
			return nil
		}))
	})

	return result, err
}

// LoadMessageStatus loads the status of the message with the given ID.
func (ds *dataStore) LoadMessageStatus(
	_ context.Context,
	id string,
) (s persistence.MessageStatus, ok bool, err error) {
	err = ds.view(func(root *bbolt.Bucket) {
		data := bboltx.GetPath(root, statusBucketKey, []byte(id))
		if data != nil {
			unmarshal(data, &s)
			ok = true
		}
	})

	return s, ok, err
}

// LoadPollCursor returns the ID of the last server message seen by the poller
// for the given conversation.
func (ds *dataStore) LoadPollCursor(
	_ context.Context,
	id string,
) (n uint64, err error) {
	err = ds.view(func(root *bbolt.Bucket) {
		data := bboltx.GetPath(root, cursorBucketKey, []byte(id))
		if data != nil {
			n = binary.BigEndian.Uint64(data)
		}
	})

	return n, err
}

// VisitSaveConversation applies the changes in a "SaveConversation" operation
// to the database.
func (c *committer) VisitSaveConversation(
	_ context.Context,
	op persistence.SaveConversation,
) error {
	conv := op.Conversation

	if conv.OpenGroup != nil {
		bboltx.PutPath(
			c.root,
			marshal(*conv.OpenGroup),
			openGroupBucketKey,
			[]byte(conv.ID),
		)

		conv.OpenGroup = nil
	}

	bboltx.PutPath(
		c.root,
		marshal(conv),
		conversationBucketKey,
		[]byte(conv.ID),
	)

	return nil
}

// VisitRemoveConversation applies the changes in a "RemoveConversation"
// operation to the database.
func (c *committer) VisitRemoveConversation(
	_ context.Context,
	op persistence.RemoveConversation,
) error {
	bboltx.DeletePath(
		c.root,
		conversationBucketKey,
		[]byte(op.ConversationID),
	)

	return nil
}

// VisitRemoveOpenGroupAssociation applies the changes in a
// "RemoveOpenGroupAssociation" operation to the database.
func (c *committer) VisitRemoveOpenGroupAssociation(
	_ context.Context,
	op persistence.RemoveOpenGroupAssociation,
) error {
	bboltx.DeletePath(
		c.root,
		openGroupBucketKey,
		[]byte(op.ConversationID),
	)

	return nil
}

// VisitClearConversationState applies the changes in a
// "ClearConversationState" operation to the database.
func (c *committer) VisitClearConversationState(
	_ context.Context,
	op persistence.ClearConversationState,
) error {
	bboltx.DeletePath(
		c.root,
		cursorBucketKey,
		[]byte(op.ConversationID),
	)

	statuses, ok := bboltx.TryBucket(c.root, statusBucketKey)
	if !ok {
		return nil
	}

	var keys [][]byte

	bboltx.Must(statuses.ForEach(func(k, v []byte) error {
		var s persistence.MessageStatus
		unmarshal(v, &s)

		if s.ConversationID == op.ConversationID {
			keys = append(keys, append([]byte(nil), k...))
		}

		return nil
	}))

	// Keys are deleted after iteration, as bbolt does not support modifying a
	// bucket while iterating over it.
	for _, k := range keys {
		bboltx.Must(statuses.Delete(k))
	}

	return nil
}

// VisitSaveMessageStatus applies the changes in a "SaveMessageStatus"
// operation to the database.
func (c *committer) VisitSaveMessageStatus(
	_ context.Context,
	op persistence.SaveMessageStatus,
) error {
	bboltx.PutPath(
		c.root,
		marshal(op.Status),
		statusBucketKey,
		[]byte(op.Status.MessageID),
	)

	return nil
}

// VisitSavePollCursor applies the changes in a "SavePollCursor" operation to
// the database.
func (c *committer) VisitSavePollCursor(
	_ context.Context,
	op persistence.SavePollCursor,
) error {
	var data [8]byte
	binary.BigEndian.PutUint64(data[:], op.LastMessageID)

	bboltx.PutPath(
		c.root,
		data[:],
		cursorBucketKey,
		[]byte(op.ConversationID),
	)

	return nil
}

// loadConversation loads the conversation with the given ID, including its
// open-group association, if any.
func loadConversation(root *bbolt.Bucket, id string) (message.Conversation, bool) {
	data := bboltx.GetPath(root, conversationBucketKey, []byte(id))
	if data == nil {
		return message.Conversation{}, false
	}

	var c message.Conversation
	unmarshal(data, &c)

	if data := bboltx.GetPath(root, openGroupBucketKey, []byte(id)); data != nil {
		var og message.OpenGroup
		unmarshal(data, &og)
		c.OpenGroup = &og
	}

	return c, true
}
