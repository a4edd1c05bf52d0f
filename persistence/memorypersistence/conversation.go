package memorypersistence

import (
	"context"
	"sort"

	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
)

// LoadConversation loads the conversation with the given ID.
func (ds *dataStore) LoadConversation(
	_ context.Context,
	id string,
) (message.Conversation, bool, error) {
	if err := ds.checkOpen(); err != nil {
		return message.Conversation{}, false, err
	}

	ds.db.RLock()
	defer ds.db.RUnlock()

	c, ok := ds.db.conversation.load(id)
	return c, ok, nil
}

// LoadOpenGroups loads all conversations that have an open-group association,
// ordered by conversation ID.
func (ds *dataStore) LoadOpenGroups(context.Context) ([]message.Conversation, error) {
	if err := ds.checkOpen(); err != nil {
		return nil, err
	}

	ds.db.RLock()
	defer ds.db.RUnlock()

	var result []message.Conversation

	for id := range ds.db.conversation.openGroups {
		if c, ok := ds.db.conversation.load(id); ok {
			result = append(result, c)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

// VisitSaveConversation returns an error if a "SaveConversation" operation can
// not be applied to the database.
func (v *validator) VisitSaveConversation(
	context.Context,
	persistence.SaveConversation,
) error {
	return nil
}

// VisitRemoveConversation returns an error if a "RemoveConversation" operation
// can not be applied to the database.
func (v *validator) VisitRemoveConversation(
	context.Context,
	persistence.RemoveConversation,
) error {
	return nil
}

// VisitRemoveOpenGroupAssociation returns an error if a
// "RemoveOpenGroupAssociation" operation can not be applied to the database.
func (v *validator) VisitRemoveOpenGroupAssociation(
	context.Context,
	persistence.RemoveOpenGroupAssociation,
) error {
	return nil
}

// VisitClearConversationState returns an error if a "ClearConversationState"
// operation can not be applied to the database.
func (v *validator) VisitClearConversationState(
	context.Context,
	persistence.ClearConversationState,
) error {
	return nil
}

// VisitSaveConversation applies the changes in a "SaveConversation" operation
// to the database.
func (c *committer) VisitSaveConversation(
	_ context.Context,
	op persistence.SaveConversation,
) error {
	conv := op.Conversation
	conv.Members = append([]string(nil), conv.Members...)

	if conv.OpenGroup != nil {
		og := *conv.OpenGroup

		if c.db.conversation.openGroups == nil {
			c.db.conversation.openGroups = map[string]message.OpenGroup{}
		}

		c.db.conversation.openGroups[conv.ID] = og
		conv.OpenGroup = nil
	}

	if c.db.conversation.conversations == nil {
		c.db.conversation.conversations = map[string]message.Conversation{}
	}

	c.db.conversation.conversations[conv.ID] = conv

	return nil
}

// VisitRemoveConversation applies the changes in a "RemoveConversation"
// operation to the database.
func (c *committer) VisitRemoveConversation(
	_ context.Context,
	op persistence.RemoveConversation,
) error {
	delete(c.db.conversation.conversations, op.ConversationID)
	return nil
}

// VisitRemoveOpenGroupAssociation applies the changes in a
// "RemoveOpenGroupAssociation" operation to the database.
func (c *committer) VisitRemoveOpenGroupAssociation(
	_ context.Context,
	op persistence.RemoveOpenGroupAssociation,
) error {
	delete(c.db.conversation.openGroups, op.ConversationID)
	return nil
}

// VisitClearConversationState applies the changes in a
// "ClearConversationState" operation to the database.
func (c *committer) VisitClearConversationState(
	_ context.Context,
	op persistence.ClearConversationState,
) error {
	delete(c.db.pollCursor.cursors, op.ConversationID)

	for id, s := range c.db.messageStatus.statuses {
		if s.ConversationID == op.ConversationID {
			delete(c.db.messageStatus.statuses, id)
		}
	}

	return nil
}

// conversationDatabase contains conversation related data.
type conversationDatabase struct {
	conversations map[string]message.Conversation
	openGroups    map[string]message.OpenGroup
}

// load returns the conversation with the given ID, including its open-group
// association, if any.
func (db *conversationDatabase) load(id string) (message.Conversation, bool) {
	c, ok := db.conversations[id]
	if !ok {
		return message.Conversation{}, false
	}

	c.Members = append([]string(nil), c.Members...)

	if og, ok := db.openGroups[id]; ok {
		c.OpenGroup = &og
	}

	return c, true
}
