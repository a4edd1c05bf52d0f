package sqlpersistence

import (
	"context"
	"database/sql"

	"github.com/dogmatiq/courier/internal/x/sqlx"
	"github.com/dogmatiq/courier/message"
	"github.com/dogmatiq/courier/persistence"
)

// LoadConversation loads the conversation with the given ID.
func (ds *dataStore) LoadConversation(
	ctx context.Context,
	id string,
) (c message.Conversation, ok bool, err error) {
	err = ds.query(func(db *sql.DB) {
		var conv, group []byte

		ok = sqlx.TryQueryRow(
			ctx,
			db,
			`SELECT
				c.data,
				g.data
			FROM conversation AS c
			LEFT JOIN open_group AS g
			ON g.account_key = c.account_key
			AND g.conversation_id = c.id
			WHERE c.account_key = $1
			AND c.id = $2`,
			[]interface{}{ds.accountKey, id},
			&conv,
			&group,
		)

		if ok {
			c = unmarshalConversation(conv, group)
		}
	})

	return c, ok, err
}

// LoadOpenGroups loads all conversations that have an open-group association,
// ordered by conversation ID.
func (ds *dataStore) LoadOpenGroups(ctx context.Context) ([]message.Conversation, error) {
	var result []message.Conversation

	err := ds.query(func(db *sql.DB) {
		rows := sqlx.Query(
			ctx,
			db,
			`SELECT
				c.data,
				g.data
			FROM open_group AS g
			INNER JOIN conversation AS c
			ON c.account_key = g.account_key
			AND c.id = g.conversation_id
			WHERE g.account_key = $1
			ORDER BY c.id`,
			ds.accountKey,
		)
		defer rows.Close()

		for rows.Next() {
			var conv, group []byte
			sqlx.Must(rows.Scan(&conv, &group))
			result = append(result, unmarshalConversation(conv, group))
		}

		sqlx.Must(rows.Err())
	})

	return result, err
}

// LoadMessageStatus loads the status of the message with the given ID.
func (ds *dataStore) LoadMessageStatus(
	ctx context.Context,
	id string,
) (s persistence.MessageStatus, ok bool, err error) {
	err = ds.query(func(db *sql.DB) {
		var data []byte

		ok = sqlx.TryQueryRow(
			ctx,
			db,
			`SELECT
				data
			FROM message_status
			WHERE account_key = $1
			AND message_id = $2`,
			[]interface{}{ds.accountKey, id},
			&data,
		)

		if ok {
			unmarshal(data, &s)
		}
	})

	return s, ok, err
}

// LoadPollCursor returns the ID of the last server message seen by the poller
// for the given conversation.
func (ds *dataStore) LoadPollCursor(
	ctx context.Context,
	id string,
) (n uint64, err error) {
	err = ds.query(func(db *sql.DB) {
		var v int64

		if sqlx.TryQueryRow(
			ctx,
			db,
			`SELECT
				last_message_id
			FROM poll_cursor
			WHERE account_key = $1
			AND conversation_id = $2`,
			[]interface{}{ds.accountKey, id},
			&v,
		) {
			n = uint64(v)
		}
	})

	return n, err
}

// VisitSaveConversation applies the changes in a "SaveConversation" operation
// to the database.
func (c *committer) VisitSaveConversation(
	ctx context.Context,
	op persistence.SaveConversation,
) error {
	conv := op.Conversation

	if conv.OpenGroup != nil {
		sqlx.Exec(
			ctx,
			c.tx,
			`INSERT INTO open_group (
				account_key,
				conversation_id,
				data
			) VALUES (
				$1, $2, $3
			) ON CONFLICT (account_key, conversation_id) DO UPDATE SET
				data = excluded.data`,
			c.accountKey,
			conv.ID,
			marshal(*conv.OpenGroup),
		)

		conv.OpenGroup = nil
	}

	sqlx.Exec(
		ctx,
		c.tx,
		`INSERT INTO conversation (
			account_key,
			id,
			data
		) VALUES (
			$1, $2, $3
		) ON CONFLICT (account_key, id) DO UPDATE SET
			data = excluded.data`,
		c.accountKey,
		conv.ID,
		marshal(conv),
	)

	return nil
}

// VisitRemoveConversation applies the changes in a "RemoveConversation"
// operation to the database.
func (c *committer) VisitRemoveConversation(
	ctx context.Context,
	op persistence.RemoveConversation,
) error {
	sqlx.Exec(
		ctx,
		c.tx,
		`DELETE FROM conversation
		WHERE account_key = $1
		AND id = $2`,
		c.accountKey,
		op.ConversationID,
	)

	return nil
}

// VisitRemoveOpenGroupAssociation applies the changes in a
// "RemoveOpenGroupAssociation" operation to the database.
func (c *committer) VisitRemoveOpenGroupAssociation(
	ctx context.Context,
	op persistence.RemoveOpenGroupAssociation,
) error {
	sqlx.Exec(
		ctx,
		c.tx,
		`DELETE FROM open_group
		WHERE account_key = $1
		AND conversation_id = $2`,
		c.accountKey,
		op.ConversationID,
	)

	return nil
}

// VisitClearConversationState applies the changes in a
// "ClearConversationState" operation to the database.
func (c *committer) VisitClearConversationState(
	ctx context.Context,
	op persistence.ClearConversationState,
) error {
	sqlx.Exec(
		ctx,
		c.tx,
		`DELETE FROM message_status
		WHERE account_key = $1
		AND conversation_id = $2`,
		c.accountKey,
		op.ConversationID,
	)

	sqlx.Exec(
		ctx,
		c.tx,
		`DELETE FROM poll_cursor
		WHERE account_key = $1
		AND conversation_id = $2`,
		c.accountKey,
		op.ConversationID,
	)

	return nil
}

// VisitSaveMessageStatus applies the changes in a "SaveMessageStatus"
// operation to the database.
func (c *committer) VisitSaveMessageStatus(
	ctx context.Context,
	op persistence.SaveMessageStatus,
) error {
	sqlx.Exec(
		ctx,
		c.tx,
		`INSERT INTO message_status (
			account_key,
			message_id,
			conversation_id,
			data
		) VALUES (
			$1, $2, $3, $4
		) ON CONFLICT (account_key, message_id) DO UPDATE SET
			conversation_id = excluded.conversation_id,
			data = excluded.data`,
		c.accountKey,
		op.Status.MessageID,
		op.Status.ConversationID,
		marshal(op.Status),
	)

	return nil
}

// VisitSavePollCursor applies the changes in a "SavePollCursor" operation to
// the database.
func (c *committer) VisitSavePollCursor(
	ctx context.Context,
	op persistence.SavePollCursor,
) error {
	sqlx.Exec(
		ctx,
		c.tx,
		`INSERT INTO poll_cursor (
			account_key,
			conversation_id,
			last_message_id
		) VALUES (
			$1, $2, $3
		) ON CONFLICT (account_key, conversation_id) DO UPDATE SET
			last_message_id = excluded.last_message_id`,
		c.accountKey,
		op.ConversationID,
		int64(op.LastMessageID),
	)

	return nil
}

// unmarshalConversation decodes a conversation and its optional open-group
// association.
func unmarshalConversation(conv, group []byte) message.Conversation {
	var c message.Conversation
	unmarshal(conv, &c)

	if group != nil {
		var og message.OpenGroup
		unmarshal(group, &og)
		c.OpenGroup = &og
	}

	return c
}
