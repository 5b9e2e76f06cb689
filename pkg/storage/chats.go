package storage

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/models"
)

// UpsertChat keeps last_message_ts monotonically non-decreasing;
// unread_count is overwritten as given (spec §4.1). The caller must have
// already materialized the matching contact row (spec §4.2 dependency order).
func (g *Gateway) UpsertChat(ctx context.Context, c models.Chat) (*models.Chat, error) {
	const op = "storage.UpsertChat"
	row := g.db.QueryRowContext(ctx, `
		INSERT INTO chats (chat_id, instance_id, type, unread_count, archived,
		                    pinned, muted, mute_end_ts, last_message_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chat_id, instance_id) DO UPDATE SET
			type            = EXCLUDED.type,
			unread_count    = EXCLUDED.unread_count,
			archived        = EXCLUDED.archived,
			pinned          = EXCLUDED.pinned,
			muted           = EXCLUDED.muted,
			mute_end_ts     = EXCLUDED.mute_end_ts,
			last_message_ts = GREATEST(chats.last_message_ts, EXCLUDED.last_message_ts)
		RETURNING chat_id, instance_id, type, unread_count, archived, pinned,
		          muted, mute_end_ts, last_message_ts`,
		c.ChatID, c.InstanceID, c.Type, c.UnreadCount, c.Archived, c.Pinned,
		c.Muted, c.MuteEndTS, c.LastMessageTS)

	var out models.Chat
	err := row.Scan(&out.ChatID, &out.InstanceID, &out.Type, &out.UnreadCount,
		&out.Archived, &out.Pinned, &out.Muted, &out.MuteEndTS, &out.LastMessageTS)
	if err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}

// ChatExists reports whether a chat row already exists.
func (g *Gateway) ChatExists(ctx context.Context, chatID, instanceID string) (bool, error) {
	const op = "storage.ChatExists"
	var exists bool
	err := g.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM chats WHERE chat_id = $1 AND instance_id = $2)`,
		chatID, instanceID).Scan(&exists)
	if err != nil {
		return false, classify(op, err)
	}
	return exists, nil
}
