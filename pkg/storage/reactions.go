package storage

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/models"
)

// UpsertReaction collides on (message_id, instance_id, reactor_jid) and
// overwrites emoji + timestamp; an empty emoji is retained as-is since it
// denotes removal, not absence (spec §4.1, §3 MessageReaction). Reactions
// are a subscribed table — the insert/update and its EntityChange row
// commit atomically.
func (g *Gateway) UpsertReaction(ctx context.Context, r models.MessageReaction) (*models.MessageReaction, error) {
	const op = "storage.UpsertReaction"

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `
		INSERT INTO message_reactions (message_id, instance_id, reactor_jid, reaction_emoji, from_me, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (message_id, instance_id, reactor_jid) DO UPDATE SET
			reaction_emoji = EXCLUDED.reaction_emoji,
			from_me        = EXCLUDED.from_me,
			timestamp      = EXCLUDED.timestamp
		RETURNING message_id, instance_id, reactor_jid, reaction_emoji, from_me, timestamp`,
		r.MessageID, r.InstanceID, r.ReactorJID, r.ReactionEmoji, r.FromMe, r.Timestamp)

	var out models.MessageReaction
	if err := row.Scan(&out.MessageID, &out.InstanceID, &out.ReactorJID,
		&out.ReactionEmoji, &out.FromMe, &out.Timestamp); err != nil {
		return nil, classify(op, err)
	}

	if err := appendChange(ctx, tx, changeInput{
		TableName:  "message_reactions",
		Operation:  models.OpInsert,
		EntityID:   out.MessageID,
		EntityType: "reaction",
		NewData:    out,
		Metadata:   map[string]any{"instance_id": out.InstanceID, "reactor_jid": out.ReactorJID},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}

// GetReaction fetches the latest reaction state for a (message, reactor)
// pair, used to dedupe replayed reaction events (spec §8 round-trip property).
func (g *Gateway) GetReaction(ctx context.Context, messageID, instanceID, reactorJID string) (*models.MessageReaction, error) {
	const op = "storage.GetReaction"
	row := g.db.QueryRowContext(ctx, `
		SELECT message_id, instance_id, reactor_jid, reaction_emoji, from_me, timestamp
		FROM message_reactions
		WHERE message_id = $1 AND instance_id = $2 AND reactor_jid = $3`,
		messageID, instanceID, reactorJID)

	var out models.MessageReaction
	if err := row.Scan(&out.MessageID, &out.InstanceID, &out.ReactorJID,
		&out.ReactionEmoji, &out.FromMe, &out.Timestamp); err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}
