package storage

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/models"
)

// UpsertMessage inserts a message, or on key collision updates only
// content/is_edited/last_edited_at (spec §4.1). The caller must have already
// materialized the sender contact, chat, and (if a group) group placeholder
// rows — a violation here surfaces as dberrors.ErrFKViolation so the webhook
// adapter can trigger its one-shot dependency-materialization retry
// (spec §4.2, §7). The insert and its EntityChange row commit atomically.
func (g *Gateway) UpsertMessage(ctx context.Context, m models.Message) (*models.Message, error) {
	const op = "storage.UpsertMessage"

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	row := tx.QueryRowContext(ctx, `
		INSERT INTO messages (message_id, instance_id, chat_id, sender_jid, from_me,
		                       message_type, content, timestamp, quoted_message_id,
		                       is_forwarded, forwarding_score, is_starred, is_edited,
		                       last_edited_at, source_platform, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (message_id, instance_id) DO UPDATE SET
			content        = EXCLUDED.content,
			is_edited       = true,
			last_edited_at = now()
		RETURNING message_id, instance_id, chat_id, sender_jid, from_me, message_type,
		          content, timestamp, quoted_message_id, is_forwarded, forwarding_score,
		          is_starred, is_edited, last_edited_at, source_platform, raw_payload`,
		m.MessageID, m.InstanceID, m.ChatID, m.SenderJID, m.FromMe, m.MessageType,
		m.Content, m.Timestamp, m.QuotedMessageID, m.IsForwarded, m.ForwardingScore,
		m.IsStarred, m.IsEdited, m.LastEditedAt, m.SourcePlatform, []byte(m.RawPayload))

	var out models.Message
	var rawPayload []byte
	if err := row.Scan(&out.MessageID, &out.InstanceID, &out.ChatID, &out.SenderJID,
		&out.FromMe, &out.MessageType, &out.Content, &out.Timestamp, &out.QuotedMessageID,
		&out.IsForwarded, &out.ForwardingScore, &out.IsStarred, &out.IsEdited,
		&out.LastEditedAt, &out.SourcePlatform, &rawPayload); err != nil {
		return nil, classify(op, err)
	}
	out.RawPayload = rawPayload

	if err := appendChange(ctx, tx, changeInput{
		TableName:  "messages",
		Operation:  models.OpInsert,
		EntityID:   out.MessageID,
		EntityType: "message",
		NewData:    out,
		Metadata:   map[string]any{"instance_id": out.InstanceID, "chat_id": out.ChatID},
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}

// GetMessage fetches a message by key, used to resolve the triggering and
// quoted/context messages for NLP and action execution (spec §4.6).
func (g *Gateway) GetMessage(ctx context.Context, messageID, instanceID string) (*models.Message, error) {
	const op = "storage.GetMessage"
	row := g.db.QueryRowContext(ctx, `
		SELECT message_id, instance_id, chat_id, sender_jid, from_me, message_type,
		       content, timestamp, quoted_message_id, is_forwarded, forwarding_score,
		       is_starred, is_edited, last_edited_at, source_platform, raw_payload
		FROM messages WHERE message_id = $1 AND instance_id = $2`, messageID, instanceID)

	var out models.Message
	var rawPayload []byte
	if err := row.Scan(&out.MessageID, &out.InstanceID, &out.ChatID, &out.SenderJID,
		&out.FromMe, &out.MessageType, &out.Content, &out.Timestamp, &out.QuotedMessageID,
		&out.IsForwarded, &out.ForwardingScore, &out.IsStarred, &out.IsEdited,
		&out.LastEditedAt, &out.SourcePlatform, &rawPayload); err != nil {
		return nil, classify(op, err)
	}
	out.RawPayload = rawPayload
	return &out, nil
}

// MarkMessageRevoked marks a message revoked in place — messages.delete is
// a soft delete that preserves audit trail, never a hard delete (spec §4.2).
func (g *Gateway) MarkMessageRevoked(ctx context.Context, messageID, instanceID string) error {
	const op = "storage.MarkMessageRevoked"
	_, err := g.db.ExecContext(ctx, `
		UPDATE messages SET message_type = $3, content = ''
		WHERE message_id = $1 AND instance_id = $2`,
		messageID, instanceID, models.MessageTypeRevoked)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// AppendMessageStatusUpdate is a pure append to the ordered status sequence
// (spec §3 MessageStatusUpdate).
func (g *Gateway) AppendMessageStatusUpdate(ctx context.Context, u models.MessageStatusUpdate) error {
	const op = "storage.AppendMessageStatusUpdate"
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO message_status_updates (message_id, instance_id, status, timestamp)
		VALUES ($1, $2, $3, $4)`,
		u.MessageID, u.InstanceID, u.Status, u.Timestamp)
	if err != nil {
		return classify(op, err)
	}
	return nil
}
