package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/fcamachol/chatflow/pkg/models"
)

// ChangeCaptureChannel is the Postgres NOTIFY channel change-capture appends
// wake up on (spec §4.3a). Payload is intentionally small — the listener
// re-queries entity_changes rather than trusting NOTIFY payload contents,
// since NOTIFY truncates payloads over 8000 bytes.
const ChangeCaptureChannel = "chatflow_changes"

type changeNotification struct {
	TableName string `json:"table_name"`
	EntityID  string `json:"entity_id"`
}

// changeInput is the write-side shape for recording an EntityChange; unlike
// models.EntityChange (read from the DB as raw JSON) its data/metadata
// fields are live Go values the caller has in hand.
type changeInput struct {
	TableName  string
	Operation  models.Operation
	EntityID   string
	EntityType string
	OldData    any
	NewData    any
	Metadata   map[string]any
}

// appendChange inserts an EntityChange row and emits a NOTIFY on the same
// transaction, so the wakeup is only visible once the change is committed.
// Called by every write path that mutates a subscribed table (messages,
// reactions, and the rule-produced entity tables).
func appendChange(ctx context.Context, tx *sql.Tx, ch changeInput) error {
	const op = "storage.appendChange"

	metadata := ch.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO entity_changes (table_name, operation, entity_id, entity_type,
		                             old_data, new_data, metadata, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		ch.TableName, ch.Operation, ch.EntityID, ch.EntityType, toJSONB(ch.OldData), toJSONB(ch.NewData), toJSONB(metadata))
	if err != nil {
		return classify(op, err)
	}

	payload, err := json.Marshal(changeNotification{TableName: ch.TableName, EntityID: ch.EntityID})
	if err != nil {
		return classify(op, err)
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, ChangeCaptureChannel, string(payload)); err != nil {
		return classify(op, err)
	}
	return nil
}

func toJSONB(v any) []byte {
	if v == nil {
		return []byte("null")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return b
}

// ListPendingChanges returns up to limit unprocessed changes ordered oldest
// first, for the change-capture consumer's catch-up sweep (spec §4.3a).
func (g *Gateway) ListPendingChanges(ctx context.Context, limit int) ([]models.EntityChange, error) {
	const op = "storage.ListPendingChanges"
	rows, err := g.db.QueryContext(ctx, `
		SELECT change_id, table_name, operation, entity_id, entity_type,
		       old_data, new_data, metadata, changed_at, processed, processed_at,
		       error_count, last_error
		FROM entity_changes
		WHERE NOT processed
		ORDER BY changed_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []models.EntityChange
	for rows.Next() {
		var c models.EntityChange
		var oldData, newData, metadata []byte
		if err := rows.Scan(&c.ChangeID, &c.TableName, &c.Operation, &c.EntityID, &c.EntityType,
			&oldData, &newData, &metadata, &c.ChangedAt, &c.Processed, &c.ProcessedAt,
			&c.ErrorCount, &c.LastError); err != nil {
			return nil, classify(op, err)
		}
		_ = json.Unmarshal(oldData, &c.OldData)
		_ = json.Unmarshal(newData, &c.NewData)
		_ = json.Unmarshal(metadata, &c.Metadata)
		out = append(out, c)
	}
	return out, classify(op, rows.Err())
}

// MarkChangeProcessed flips a change row to processed.
func (g *Gateway) MarkChangeProcessed(ctx context.Context, changeID int64) error {
	const op = "storage.MarkChangeProcessed"
	_, err := g.db.ExecContext(ctx, `
		UPDATE entity_changes SET processed = true, processed_at = now() WHERE change_id = $1`, changeID)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// MarkChangeFailed increments the error count on a change row that failed
// to be consumed into a queue item.
func (g *Gateway) MarkChangeFailed(ctx context.Context, changeID int64, errMsg string) error {
	const op = "storage.MarkChangeFailed"
	_, err := g.db.ExecContext(ctx, `
		UPDATE entity_changes SET error_count = error_count + 1, last_error = $2 WHERE change_id = $1`,
		changeID, errMsg)
	if err != nil {
		return classify(op, err)
	}
	return nil
}
