package storage

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/models"
)

// UpsertCallLog stores a call-event row (spec §3 CallLog, §4.2 "call" event).
func (g *Gateway) UpsertCallLog(ctx context.Context, c models.CallLog) (*models.CallLog, error) {
	const op = "storage.UpsertCallLog"
	row := g.db.QueryRowContext(ctx, `
		INSERT INTO call_logs (call_log_id, instance_id, chat_id, from_jid, from_me,
		                        start_ts, is_video, duration_seconds, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (call_log_id, instance_id) DO UPDATE SET
			duration_seconds = EXCLUDED.duration_seconds,
			outcome          = EXCLUDED.outcome
		RETURNING call_log_id, instance_id, chat_id, from_jid, from_me, start_ts,
		          is_video, duration_seconds, outcome`,
		c.CallLogID, c.InstanceID, c.ChatID, c.FromJID, c.FromMe, c.StartTS,
		c.IsVideo, c.DurationSeconds, c.Outcome)

	var out models.CallLog
	if err := row.Scan(&out.CallLogID, &out.InstanceID, &out.ChatID, &out.FromJID,
		&out.FromMe, &out.StartTS, &out.IsVideo, &out.DurationSeconds, &out.Outcome); err != nil {
		return nil, classify(op, err)
	}
	return &out, nil
}
