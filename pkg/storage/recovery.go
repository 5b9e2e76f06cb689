package storage

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/models"
)

// InsertFailedEvent records a webhook event the adapter could not translate
// (spec §4.8 Failed-message bucket, §7 Validation/FK-dependency errors).
func (g *Gateway) InsertFailedEvent(ctx context.Context, fe models.FailedEvent) (*models.FailedEvent, error) {
	const op = "storage.InsertFailedEvent"
	row := g.db.QueryRowContext(ctx, `
		INSERT INTO failed_events (instance_id, event_type, raw_payload, reason,
		                            retry_count, next_retry_at, resolved, created_at)
		VALUES ($1, $2, $3, $4, 0, now(), false, now())
		RETURNING failed_event_id, instance_id, event_type, raw_payload, reason,
		          retry_count, next_retry_at, resolved, created_at, resolved_at`,
		fe.InstanceID, fe.EventType, []byte(fe.RawPayload), fe.Reason)

	var out models.FailedEvent
	var rawPayload []byte
	if err := row.Scan(&out.FailedEventID, &out.InstanceID, &out.EventType, &rawPayload,
		&out.Reason, &out.RetryCount, &out.NextRetryAt, &out.Resolved, &out.CreatedAt,
		&out.ResolvedAt); err != nil {
		return nil, classify(op, err)
	}
	out.RawPayload = rawPayload
	return &out, nil
}

// ListPendingFailedEvents returns unresolved entries due for a retry sweep,
// oldest first (spec §4.8 background sweep).
func (g *Gateway) ListPendingFailedEvents(ctx context.Context, limit int) ([]models.FailedEvent, error) {
	const op = "storage.ListPendingFailedEvents"
	rows, err := g.db.QueryContext(ctx, `
		SELECT failed_event_id, instance_id, event_type, raw_payload, reason,
		       retry_count, next_retry_at, resolved, created_at, resolved_at
		FROM failed_events
		WHERE NOT resolved AND next_retry_at <= now()
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []models.FailedEvent
	for rows.Next() {
		var fe models.FailedEvent
		var rawPayload []byte
		if err := rows.Scan(&fe.FailedEventID, &fe.InstanceID, &fe.EventType, &rawPayload,
			&fe.Reason, &fe.RetryCount, &fe.NextRetryAt, &fe.Resolved, &fe.CreatedAt,
			&fe.ResolvedAt); err != nil {
			return nil, classify(op, err)
		}
		fe.RawPayload = rawPayload
		out = append(out, fe)
	}
	return out, classify(op, rows.Err())
}

// BackoffFailedEvent bumps retry_count and schedules the next retry with
// capped exponential backoff (spec §4.8).
func (g *Gateway) BackoffFailedEvent(ctx context.Context, id int64, backoffCapSeconds int) error {
	const op = "storage.BackoffFailedEvent"
	_, err := g.db.ExecContext(ctx, `
		UPDATE failed_events SET
			retry_count = retry_count + 1,
			next_retry_at = now() + (LEAST(power(2, retry_count + 1)::int, $2) || ' seconds')::interval
		WHERE failed_event_id = $1`, id, backoffCapSeconds)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// ResolveFailedEvent marks an entry resolved once its retry succeeds.
func (g *Gateway) ResolveFailedEvent(ctx context.Context, id int64) error {
	const op = "storage.ResolveFailedEvent"
	_, err := g.db.ExecContext(ctx, `
		UPDATE failed_events SET resolved = true, resolved_at = now() WHERE failed_event_id = $1`, id)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// InsertNLPParseLog records analytics for one pkg/nlp parse call (spec §4.5).
func (g *Gateway) InsertNLPParseLog(ctx context.Context, l models.NLPParseLog) error {
	const op = "storage.InsertNLPParseLog"
	_, err := g.db.ExecContext(ctx, `
		INSERT INTO nlp_parse_logs (parser_type, language, success, confidence, processing_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`,
		l.ParserType, l.Language, l.Success, l.Confidence, l.ProcessingMS)
	if err != nil {
		return classify(op, err)
	}
	return nil
}
