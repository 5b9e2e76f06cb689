package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/models"
)

// EnqueueItem inserts a pending ActionQueueItem. Duplicate idempotency keys
// within the configured window are suppressed by the unique index on
// idempotency_key — a conflict here is not an error, it means the item was
// already enqueued (spec §4.3b).
func (g *Gateway) EnqueueItem(ctx context.Context, item models.ActionQueueItem) (*models.ActionQueueItem, bool, error) {
	const op = "storage.EnqueueItem"
	if item.MaxAttempts == 0 {
		item.MaxAttempts = 3
	}

	row := g.db.QueryRowContext(ctx, `
		INSERT INTO action_queue_items (event_type, event_data, status, priority,
		                                 attempts, max_attempts, retry_after_ts,
		                                 idempotency_key, created_at)
		VALUES ($1, $2, 'pending', $3, 0, $4, now(), $5, now())
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING queue_id, event_type, event_data, status, priority, attempts,
		          max_attempts, retry_after_ts, last_error, idempotency_key,
		          created_at, processed_at, completed_at`,
		item.EventType, []byte(item.EventData), item.Priority, item.MaxAttempts, item.IdempotencyKey)

	out, err := scanQueueItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil // suppressed duplicate, not an error
		}
		return nil, false, classify(op, err)
	}
	return out, true, nil
}

// LeaseQueueBatch atomically selects up to limit pending items in
// priority-then-age order where retry_after_ts <= now and attempts <
// max_attempts, flips them to processing, and returns them. Uses
// FOR UPDATE SKIP LOCKED so concurrent workers never contend for the same
// row (spec §4.1, §5).
func (g *Gateway) LeaseQueueBatch(ctx context.Context, limit int) ([]models.ActionQueueItem, error) {
	const op = "storage.LeaseQueueBatch"

	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify(op, err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, `
		SELECT queue_id FROM action_queue_items
		WHERE status = 'pending' AND retry_after_ts <= now() AND attempts < max_attempts
		ORDER BY
			CASE priority WHEN 'high' THEN 0 WHEN 'normal' THEN 1 ELSE 2 END,
			created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, classify(op, err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, classify(op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, classify(op, err)
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	leased := make([]models.ActionQueueItem, 0, len(ids))
	for _, id := range ids {
		row := tx.QueryRowContext(ctx, `
			UPDATE action_queue_items SET status = 'processing', processed_at = now()
			WHERE queue_id = $1
			RETURNING queue_id, event_type, event_data, status, priority, attempts,
			          max_attempts, retry_after_ts, last_error, idempotency_key,
			          created_at, processed_at, completed_at`, id)
		item, err := scanQueueItem(row)
		if err != nil {
			return nil, classify(op, err)
		}
		leased = append(leased, *item)
	}

	if err := tx.Commit(); err != nil {
		return nil, classify(op, err)
	}
	return leased, nil
}

// CompleteQueueItem marks a leased item completed, optionally recording a
// terminal substatus (parse_failed, no_rules) in last_error (spec §4.6, §7).
func (g *Gateway) CompleteQueueItem(ctx context.Context, queueID int64, substatus string) error {
	const op = "storage.CompleteQueueItem"
	_, err := g.db.ExecContext(ctx, `
		UPDATE action_queue_items SET status = 'completed', completed_at = now(), last_error = $2
		WHERE queue_id = $1`, queueID, substatus)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// FailQueueItem applies the retry/backoff policy (spec §4.3): increments
// attempts, sets retry_after_ts = now + min(2^attempts seconds, cap), and
// flips status back to pending if still under max_attempts, else failed.
func (g *Gateway) FailQueueItem(ctx context.Context, queueID int64, errMsg string, backoffCapSeconds int) error {
	const op = "storage.FailQueueItem"
	_, err := g.db.ExecContext(ctx, `
		UPDATE action_queue_items SET
			attempts = attempts + 1,
			last_error = $2,
			status = CASE WHEN attempts + 1 < max_attempts THEN 'pending' ELSE 'failed' END,
			retry_after_ts = now() + (LEAST(power(2, attempts + 1)::int, $3) || ' seconds')::interval
		WHERE queue_id = $1`, queueID, errMsg, backoffCapSeconds)
	if err != nil {
		return classify(op, err)
	}
	return nil
}

// ListDeadLetterItems returns queue items that exhausted max_attempts,
// optionally filtered by event type, for the recovery subsystem's manual
// reprocess surface (spec §4.8, §6 POST /admin/reprocess).
func (g *Gateway) ListDeadLetterItems(ctx context.Context, eventType models.QueueEventType) ([]models.ActionQueueItem, error) {
	const op = "storage.ListDeadLetterItems"

	filter := ""
	args := []any{}
	if eventType != "" {
		filter = "AND event_type = $1"
		args = append(args, eventType)
	}
	rows, err := g.db.QueryContext(ctx, `
		SELECT queue_id, event_type, event_data, status, priority, attempts,
		       max_attempts, retry_after_ts, last_error, idempotency_key,
		       created_at, processed_at, completed_at
		FROM action_queue_items WHERE status = 'failed' `+filter, args...)
	if err != nil {
		return nil, classify(op, err)
	}
	defer rows.Close()

	var out []models.ActionQueueItem
	for rows.Next() {
		item, err := scanQueueItemRow(rows)
		if err != nil {
			return nil, classify(op, err)
		}
		out = append(out, item)
	}
	return out, classify(op, rows.Err())
}

// ReclaimStaleProcessingItems resets items stuck in 'processing' back to
// 'pending' without counting an attempt, recovering from a worker that
// crashed or was killed mid-execution after leasing a batch (spec §4.3b,
// §4.8). A row is stale once it has sat in processing longer than
// olderThan; age is measured from processed_at, the timestamp
// LeaseQueueBatch stamps when it flips the row to processing.
func (g *Gateway) ReclaimStaleProcessingItems(ctx context.Context, olderThan time.Duration) (int, error) {
	const op = "storage.ReclaimStaleProcessingItems"
	res, err := g.db.ExecContext(ctx, `
		UPDATE action_queue_items SET status = 'pending', retry_after_ts = now()
		WHERE status = 'processing' AND processed_at < now() - ($1 || ' seconds')::interval`,
		int64(olderThan.Seconds()))
	if err != nil {
		return 0, classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, classify(op, err)
	}
	return int(n), nil
}

// ReprocessDeadLetterItem resets a dead-letter item back to pending with a
// fresh attempt budget (spec §4.8 manual reprocess hook).
func (g *Gateway) ReprocessDeadLetterItem(ctx context.Context, queueID int64) error {
	const op = "storage.ReprocessDeadLetterItem"
	res, err := g.db.ExecContext(ctx, `
		UPDATE action_queue_items SET status = 'pending', attempts = 0, last_error = '',
		       retry_after_ts = now()
		WHERE queue_id = $1 AND status = 'failed'`, queueID)
	if err != nil {
		return classify(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return dberrors.NotFound(op, nil)
	}
	return nil
}

func scanQueueItem(row scannable) (*models.ActionQueueItem, error) {
	item, err := scanQueueItemRow(row)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func scanQueueItemRow(row scannable) (models.ActionQueueItem, error) {
	var item models.ActionQueueItem
	var eventData []byte
	err := row.Scan(&item.QueueID, &item.EventType, &eventData, &item.Status, &item.Priority,
		&item.Attempts, &item.MaxAttempts, &item.RetryAfterTS, &item.LastError,
		&item.IdempotencyKey, &item.CreatedAt, &item.ProcessedAt, &item.CompletedAt)
	if err != nil {
		return models.ActionQueueItem{}, err
	}
	item.EventData = eventData
	return item, nil
}
