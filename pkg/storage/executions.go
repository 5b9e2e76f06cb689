package storage

import (
	"context"
	"encoding/json"

	"github.com/fcamachol/chatflow/pkg/dberrors"
	"github.com/fcamachol/chatflow/pkg/models"
)

// RecordExecution appends an ActionExecutionLog row (spec §3
// ActionExecutionLog — append-only).
func (g *Gateway) RecordExecution(ctx context.Context, log models.ActionExecutionLog) error {
	const op = "storage.RecordExecution"

	refsJSON, err := json.Marshal(log.CreatedEntityRefs)
	if err != nil {
		return dberrors.Permanent(op, err)
	}

	_, err = g.db.ExecContext(ctx, `
		INSERT INTO action_execution_logs (rule_id, queue_item_id, status, execution_time_ms,
		                                    error_message, created_entity_refs, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`,
		log.RuleID, log.QueueItemID, log.Status, log.ExecutionTimeMS, log.ErrorMessage, refsJSON)
	if err != nil {
		return classify(op, err)
	}
	return nil
}
