// Package recovery is the C8 Recovery Subsystem (spec §4.8): a
// cron-scheduled sweeper that retries entries in the failed-event bucket
// with capped exponential backoff, reports the dead-letter queue's size,
// and exposes a manual reprocess hook for the admin surface.
package recovery

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/models"
	"github.com/fcamachol/chatflow/pkg/webhook"
)

// Gateway is the subset of storage.Gateway the recovery subsystem depends on.
type Gateway interface {
	ListPendingFailedEvents(ctx context.Context, limit int) ([]models.FailedEvent, error)
	BackoffFailedEvent(ctx context.Context, id int64, backoffCapSeconds int) error
	ResolveFailedEvent(ctx context.Context, id int64) error
	ListDeadLetterItems(ctx context.Context, eventType models.QueueEventType) ([]models.ActionQueueItem, error)
	ReprocessDeadLetterItem(ctx context.Context, queueID int64) error
}

// Replayer re-runs a failed event's original translation. webhook.Adapter
// satisfies this directly — a failed event's raw_payload/event_type is
// exactly what ProcessIncomingEvent needs to retry the same translation.
type Replayer interface {
	ProcessIncomingEvent(ctx context.Context, instanceID string, env webhook.Envelope) error
}
