// Package queue runs the worker pool that leases ActionQueueItem rows and
// dispatches each to rule matching, NLP parsing, and action execution
// (spec §4.3b, §5).
package queue

import (
	"context"
	"time"

	"github.com/fcamachol/chatflow/pkg/models"
)

// Gateway is the subset of storage.Gateway the queue depends on.
type Gateway interface {
	LeaseQueueBatch(ctx context.Context, limit int) ([]models.ActionQueueItem, error)
	CompleteQueueItem(ctx context.Context, queueID int64, substatus string) error
	FailQueueItem(ctx context.Context, queueID int64, errMsg string, backoffCapSeconds int) error
	ReclaimStaleProcessingItems(ctx context.Context, olderThan time.Duration) (int, error)
}

// ItemExecutor processes one leased queue item to completion. The
// implementation (pkg/rules + pkg/nlp + pkg/action, wired together at
// startup) owns the entire rule-match → parse → act pipeline for the item.
type ItemExecutor interface {
	Execute(ctx context.Context, item models.ActionQueueItem) ItemResult
}

// ItemResult is the terminal outcome of one Execute call.
//
// Completed distinguishes a terminal outcome (success, or a well-understood
// non-retryable substatus such as "no matching rules" or "parse failed")
// from a retryable failure. Only a retryable failure feeds FailQueueItem's
// attempts/backoff counter — a terminal substatus is not an error and must
// not be retried (spec §4.6 SubstatusParseFailed, §4.3b SubstatusNoRules).
type ItemResult struct {
	Completed bool
	Substatus string
	Err       error
}

// Completed builds a successful terminal result, substatus optional.
func Completed(substatus string) ItemResult {
	return ItemResult{Completed: true, Substatus: substatus}
}

// Retry builds a retryable-failure result.
func Retry(err error) ItemResult {
	return ItemResult{Completed: false, Err: err}
}

// PoolHealth reports the worker pool's current state for the /health endpoint.
type PoolHealth struct {
	IsHealthy        bool           `json:"is_healthy"`
	TotalWorkers     int            `json:"total_workers"`
	ActiveWorkers    int            `json:"active_workers"`
	WorkerStats      []WorkerHealth `json:"worker_stats"`
	LastOrphanScan   time.Time      `json:"last_orphan_scan"`
	OrphansRecovered int            `json:"orphans_recovered"`
}

// WorkerHealth reports a single worker's current state.
type WorkerHealth struct {
	ID             string    `json:"id"`
	Status         string    `json:"status"` // "idle" or "working"
	CurrentQueueID int64     `json:"current_queue_id,omitempty"`
	ItemsProcessed int       `json:"items_processed"`
	LastActivity   time.Time `json:"last_activity"`
}
