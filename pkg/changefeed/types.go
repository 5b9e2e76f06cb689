// Package changefeed turns committed rows in entity_changes into
// ActionQueueItem rows the queue workers lease (spec §4.3a). It is the
// bridge between storage writes and the action queue: pkg/storage's
// appendChange records the change and fires pg_notify in the same
// transaction; Consumer wakes on that NOTIFY, re-reads the pending changes
// (never trusting the NOTIFY payload itself — Postgres truncates it past
// 8000 bytes), and translates each one into a typed queue item.
package changefeed

import (
	"context"

	"github.com/fcamachol/chatflow/pkg/models"
)

// urgentEmojis bump a reaction-triggered queue item's priority to high
// (spec §4.3b: "red/urgent emoji → high; everything else → normal"). The
// spec names the category, not an exact set — this is the closed set
// chosen for chatflow: the common "urgent"/"stop" signals, not every red
// or warning-adjacent glyph.
var urgentEmojis = map[string]bool{
	"🔴": true,
	"🚨": true,
	"‼️": true,
	"❗": true,
}

// Gateway is the subset of storage.Gateway the consumer depends on, kept
// narrow so translate logic can be unit tested against a fake.
type Gateway interface {
	ListPendingChanges(ctx context.Context, limit int) ([]models.EntityChange, error)
	MarkChangeProcessed(ctx context.Context, changeID int64) error
	MarkChangeFailed(ctx context.Context, changeID int64, errMsg string) error
	EnqueueItem(ctx context.Context, item models.ActionQueueItem) (*models.ActionQueueItem, bool, error)
}
