package models

import (
	"encoding/json"
	"time"
)

// QueueEventType is the kind of source event an ActionQueueItem carries.
type QueueEventType string

// Queue event types.
const (
	QueueEventReaction     QueueEventType = "reaction"
	QueueEventMessage      QueueEventType = "message"
	QueueEventEntityChange QueueEventType = "entity_change"
)

// QueueStatus is the lifecycle state of an ActionQueueItem.
type QueueStatus string

// Queue item statuses.
const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// QueuePriority controls lease ordering: high before normal before low,
// then oldest first within a priority band.
type QueuePriority string

// Queue priorities.
const (
	PriorityHigh   QueuePriority = "high"
	PriorityNormal QueuePriority = "normal"
	PriorityLow    QueuePriority = "low"
)

// Queue item completion substatuses recorded in last_error/result for
// non-retried terminal outcomes (spec §4.6, §4.7, §7).
const (
	SubstatusParseFailed = "parse_failed"
	SubstatusNoRules     = "no_rules"
)

// ActionQueueItem is one unit of deferred work processed by a queue worker.
type ActionQueueItem struct {
	QueueID       int64
	EventType     QueueEventType
	EventData     json.RawMessage
	Status        QueueStatus
	Priority      QueuePriority
	Attempts      int
	MaxAttempts   int
	RetryAfterTS  time.Time
	LastError     string
	IdempotencyKey string
	CreatedAt     time.Time
	ProcessedAt   *time.Time
	CompletedAt   *time.Time
}

// ReactionEventData is the EventData payload shape for QueueEventReaction items.
type ReactionEventData struct {
	MessageID  string `json:"message_id"`
	InstanceID string `json:"instance_id"`
	ReactorJID string `json:"reactor_jid"`
	Emoji      string `json:"emoji"`
}

// MessageEventData is the EventData payload shape for QueueEventMessage items
// (hashtag-triggered rule matching over inbound message text).
type MessageEventData struct {
	MessageID  string `json:"message_id"`
	InstanceID string `json:"instance_id"`
	SenderJID  string `json:"sender_jid"`
}

// EntityChangeEventData is the EventData payload shape for
// QueueEventEntityChange items. The change-capture consumer does not
// enqueue items of this type; it enqueues reaction and message items.
type EntityChangeEventData struct {
	ChangeID   int64  `json:"change_id"`
	TableName  string `json:"table_name"`
	EntityID   string `json:"entity_id"`
}
