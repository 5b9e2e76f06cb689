package models

import (
	"encoding/json"
	"time"
)

// Operation is the kind of row mutation an EntityChange records.
type Operation string

// Row mutation kinds.
const (
	OpInsert Operation = "INSERT"
	OpUpdate Operation = "UPDATE"
	OpDelete Operation = "DELETE"
)

// EntityChange is an append-only record of one subscribed-table mutation,
// used to decouple ingestion from the action queue (spec §4.3a).
type EntityChange struct {
	ChangeID    int64
	TableName   string
	Operation   Operation
	EntityID    string
	EntityType  string
	OldData     json.RawMessage
	NewData     json.RawMessage
	Metadata    json.RawMessage // user_id, chat_id, timestamp
	ChangedAt   time.Time
	Processed   bool
	ProcessedAt *time.Time
	ErrorCount  int
	LastError   string
}

// ActionExecutionLog is an append-only record of one action-rule execution.
type ActionExecutionLog struct {
	LogID             int64
	RuleID            string
	QueueItemID       int64
	Status            string
	ExecutionTimeMS   int64
	ErrorMessage      string
	CreatedEntityRefs []EntityRef
	CreatedAt         time.Time
}

// EntityRef names one entity produced by an action execution.
type EntityRef struct {
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
}

// LinkType discriminates the relationship a MessageTaskLink/MessageEventLink
// row represents between a source message and a created entity.
type LinkType string

// Link types. TriggerLink is the idempotency anchor: its uniqueness on
// (message_id, rule_id) is what prevents duplicate entity creation.
const (
	LinkTrigger         LinkType = "trigger"
	LinkContext         LinkType = "context"
	LinkReply           LinkType = "reply"
	LinkForwardFromTask LinkType = "forward_from_task"
	LinkMessageFromTask LinkType = "message_from_task"
)

// MessageTaskLink maps a message to a task it triggered or relates to.
type MessageTaskLink struct {
	LinkID     int64
	MessageID  string
	InstanceID string
	TaskID     string
	RuleID     string
	LinkType   LinkType
	CreatedAt  time.Time
}

// MessageEventLink maps a message to a calendar event it triggered or relates to.
type MessageEventLink struct {
	LinkID     int64
	MessageID  string
	InstanceID string
	EventID    string
	RuleID     string
	LinkType   LinkType
	CreatedAt  time.Time
}
