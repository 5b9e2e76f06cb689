package models

import (
	"encoding/json"
	"time"
)

// FailedEvent is a webhook event that could not be translated — malformed
// chat ID, or a dependency-materialization retry that also failed
// (spec §4.8 Failed-message bucket).
type FailedEvent struct {
	FailedEventID int64
	InstanceID    string
	EventType     string
	RawPayload    json.RawMessage
	Reason        string
	RetryCount    int
	NextRetryAt   time.Time
	Resolved      bool
	CreatedAt     time.Time
	ResolvedAt    *time.Time
}

// NLPParseLog is the structured analytics row every pkg/nlp parse call
// emits (spec §4.5).
type NLPParseLog struct {
	ID           int64
	ParserType   string
	Language     string
	Success      bool
	Confidence   float64
	ProcessingMS int64
	CreatedAt    time.Time
}
