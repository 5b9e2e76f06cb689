// Package fanout is the real-time UI push channel (spec §4.7): a
// single-writer, many-subscriber broadcast over WebSocket, backed by
// Postgres LISTEN/NOTIFY so every replica of chatflow sees events
// published by any other replica.
//
// Delivery is best-effort and at-most-once per subscriber: there is no
// server-side buffering beyond the current event, and a subscriber that
// was disconnected when an event fired has permanently missed it. A
// broken connection is detected on write error and removed.
package fanout

// Event types pushed to subscribers (spec §4.7).
const (
	EventNewMessage    = "new_message"
	EventNewReaction   = "new_reaction"
	EventEntityCreated = "entity_created"
	EventRuleExecuted  = "rule_executed"
)

// InstanceChannel returns the NOTIFY channel name scoped to one chat
// instance, so a subscriber only receives events for the instance(s) it
// is watching.
func InstanceChannel(instanceID string) string {
	return "chatflow_realtime:" + instanceID
}

// NewMessagePayload is the payload for EventNewMessage.
type NewMessagePayload struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id"`
	MessageID  string `json:"message_id"`
	ChatID     string `json:"chat_id"`
	SenderJID  string `json:"sender_jid"`
	Content    string `json:"content"`
	Timestamp  string `json:"timestamp"`
}

// NewReactionPayload is the payload for EventNewReaction.
type NewReactionPayload struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id"`
	MessageID  string `json:"message_id"`
	ReactorJID string `json:"reactor_jid"`
	Emoji      string `json:"emoji"` // empty denotes removal
}

// EntityCreatedPayload is the payload for EventEntityCreated.
type EntityCreatedPayload struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id"`
	EntityType string `json:"entity_type"` // "task", "calendar_event", "bill", "note"
	EntityID   string `json:"entity_id"`
}

// RuleExecutedPayload is the payload for EventRuleExecuted.
type RuleExecutedPayload struct {
	Type       string `json:"type"`
	InstanceID string `json:"instance_id"`
	RuleID     string `json:"rule_id"`
	Status     string `json:"status"` // "success", "parse_failed", "error"
}

// ClientMessage is the JSON structure for client → server WebSocket
// messages.
type ClientMessage struct {
	Action     string `json:"action"`                // "subscribe", "unsubscribe", "ping"
	InstanceID string `json:"instance_id,omitempty"` // required for subscribe/unsubscribe
}
