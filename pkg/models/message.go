package models

import (
	"encoding/json"
	"time"
)

// MessageType enumerates the kinds of message bodies the adapter recognizes.
type MessageType string

// Recognized message types.
const (
	MessageText              MessageType = "text"
	MessageImage              MessageType = "image"
	MessageVideo              MessageType = "video"
	MessageAudio              MessageType = "audio"
	MessageDocument            MessageType = "document"
	MessageSticker             MessageType = "sticker"
	MessageLocation            MessageType = "location"
	MessageContactCard         MessageType = "contact_card"
	MessageContactCardMulti    MessageType = "contact_card_multi"
	MessageOrder               MessageType = "order"
	MessageRevoked             MessageType = "revoked"
	MessageUnsupported         MessageType = "unsupported"
	MessageReactionType        MessageType = "reaction"
	MessageCallLog             MessageType = "call_log"
	MessageEdited              MessageType = "edited_message"
)

// Message is keyed by (message_id, instance_id). Inserted only after its
// sender and chat dependency rows exist (see pkg/webhook materialization).
type Message struct {
	MessageID        string
	InstanceID       string
	ChatID           string
	SenderJID        string
	FromMe           bool
	MessageType      MessageType
	Content          string
	Timestamp        time.Time
	QuotedMessageID  *string // not FK-enforced; may forward-reference a reply not yet seen
	IsForwarded      bool
	ForwardingScore  int
	IsStarred        bool
	IsEdited         bool
	LastEditedAt     *time.Time
	SourcePlatform   string
	RawPayload       json.RawMessage
}

// MessageStatus is one entry in a message's append-only status sequence.
type MessageStatus string

// Recognized message delivery statuses, in typical arrival order.
const (
	StatusError     MessageStatus = "error"
	StatusPending   MessageStatus = "pending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusPlayed    MessageStatus = "played"
)

// MessageStatusUpdate is one row in the append-only per-message status sequence.
type MessageStatusUpdate struct {
	ID         int64
	MessageID  string
	InstanceID string
	Status     MessageStatus
	Timestamp  time.Time
}

// MessageReaction is keyed by (message_id, instance_id, reactor_jid). An
// empty ReactionEmoji denotes removal of a previously-applied reaction.
type MessageReaction struct {
	MessageID     string
	InstanceID    string
	ReactorJID    string
	ReactionEmoji string
	FromMe        bool
	Timestamp     time.Time
}

// CallOutcome is the terminal state of a call log entry.
type CallOutcome string

// Call outcomes.
const (
	CallAnswered CallOutcome = "answered"
	CallMissed   CallOutcome = "missed"
	CallDeclined CallOutcome = "declined"
)

// CallLog is keyed by (call_log_id, instance_id).
type CallLog struct {
	CallLogID      string
	InstanceID     string
	ChatID         string
	FromJID        string
	FromMe         bool
	StartTS        time.Time
	IsVideo        bool
	DurationSeconds int
	Outcome        CallOutcome
}
