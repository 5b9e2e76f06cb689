package models

import "time"

// ChatType distinguishes one-on-one chats from groups.
type ChatType string

// Chat types, derived from the chat_id's JID suffix.
const (
	ChatIndividual ChatType = "individual"
	ChatGroup      ChatType = "group"
)

// Chat is keyed by (chat_id, instance_id). chat_id must also exist in
// Contacts for FK consistency.
type Chat struct {
	ChatID        string
	InstanceID    string
	Type          ChatType
	UnreadCount   int
	Archived      bool
	Pinned        bool
	Muted         bool
	MuteEndTS     *time.Time
	LastMessageTS time.Time
}
