package webhook

import "encoding/json"

// messageKey mirrors the provider's common "key" envelope present on both
// messages.upsert and messages.update payloads.
type messageKey struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant"`
}

// reactionMessage is present on a messages.upsert/update payload only when
// the event is a reaction rather than a regular message (spec §4.2).
type reactionMessage struct {
	Key  messageKey `json:"key"`
	Text string     `json:"text"`
}

// messagePayload is the decoded body of a messages.upsert/messages.update
// event, including the optional reaction sub-payload used to detect and
// reroute reactions (spec §4.2).
type messagePayload struct {
	Key              messageKey       `json:"key"`
	PushName         string           `json:"pushName"`
	MessageTimestamp int64            `json:"messageTimestamp"`
	Content          string           `json:"content"`
	MessageType      string           `json:"messageType"`
	QuotedMessageID  *string          `json:"quotedMessageId"`
	ReactionMessage  *reactionMessage `json:"reactionMessage"`
	Sender           string           `json:"sender"`
}

// contactPayload is the decoded body of a contacts.upsert/update event.
type contactPayload struct {
	JID               string `json:"jid"`
	PushName          string `json:"pushName"`
	VerifiedName      string `json:"verifiedName"`
	ProfilePictureURL string `json:"profilePictureUrl"`
	IsBusiness        bool   `json:"isBusiness"`
}

// chatPayload is the decoded body of a chats.upsert/update event.
type chatPayload struct {
	ChatID        string `json:"id"`
	UnreadCount   int    `json:"unreadCount"`
	Archived      bool   `json:"archived"`
	Pinned        bool   `json:"pinned"`
	LastMessageTS int64  `json:"lastMessageTimestamp"`
}

// groupPayload is the decoded body of a groups.upsert/update event — the
// only authoritative source for a group's subject (spec §4.2).
type groupPayload struct {
	GroupJID    string `json:"id"`
	Subject     string `json:"subject"`
	OwnerJID    string `json:"owner"`
	Description string `json:"description"`
	CreationTS  int64  `json:"creation"`
	IsLocked    bool   `json:"isLocked"`
}

// participantUpdatePayload is the decoded body of a
// group.participants.update event.
type participantUpdatePayload struct {
	GroupJID     string   `json:"id"`
	Action       string   `json:"action"` // add, remove, promote, demote
	Participants []string `json:"participants"`
}

// callPayload is the decoded body of a call event.
type callPayload struct {
	CallLogID       string `json:"id"`
	ChatID          string `json:"chatId"`
	FromJID         string `json:"from"`
	FromMe          bool   `json:"fromMe"`
	StartTS         int64  `json:"date"`
	IsVideo         bool   `json:"isVideo"`
	DurationSeconds int    `json:"duration"`
	Status          string `json:"status"` // answered, missed, declined
}

// connectionUpdatePayload is the decoded body of a connection.update event.
type connectionUpdatePayload struct {
	State string `json:"state"` // open, close, connecting, qr
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(raw, &v)
	return v, err
}
