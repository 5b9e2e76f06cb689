// Package webhook is the adapter between raw provider payloads and the
// storage gateway: envelope decoding, ID/timestamp normalization,
// dependency materialization, and event-type routing (spec §4.2).
package webhook

import (
	"context"
	"encoding/json"

	"github.com/fcamachol/chatflow/pkg/fanout"
	"github.com/fcamachol/chatflow/pkg/models"
)

// EventType is the provider-reported webhook event kind (spec §4.2).
type EventType string

// Recognized event types.
const (
	EventMessagesUpsert      EventType = "messages.upsert"
	EventMessagesUpdate      EventType = "messages.update"
	EventMessagesDelete      EventType = "messages.delete"
	EventContactsUpsert      EventType = "contacts.upsert"
	EventContactsUpdate      EventType = "contacts.update"
	EventChatsUpsert         EventType = "chats.upsert"
	EventChatsUpdate         EventType = "chats.update"
	EventGroupsUpsert        EventType = "groups.upsert"
	EventGroupsUpdate        EventType = "groups.update"
	EventGroupParticipants   EventType = "group.participants.update"
	EventCall                EventType = "call"
	EventConnectionUpdate    EventType = "connection.update"
)

// Envelope is the raw inbound webhook body. The provider's payload shape
// varies per event type, so Data is decoded further by each handler once
// Type is known; Envelope itself only carries what every event shares.
type Envelope struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Gateway is the subset of storage.Gateway the webhook adapter depends on.
type Gateway interface {
	GetInstance(ctx context.Context, instanceID string) (*models.Instance, error)
	UpsertContact(ctx context.Context, c models.Contact) (*models.Contact, error)
	ContactExists(ctx context.Context, jid, instanceID string) (bool, error)
	UpsertChat(ctx context.Context, c models.Chat) (*models.Chat, error)
	CreateGroupPlaceholderIfNeeded(ctx context.Context, groupJID, instanceID string) error
	UpsertGroup(ctx context.Context, group models.Group) (*models.Group, error)
	ApplyParticipantAction(ctx context.Context, groupJID, participantJID, instanceID string, action models.ParticipantAction) error
	UpsertMessage(ctx context.Context, m models.Message) (*models.Message, error)
	MarkMessageRevoked(ctx context.Context, messageID, instanceID string) error
	AppendMessageStatusUpdate(ctx context.Context, u models.MessageStatusUpdate) error
	UpsertReaction(ctx context.Context, r models.MessageReaction) (*models.MessageReaction, error)
	UpsertCallLog(ctx context.Context, c models.CallLog) (*models.CallLog, error)
	UpdateConnectionState(ctx context.Context, instanceID string, state models.ConnectionState) error
	InsertFailedEvent(ctx context.Context, fe models.FailedEvent) (*models.FailedEvent, error)
}

// Fanout is the subset of fanout.Publisher the webhook adapter pushes
// real-time UI events through once a row is durably stored (spec §4.7).
type Fanout interface {
	PublishNewMessage(ctx context.Context, instanceID string, payload fanout.NewMessagePayload) error
	PublishNewReaction(ctx context.Context, instanceID string, payload fanout.NewReactionPayload) error
}
